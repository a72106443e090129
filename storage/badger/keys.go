package badger

import (
	"encoding/hex"
	"fmt"

	"github.com/poiesic/ragline/storage"
)

// Key prefixes for different data types
const (
	documentPrefix     = "doc"
	chunkPrefix        = "chk"
	chunkGroupPrefix   = "chkg"
	conversationPrefix = "cnv"
	objectPrefix       = "obj"
	executionPrefix    = "wfx"
	jobPrefix          = "job"
	jobTokenPrefix     = "jobtok"
	seenPrefix         = "seen"
	promptPrefix       = "prm"
)

// sep joins key components. Names are validated never to contain it.
const sep = "\x00"

// makeDocumentKey generates the primary key of a document record.
// Format: doc:table:group\x00filename
func makeDocumentKey(table, group, filename string) []byte {
	return []byte(documentPrefix + ":" + table + ":" + group + sep + filename)
}

// makeDocumentGroupPrefix bounds every document of a group.
func makeDocumentGroupPrefix(table, group string) []byte {
	return []byte(documentPrefix + ":" + table + ":" + group + sep)
}

// makeChunkKey generates the primary key of a chunk row.
// Format: chk:table:id\x00filename
func makeChunkKey(table, id, filename string) []byte {
	return []byte(chunkPrefix + ":" + table + ":" + id + sep + filename)
}

// makeChunkTablePrefix bounds every primary chunk row of a table.
func makeChunkTablePrefix(table string) []byte {
	return []byte(chunkPrefix + ":" + table + ":")
}

// makeChunkGroupKey generates the group index entry of a chunk row, ordered by filename.
// Format: chkg:table:group\x00filename\x00id
func makeChunkGroupKey(table, group, filename, id string) []byte {
	return []byte(chunkGroupPrefix + ":" + table + ":" + group + sep + filename + sep + id)
}

// makeChunkGroupPrefix bounds the group index of a group.
func makeChunkGroupPrefix(table, group string) []byte {
	return []byte(chunkGroupPrefix + ":" + table + ":" + group + sep)
}

// makeTurnKey generates the key of a conversation turn. Timestamps are
// fixed width so keys sort by time.
// Format: cnv:table:session\x00timestamp
func makeTurnKey(table, session, timestamp string) []byte {
	return []byte(conversationPrefix + ":" + table + ":" + session + sep + timestamp)
}

// makeSessionPrefix bounds every turn of a session.
func makeSessionPrefix(table, session string) []byte {
	return []byte(conversationPrefix + ":" + table + ":" + session + sep)
}

// makeObjectKey generates the key of an object.
// Format: obj:bucket:key
func makeObjectKey(bucket, key string) []byte {
	return []byte(objectPrefix + ":" + bucket + ":" + key)
}

func makeExecutionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", executionPrefix, id))
}

func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

func makeJobTokenKey(token string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobTokenPrefix, token))
}

// makeSeenKey generates a dedup mark.
// Format: seen:scope:token
func makeSeenKey(scope, token string) []byte {
	return []byte(seenPrefix + ":" + scope + ":" + token)
}

func makePromptKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", promptPrefix, name))
}

// encodeCursor renders the last key returned by a page as an opaque cursor.
func encodeCursor(key []byte) string {
	return hex.EncodeToString(key)
}

// decodeCursor parses a cursor and checks that it lies under prefix.
func decodeCursor(cursor string, prefix []byte) ([]byte, error) {
	key, err := hex.DecodeString(cursor)
	if err != nil || len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
		return nil, storage.ErrInvalidCursor
	}
	return key, nil
}
