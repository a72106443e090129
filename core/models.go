package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Granularity selects one of the two parallel chunk stores.
// The store for a granularity is a configuration constant, never inferred from paths.
type Granularity int

const (
	// GranularitySmall holds chunks produced with the small chunk size.
	GranularitySmall Granularity = iota + 1
	// GranularityLarge holds chunks produced with the large chunk size.
	GranularityLarge
)

// Granularities lists every granularity store in a stable order.
var Granularities = []Granularity{GranularitySmall, GranularityLarge}

func (g Granularity) String() string {
	switch g {
	case GranularitySmall:
		return "small"
	case GranularityLarge:
		return "large"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// ParseGranularity maps "small"/"large" (and the legacy "textract"/"llm" names) to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "textract", "":
		return GranularitySmall, nil
	case "large", "llm":
		return GranularityLarge, nil
	default:
		return 0, fmt.Errorf("%w: unknown granularity %q", ErrValidation, s)
	}
}

// ExtractionSource identifies which extraction path produced a text artifact.
type ExtractionSource string

const (
	// SourceTextract is the asynchronous extraction-job path.
	SourceTextract ExtractionSource = "textract"
	// SourceGenerative is the per-page generative extraction path.
	SourceGenerative ExtractionSource = "llm"
	// SourcePlainText is a document that was already text.
	SourcePlainText ExtractionSource = "text"
)

// Valid reports whether s is a known extraction source.
func (s ExtractionSource) Valid() bool {
	switch s {
	case SourceTextract, SourceGenerative, SourcePlainText:
		return true
	}
	return false
}

// DocumentRecord is the metadata row written once per intake.
// Keyed by (Group, Filename).
type DocumentRecord struct {
	Group        string  `json:"group"`
	Filename     string  `json:"filename"`
	ProcessingID string  `json:"uuid"`
	SizeKB       float64 `json:"size"`
}

// ChunkRecord is one embedded chunk row in a granularity store.
// Vector is kept decoded in memory; storage encodes it as a JSON array string.
type ChunkRecord struct {
	ID       string
	Filename string
	Group    string
	Vector   []float32
	Text     string
}

// ChunkID derives the row id shared by every chunk of one processing run.
func ChunkID(group, processingID string) string {
	return group + "-" + processingID
}

// Sender identifies who produced a conversation turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// ConversationTurn is one append-only message in a chat session.
type ConversationTurn struct {
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
	Sender     Sender `json:"sender"`
	Message    string `json:"message"`
	Expiration int64  `json:"expiration_time"`
}

// FormatTimestamp renders t as "<unix seconds>.<microseconds>" with a fixed
// six digit fraction so timestamps sort lexicographically in time order.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// Fingerprint returns a short deterministic hex digest of the given parts.
// Used to recognise redelivered notifications.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New(16, nil)
	for _, p := range parts {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
