package badger

import (
	"bytes"
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Each row is stored under its (id, filename) key and indexed by
// (group, filename, id) so a group can be paged in filename order.
type ChunkRepository struct {
	backend *Backend
	table   string
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a chunk store named table.
func NewChunkRepository(backend *Backend, table string) *ChunkRepository {
	return &ChunkRepository{backend: backend, table: table}
}

// Name returns the table name.
func (r *ChunkRepository) Name() string {
	return r.table
}

// PutChunks writes rows and their group index entries in one transaction.
func (r *ChunkRepository) PutChunks(ctx context.Context, chunks ...*core.ChunkRecord) error {
	values := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		value, err := storage.MarshalChunk(chunk)
		if err != nil {
			return err
		}
		values[i] = value
	}

	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for i, chunk := range chunks {
			key := makeChunkKey(r.table, chunk.ID, chunk.Filename)
			if err := tx.Set(key, values[i]); err != nil {
				return err
			}
			indexKey := makeChunkGroupKey(r.table, chunk.Group, chunk.Filename, chunk.ID)
			if err := tx.Set(indexKey, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryGroup pages through the group index in filename order.
func (r *ChunkRepository) QueryGroup(ctx context.Context, group, cursor string, limit int) ([]*core.ChunkRecord, string, error) {
	prefix := makeChunkGroupPrefix(r.table, group)
	return r.page(ctx, prefix, cursor, limit, true)
}

// Scan pages through every row of the store in primary key order.
func (r *ChunkRepository) Scan(ctx context.Context, cursor string, limit int) ([]*core.ChunkRecord, string, error) {
	return r.page(ctx, makeChunkTablePrefix(r.table), cursor, limit, false)
}

// page reads up to limit rows under prefix after cursor. When indirect is
// true the iterated values are primary keys to dereference.
func (r *ChunkRepository) page(ctx context.Context, prefix []byte, cursor string, limit int, indirect bool) ([]*core.ChunkRecord, string, error) {
	if limit <= 0 {
		return nil, "", storage.ErrInvalidQuery
	}
	var start []byte
	if cursor != "" {
		var err error
		if start, err = decodeCursor(cursor, prefix); err != nil {
			return nil, "", err
		}
	}

	var (
		rows []*core.ChunkRecord
		next string
	)
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		if start == nil {
			iter.Rewind()
		} else {
			iter.Seek(start)
			if iter.Valid() && bytes.Equal(iter.Item().Key(), start) {
				iter.Next()
			}
		}

		var last []byte
		for ; iter.Valid(); iter.Next() {
			if len(rows) == limit {
				next = encodeCursor(last)
				return nil
			}
			item := iter.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if indirect {
				if val, err = readValue(tx, val); err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						continue
					}
					return err
				}
			}
			row, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			rows = append(rows, row)
			last = item.KeyCopy(last[:0])
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return rows, next, nil
}

// DeleteByFilenamePrefix removes every row of group whose filename starts with prefix.
func (r *ChunkRepository) DeleteByFilenamePrefix(ctx context.Context, group, prefix string) (int, error) {
	indexPrefix := append(makeChunkGroupPrefix(r.table, group), prefix...)

	var doomed [][]byte
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexPrefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			primary, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doomed = append(doomed, item.KeyCopy(nil), primary)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := r.backend.deleteKeys(doomed); err != nil {
		return 0, err
	}
	return len(doomed) / 2, nil
}

// Count returns the number of rows in the store.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	keys, err := r.backend.collectKeys(ctx, makeChunkTablePrefix(r.table))
	return len(keys), err
}
