package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/storage"
)

// DedupRepository implements storage.DedupRepository for BadgerDB.
type DedupRepository struct {
	backend *Backend
}

var _ storage.DedupRepository = (*DedupRepository)(nil)

// NewDedupRepository creates a new DedupRepository.
func NewDedupRepository(backend *Backend) *DedupRepository {
	return &DedupRepository{backend: backend}
}

// Remember stores value under (scope, token) unless the token was already seen.
// A zero ttl keeps the mark forever.
func (r *DedupRepository) Remember(ctx context.Context, scope, token, value string, ttl time.Duration) (string, bool, error) {
	var (
		stored string
		seen   bool
	)
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		key := makeSeenKey(scope, token)
		existing, err := readValue(tx, key)
		if err == nil {
			stored, seen = string(existing), true
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		stored, seen = value, false
		entry := badger.NewEntry(key, []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return tx.SetEntry(entry)
	})
	return stored, seen, err
}

// Forget removes a mark. Missing marks are not an error.
func (r *DedupRepository) Forget(ctx context.Context, scope, token string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Delete(makeSeenKey(scope, token))
	})
}
