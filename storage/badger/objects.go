package badger

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/storage"
)

// ObjectStore implements storage.ObjectStore on BadgerDB. Objects of one
// bucket share a key prefix, so listing by prefix is an ordered key scan.
type ObjectStore struct {
	backend *Backend
	bucket  string
}

var _ storage.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates an object store for bucket.
func NewObjectStore(backend *Backend, bucket string) *ObjectStore {
	return &ObjectStore{backend: backend, bucket: bucket}
}

// Bucket returns the bucket name.
func (s *ObjectStore) Bucket() string {
	return s.bucket
}

// Get returns the object's bytes.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		data, err = readValue(tx, makeObjectKey(s.bucket, key))
		return err
	})
	return data, err
}

// Put writes or replaces an object.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeObjectKey(s.bucket, key), data)
	})
}

// Copy duplicates src to dst in one transaction.
func (s *ObjectStore) Copy(ctx context.Context, src, dst string) error {
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		data, err := readValue(tx, makeObjectKey(s.bucket, src))
		if err != nil {
			return err
		}
		return tx.Set(makeObjectKey(s.bucket, dst), data)
	})
}

// Size returns the object's length in bytes.
func (s *ObjectStore) Size(ctx context.Context, key string) (int64, error) {
	var size int64
	err := s.backend.view(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeObjectKey(s.bucket, key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		size = item.ValueSize()
		return nil
	})
	return size, err
}

// List returns every key under prefix in lexicographic order.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	base := string(makeObjectKey(s.bucket, ""))
	keys, err := s.backend.collectKeys(ctx, makeObjectKey(s.bucket, prefix))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.TrimPrefix(string(k), base)
	}
	return out, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	return s.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Delete(makeObjectKey(s.bucket, key))
	})
}

// DeletePrefix removes every object under prefix.
func (s *ObjectStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.backend.collectKeys(ctx, makeObjectKey(s.bucket, prefix))
	if err != nil {
		return 0, err
	}
	if err := s.backend.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}
