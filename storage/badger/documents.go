package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	table   string
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a document store named table.
func NewDocumentRepository(backend *Backend, table string) *DocumentRepository {
	return &DocumentRepository{backend: backend, table: table}
}

// PutDocument writes the record, replacing any record with the same (group, filename).
func (r *DocumentRepository) PutDocument(ctx context.Context, doc *core.DocumentRecord) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	value, err := storage.MarshalDocument(doc)
	if err != nil {
		return err
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeDocumentKey(r.table, doc.Group, doc.Filename), value)
	})
}

// GetDocument retrieves a record by (group, filename).
func (r *DocumentRepository) GetDocument(ctx context.Context, group, filename string) (*core.DocumentRecord, error) {
	var doc *core.DocumentRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		val, err := readValue(tx, makeDocumentKey(r.table, group, filename))
		if err != nil {
			return err
		}
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// ListDocuments returns every record of a group ordered by filename.
func (r *DocumentRepository) ListDocuments(ctx context.Context, group string) ([]*core.DocumentRecord, error) {
	var docs []*core.DocumentRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentGroupPrefix(r.table, group)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return docs, err
}

// DeleteDocument removes a record. Missing records are not an error.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, group, filename string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Delete(makeDocumentKey(r.table, group, filename))
	})
}
