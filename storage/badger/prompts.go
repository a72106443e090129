package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/storage"
)

// PromptRepository implements storage.PromptRepository for BadgerDB.
type PromptRepository struct {
	backend *Backend
}

var _ storage.PromptRepository = (*PromptRepository)(nil)

// NewPromptRepository creates a new PromptRepository.
func NewPromptRepository(backend *Backend) *PromptRepository {
	return &PromptRepository{backend: backend}
}

// GetPrompt returns a stored prompt.
func (r *PromptRepository) GetPrompt(ctx context.Context, name string) (string, error) {
	var value string
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		val, err := readValue(tx, makePromptKey(name))
		if err != nil {
			return err
		}
		value = string(val)
		return nil
	})
	return value, err
}

// SetPrompt stores or replaces a prompt.
func (r *PromptRepository) SetPrompt(ctx context.Context, name, value string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makePromptKey(name), []byte(value))
	})
}
