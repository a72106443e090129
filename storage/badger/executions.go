package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// ExecutionRepository implements storage.ExecutionRepository for BadgerDB.
type ExecutionRepository struct {
	backend *Backend
}

var _ storage.ExecutionRepository = (*ExecutionRepository)(nil)

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(backend *Backend) *ExecutionRepository {
	return &ExecutionRepository{backend: backend}
}

// SaveExecution persists the execution, stamping UpdatedAt.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, exec *core.Execution) error {
	exec.UpdatedAt = time.Now().UTC()
	value, err := storage.MarshalExecution(exec)
	if err != nil {
		return err
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeExecutionKey(exec.ID), value)
	})
}

// GetExecution retrieves an execution by id.
func (r *ExecutionRepository) GetExecution(ctx context.Context, id string) (*core.Execution, error) {
	var exec *core.Execution
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		val, err := readValue(tx, makeExecutionKey(id))
		if err != nil {
			return err
		}
		exec, err = storage.UnmarshalExecution(val)
		return err
	})
	return exec, err
}

// ListExecutions returns executions of workflow (all when empty), oldest first.
func (r *ExecutionRepository) ListExecutions(ctx context.Context, workflow string) ([]*core.Execution, error) {
	var execs []*core.Execution
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(executionPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				exec, err := storage.UnmarshalExecution(val)
				if err != nil {
					return err
				}
				if workflow == "" || exec.Workflow == workflow {
					execs = append(execs, exec)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(execs, func(a, b *core.Execution) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return execs, nil
}
