package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// ConversationRepository implements storage.ConversationRepository for BadgerDB.
// Turns carry a badger TTL so expired turns vanish from reads without a sweeper.
type ConversationRepository struct {
	backend *Backend
	table   string
	now     func() time.Time
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a conversation store named table.
func NewConversationRepository(backend *Backend, table string) *ConversationRepository {
	return &ConversationRepository{backend: backend, table: table, now: time.Now}
}

// AppendTurn stores a turn that expires at turn.Expiration (epoch seconds).
// A zero expiration never expires.
func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *core.ConversationTurn) error {
	if err := core.ValidateTurn(turn); err != nil {
		return err
	}
	value, err := storage.MarshalTurn(turn)
	if err != nil {
		return err
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeTurnKey(r.table, turn.SessionID, turn.Timestamp), value)
		if turn.Expiration > 0 {
			entry.ExpiresAt = uint64(turn.Expiration)
		}
		return tx.SetEntry(entry)
	})
}

// History returns the live turns of a session ordered by timestamp.
func (r *ConversationRepository) History(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error) {
	now := r.now().Unix()
	var turns []*core.ConversationTurn
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSessionPrefix(r.table, sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				turn, err := storage.UnmarshalTurn(val)
				if err != nil {
					return err
				}
				if turn.Expiration > 0 && turn.Expiration <= now {
					return nil
				}
				turns = append(turns, turn)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return turns, err
}
