package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/storage"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestOpenBackend_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	backend, err := OpenBackend(dir, false)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	if backend.IsClosed() {
		t.Fatal("fresh backend reports closed")
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !backend.IsClosed() {
		t.Fatal("closed backend reports open")
	}
}

func TestBackend_ClosedReturnsError(t *testing.T) {
	backend, err := OpenBackend("", true)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	backend.Close()

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	if !errors.Is(err, storage.ErrStorageClosed) {
		t.Fatalf("WithTx() after close = %v, want ErrStorageClosed", err)
	}
}

func TestBackend_CanceledContext(t *testing.T) {
	stores := newTestStores(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := stores.Prompts.SetPrompt(ctx, "system", "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("SetPrompt() with canceled context = %v", err)
	}
}

func TestCursor_RejectsForeignPrefix(t *testing.T) {
	cursor := encodeCursor(makeChunkGroupPrefix("textract", "sales"))
	if _, err := decodeCursor(cursor, makeChunkGroupPrefix("textract", "hr")); !errors.Is(err, storage.ErrInvalidCursor) {
		t.Fatalf("decodeCursor() = %v, want ErrInvalidCursor", err)
	}
	if _, err := decodeCursor("zz", nil); !errors.Is(err, storage.ErrInvalidCursor) {
		t.Fatalf("decodeCursor(non-hex) = %v, want ErrInvalidCursor", err)
	}
}
