package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/notify"
	"github.com/poiesic/ragline/storage"
)

// DefaultSettleDelay is how long a file must stay unchanged before upload.
const DefaultSettleDelay = 500 * time.Millisecond

// Watcher uploads files dropped into <inbox>/<group>/ and announces them
// on the documents.created channel.
type Watcher struct {
	inbox     string
	objects   storage.ObjectStore
	publisher notify.Publisher
	settle    time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over inbox.
func NewWatcher(inbox string, objects storage.ObjectStore, publisher notify.Publisher, settle time.Duration, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		inbox:     inbox,
		objects:   objects,
		publisher: publisher,
		settle:    settle,
		logger:    logger.With("component", "watcher", "inbox", inbox),
		pending:   make(map[string]*time.Timer),
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".")
}

// Run watches until ctx is cancelled. Group directories created while
// running are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := os.MkdirAll(w.inbox, 0o755); err != nil {
		return err
	}
	if err := fw.Add(w.inbox); err != nil {
		return fmt.Errorf("watching %s: %w", w.inbox, err)
	}
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			if err := fw.Add(filepath.Join(w.inbox, e.Name())); err != nil {
				return fmt.Errorf("watching group %s: %w", e.Name(), err)
			}
		}
	}
	w.logger.Info("watching inbox", "groups", len(entries))

	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, evt)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, evt fsnotify.Event) {
	if hidden(evt.Name) || !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(evt.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if filepath.Dir(evt.Name) == filepath.Clean(w.inbox) && evt.Has(fsnotify.Create) {
			if err := fw.Add(evt.Name); err != nil {
				w.logger.Warn("watching new group", "dir", evt.Name, "err", err)
			}
		}
		return
	}
	if filepath.Dir(filepath.Dir(evt.Name)) != filepath.Clean(w.inbox) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[evt.Name]; ok {
		t.Reset(w.settle)
		return
	}
	path := evt.Name
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if err := w.Upload(ctx, path); err != nil {
			w.logger.Error("uploading file", "file", path, "err", err)
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Upload stores a local file as raw_docs/<group>/<filename>, where group is
// the name of the file's directory, and publishes DocumentCreated.
func (w *Watcher) Upload(ctx context.Context, path string) error {
	group := filepath.Base(filepath.Dir(path))
	filename := filepath.Base(path)
	if err := core.ValidateName("group", group); err != nil {
		return core.Validation("ingestion.Upload", err)
	}
	if err := core.ValidateName("filename", filename); err != nil {
		return core.Validation("ingestion.Upload", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	key := core.RawDocKey(group, filename)
	if err := w.objects.Put(ctx, key, data); err != nil {
		return err
	}
	evt := notify.DocumentCreated{EventID: uuid.NewString(), Bucket: w.objects.Bucket(), Key: key}
	if err := w.publisher.Publish(ctx, notify.ChannelDocumentsCreated, evt); err != nil {
		return err
	}
	w.logger.Info("document uploaded", "key", key, "bytes", len(data))
	return nil
}
