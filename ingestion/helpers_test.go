package ingestion

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/ragline/extraction"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/poiesic/ragline/workflow"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *badger.Stores {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

type startCall struct {
	name  string
	input workflow.Result
}

// recordingStarter records workflow starts instead of running them.
type recordingStarter struct {
	mu    sync.Mutex
	calls []startCall
	err   error
}

func (s *recordingStarter) Start(ctx context.Context, name string, input workflow.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, startCall{name: name, input: input})
	return fmt.Sprintf("exec-%d", len(s.calls)), nil
}

func (s *recordingStarter) started() []startCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]startCall(nil), s.calls...)
}

// fakeExtraction is a scripted extraction.Service.
type fakeExtraction struct {
	mu       sync.Mutex
	started  []extraction.StartRequest
	startErr error
	status   extraction.JobStatus
	pages    []extraction.ResultPage
}

func (f *fakeExtraction) StartJob(ctx context.Context, req extraction.StartRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	return fmt.Sprintf("job-%d", len(f.started)), nil
}

func (f *fakeExtraction) GetJobResult(ctx context.Context, jobID, cursor string) (*extraction.ResultPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != extraction.StatusSucceeded {
		return &extraction.ResultPage{JobStatus: f.status}, nil
	}
	i := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &i)
	}
	page := f.pages[i]
	return &page, nil
}

func (f *fakeExtraction) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

// resultPages builds one result page per entry of lines, linked by cursor.
func resultPages(lines ...[]string) []extraction.ResultPage {
	pages := make([]extraction.ResultPage, len(lines))
	for i, ls := range lines {
		page := extraction.ResultPage{JobStatus: extraction.StatusSucceeded}
		page.Blocks = append(page.Blocks, extraction.Block{BlockType: extraction.BlockPage, ID: fmt.Sprintf("p%d", i), Page: i + 1})
		for j, l := range ls {
			page.Blocks = append(page.Blocks, extraction.Block{BlockType: extraction.BlockLine, ID: fmt.Sprintf("l%d-%d", i, j), Page: i + 1, Text: l})
		}
		if i < len(lines)-1 {
			page.NextToken = fmt.Sprintf("%d", i+1)
		}
		pages[i] = page
	}
	return pages
}

type discardPublisher struct{}

func (discardPublisher) Publish(ctx context.Context, channel string, msg any) error { return nil }
