// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package local runs text-extraction jobs in-process.
//
// Jobs read PDFs from the object store with github.com/ledongthuc/pdf, emit
// one LINE block per text row, and publish a notify.JobCompletion when done.
// Other extractable types (scanned images) fail their job, since local OCR is
// not available.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extraction"
	"github.com/poiesic/ragline/notify"
	"github.com/poiesic/ragline/storage"
)

// DefaultBlocksPerPage bounds the blocks in one result page.
const DefaultBlocksPerPage = 1000

type job struct {
	id      string
	req     extraction.StartRequest
	status  extraction.JobStatus
	message string
	pages   []extraction.ResultPage
}

// Service is an in-process extraction.Service.
type Service struct {
	objects       storage.ObjectStore
	publisher     notify.Publisher
	pool          *ants.Pool
	blocksPerPage int
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*job
	tokens map[string]string
}

var _ extraction.Service = (*Service)(nil)

// Option configures a Service.
type Option func(*Service) error

// WithPoolSize sets how many jobs run at once.
func WithPoolSize(size int) Option {
	return func(s *Service) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithBlocksPerPage sets the result page size.
func WithBlocksPerPage(n int) Option {
	return func(s *Service) error {
		if n > 0 {
			s.blocksPerPage = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Service reading from objects and announcing completions on publisher.
func New(objects storage.ObjectStore, publisher notify.Publisher, opts ...Option) (*Service, error) {
	if objects == nil || publisher == nil {
		return nil, fmt.Errorf("local extraction: object store and publisher are required")
	}
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		objects:       objects,
		publisher:     publisher,
		pool:          pool,
		blocksPerPage: DefaultBlocksPerPage,
		logger:        slog.Default(),
		ctx:           ctx,
		cancel:        cancel,
		jobs:          make(map[string]*job),
		tokens:        make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "extraction")
	return s, nil
}

// StartJob queues a job and returns its id. A repeated ClientRequestToken
// returns the id of the job it started first.
func (s *Service) StartJob(ctx context.Context, req extraction.StartRequest) (string, error) {
	if !core.IsExtractable(req.Key) {
		return "", core.Validation("extraction.StartJob", fmt.Errorf("%w: %s", extraction.ErrUnsupportedDocument, path.Ext(req.Key)))
	}

	s.mu.Lock()
	if req.ClientRequestToken != "" {
		if id, ok := s.tokens[req.ClientRequestToken]; ok {
			s.mu.Unlock()
			return id, nil
		}
	}
	j := &job{id: uuid.NewString(), req: req, status: extraction.StatusInProgress}
	s.jobs[j.id] = j
	if req.ClientRequestToken != "" {
		s.tokens[req.ClientRequestToken] = j.id
	}
	s.mu.Unlock()

	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.run(j)
	})
	if err != nil {
		s.wg.Done()
		s.mu.Lock()
		delete(s.jobs, j.id)
		delete(s.tokens, req.ClientRequestToken)
		s.mu.Unlock()
		return "", core.Transient("extraction.StartJob", err)
	}
	s.logger.Info("job started", "job", j.id, "key", req.Key)
	return j.id, nil
}

func (s *Service) run(j *job) {
	start := time.Now()
	pages, err := s.extract(j.req)

	s.mu.Lock()
	if err != nil {
		j.status = extraction.StatusFailed
		j.message = err.Error()
	} else {
		j.status = extraction.StatusSucceeded
		j.pages = pages
	}
	status := j.status
	s.mu.Unlock()

	logger := s.logger.With("job", j.id, "key", j.req.Key, "duration", time.Since(start))
	if err != nil {
		logger.Warn("job failed", "err", err)
	} else {
		logger.Info("job succeeded", "result_pages", len(pages))
	}

	if j.req.NotificationChannel == "" {
		return
	}
	msg := notify.JobCompletion{
		JobID:    j.id,
		Status:   string(status),
		Token:    j.req.ClientRequestToken,
		Location: notify.DocumentLocation{Bucket: j.req.Bucket, Key: j.req.Key},
	}
	if err := s.publisher.Publish(s.ctx, j.req.NotificationChannel, msg); err != nil {
		logger.Error("publishing completion", "err", err)
	}
}

func (s *Service) extract(req extraction.StartRequest) ([]extraction.ResultPage, error) {
	if strings.ToLower(path.Ext(req.Key)) != ".pdf" {
		return nil, fmt.Errorf("%w: no local reader for %s", extraction.ErrUnsupportedDocument, path.Ext(req.Key))
	}
	data, err := s.objects.Get(s.ctx, req.Key)
	if err != nil {
		return nil, err
	}
	lines, err := pdfLines(data)
	if err != nil {
		return nil, err
	}
	return paginate(lines, s.blocksPerPage), nil
}

// paginate turns page lines into blocks split across result pages. Every
// result page but the last carries a NextToken.
func paginate(lines [][]string, perPage int) []extraction.ResultPage {
	var blocks []extraction.Block
	for i, pageLines := range lines {
		n := i + 1
		blocks = append(blocks, extraction.Block{BlockType: extraction.BlockPage, ID: fmt.Sprintf("p%d", n), Page: n})
		for j, line := range pageLines {
			blocks = append(blocks, extraction.Block{
				BlockType: extraction.BlockLine,
				ID:        fmt.Sprintf("p%d-l%d", n, j+1),
				Page:      n,
				Text:      line,
			})
		}
	}

	var pages []extraction.ResultPage
	for start := 0; start < len(blocks) || len(pages) == 0; start += perPage {
		end := min(start+perPage, len(blocks))
		page := extraction.ResultPage{JobStatus: extraction.StatusSucceeded, Blocks: blocks[start:end]}
		if end < len(blocks) {
			page.NextToken = strconv.Itoa(len(pages) + 1)
		}
		pages = append(pages, page)
	}
	return pages
}

// GetJobResult returns one result page. While the job runs, or once it has
// failed, the page carries only the status.
func (s *Service) GetJobResult(ctx context.Context, jobID, cursor string) (*extraction.ResultPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, core.NotFound("extraction.GetJobResult", fmt.Errorf("%w: %s", extraction.ErrUnknownJob, jobID))
	}
	switch j.status {
	case extraction.StatusInProgress:
		return &extraction.ResultPage{JobStatus: j.status}, nil
	case extraction.StatusFailed:
		return &extraction.ResultPage{JobStatus: j.status, StatusMessage: j.message}, nil
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 || n >= len(j.pages) {
			return nil, core.Validation("extraction.GetJobResult", extraction.ErrInvalidCursor)
		}
		idx = n
	}
	page := j.pages[idx]
	return &page, nil
}

// Wait blocks until every queued job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close waits for running jobs and releases the worker pool.
func (s *Service) Close() {
	s.wg.Wait()
	s.cancel()
	if s.pool != nil {
		s.pool.Release()
	}
}
