package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// PageSplitter splits a multi-page document into single-page files.
type PageSplitter interface {
	// SplitPages writes one file per page of localFile into scratchDir and
	// returns their paths in page order.
	SplitPages(ctx context.Context, localFile, scratchDir string) ([]string, error)
}

var disableConfigDir sync.Once

// PDFSplitter splits PDFs with pdfcpu.
type PDFSplitter struct {
	logger *slog.Logger
}

// NewPDFSplitter creates a PDF splitter.
func NewPDFSplitter(logger *slog.Logger) *PDFSplitter {
	if logger == nil {
		logger = slog.Default()
	}
	// pdfcpu otherwise writes its configuration under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFSplitter{logger: logger.With("stage", "split")}
}

// SplitPages writes page_0001.pdf, page_0002.pdf, ... into scratchDir.
// An unreadable source or a document without pages is an ErrSplit.
func (s *PDFSplitter) SplitPages(ctx context.Context, localFile, scratchDir string) ([]string, error) {
	count, err := api.PageCountFile(localFile)
	if err != nil {
		return nil, core.Validation("ingestion.SplitPages", fmt.Errorf("%w: %s: %w", ErrSplit, filepath.Base(localFile), err))
	}
	if count == 0 {
		return nil, core.Validation("ingestion.SplitPages", fmt.Errorf("%w: %s has no pages", ErrSplit, filepath.Base(localFile)))
	}

	pages := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := filepath.Join(scratchDir, core.PageFileName(i))
		if err := api.TrimFile(localFile, out, []string{strconv.Itoa(i)}, nil); err != nil {
			return nil, core.Validation("ingestion.SplitPages", fmt.Errorf("%w: page %d: %w", ErrSplit, i, err))
		}
		pages = append(pages, out)
	}
	s.logger.Debug("split document", "file", filepath.Base(localFile), "pages", count)
	return pages, nil
}

// PageUploader splits a stored document and uploads its pages.
type PageUploader struct {
	objects  storage.ObjectStore
	splitter PageSplitter
	logger   *slog.Logger
}

// NewPageUploader creates the split step of the generative workflow.
func NewPageUploader(objects storage.ObjectStore, splitter PageSplitter, logger *slog.Logger) *PageUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageUploader{objects: objects, splitter: splitter, logger: logger.With("stage", "split")}
}

// UploadPages uploads local page files to pages/<group>/<pid>_<filename>_page_<nnnn>.pdf
// and returns their keys.
func (u *PageUploader) UploadPages(ctx context.Context, ref core.ArtifactRef, pages []string) ([]string, error) {
	keys := make([]string, 0, len(pages))
	for i, page := range pages {
		data, err := os.ReadFile(page)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i+1, err)
		}
		key := ref.PageKey(i + 1)
		if err := u.objects.Put(ctx, key, data); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Split downloads the raw document of ref to a scratch directory, splits it
// and uploads the pages. It returns the page prefix.
func (u *PageUploader) Split(ctx context.Context, ref core.ArtifactRef) (string, error) {
	data, err := u.objects.Get(ctx, ref.RawDocKey())
	if err != nil {
		return "", terminalIfMissing("ingestion.Split", ref.RawDocKey(), err)
	}

	scratch, err := os.MkdirTemp("", "ragline-split-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(scratch)

	local := filepath.Join(scratch, ref.Filename)
	if err := os.WriteFile(local, data, 0o600); err != nil {
		return "", err
	}
	pageDir := filepath.Join(scratch, "pages")
	if err := os.Mkdir(pageDir, 0o700); err != nil {
		return "", err
	}

	pages, err := u.splitter.SplitPages(ctx, local, pageDir)
	if err != nil {
		return "", err
	}
	if _, err := u.UploadPages(ctx, ref, pages); err != nil {
		return "", err
	}
	u.logger.Info("pages uploaded", "group", ref.Group, "filename", ref.Filename, "pages", len(pages))
	return ref.PagePrefix(), nil
}
