package mock

import (
	"context"
	"sync/atomic"
)

// MockPageExtractor is a test double for ai.PageExtractor.
// It allows custom behavior injection via function fields.
type MockPageExtractor struct {
	// ExtractPageFunc is called by ExtractPage if set.
	// If nil, the page bytes are returned as text.
	ExtractPageFunc func(ctx context.Context, page []byte, mimeType string) (string, error)

	callCount atomic.Int64
}

// NewMockPageExtractor creates a mock page extractor that echoes page bytes.
func NewMockPageExtractor() *MockPageExtractor {
	return &MockPageExtractor{}
}

// ExtractPage returns the page bytes as a string unless ExtractPageFunc is set.
func (m *MockPageExtractor) ExtractPage(ctx context.Context, page []byte, mimeType string) (string, error) {
	m.callCount.Add(1)

	if m.ExtractPageFunc != nil {
		return m.ExtractPageFunc(ctx, page, mimeType)
	}
	return string(page), nil
}

// CallCount returns the number of times ExtractPage was called.
func (m *MockPageExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockPageExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractPageFunc = nil
}
