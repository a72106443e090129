package mock

import (
	"context"
	"sync"

	"github.com/poiesic/ragline/ai"
)

// MockChatModel is a test double for ai.ChatModel.
// It records every conversation it receives.
type MockChatModel struct {
	// CompleteFunc is called by Complete if set.
	// If nil, the content of the last message is echoed.
	CompleteFunc func(ctx context.Context, messages []ai.Message) (string, error)

	mu    sync.Mutex
	calls [][]ai.Message
}

// NewMockChatModel creates a mock chat model that echoes the last message.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{}
}

// Complete records messages and returns the scripted reply.
func (m *MockChatModel) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]ai.Message(nil), messages...))
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	if len(messages) == 0 {
		return "", nil
	}
	return messages[len(messages)-1].Content, nil
}

// Calls returns a copy of every conversation passed to Complete.
func (m *MockChatModel) Calls() [][]ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]ai.Message(nil), m.calls...)
}

// CallCount returns the number of times Complete was called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and custom functions.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.CompleteFunc = nil
}
