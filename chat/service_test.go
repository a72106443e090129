package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/search"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRetriever records queries and returns fixed chunk texts.
type fakeRetriever struct {
	mu      sync.Mutex
	queries []search.Query
	texts   []string
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q search.Query) ([]search.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	matches := make([]search.Match, len(f.texts))
	for i, text := range f.texts {
		matches[i] = search.Match{Chunk: &core.ChunkRecord{Text: text}, Score: 0.9}
	}
	return matches, nil
}

type chatFixture struct {
	stores    *badger.Stores
	retriever *fakeRetriever
	model     *mock.MockChatModel
	service   *Service
}

func newChatFixture(t *testing.T, opts ...Option) *chatFixture {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	retriever := &fakeRetriever{texts: []string{"Q1 revenue was 10M.", "Q2 revenue was 12M."}}
	model := mock.NewMockChatModel()
	model.CompleteFunc = func(ctx context.Context, messages []ai.Message) (string, error) {
		if strings.HasPrefix(messages[0].Content, DefaultContextPrompt) {
			return "What was the Q2 revenue?", nil
		}
		return "It was 12M.", nil
	}
	service, err := New(retriever, model, stores.Conversations, stores.Prompts, opts...)
	require.NoError(t, err)
	return &chatFixture{stores: stores, retriever: retriever, model: model, service: service}
}

func TestAsk_FirstQuestion(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	answer, err := f.service.Ask(ctx, Request{SessionID: "s1", Query: "What was the Q1 revenue?", Group: "sales"})
	require.NoError(t, err)
	assert.Equal(t, "It was 12M.", answer.Text)
	assert.Equal(t, "What was the Q1 revenue?", answer.StandaloneQuery)
	assert.Len(t, answer.Matches, 2)

	// No history: one call, straight to answering.
	require.Equal(t, 1, f.model.CallCount())
	call := f.model.Calls()[0]
	require.Len(t, call, 2)
	assert.Equal(t, ai.RoleSystem, call[0].Role)
	assert.Equal(t, DefaultSystemPrompt+"\n\nQ1 revenue was 10M.\n\nQ2 revenue was 12M.", call[0].Content)
	assert.Equal(t, ai.Human("What was the Q1 revenue?"), call[1])

	require.Len(t, f.retriever.queries, 1)
	q := f.retriever.queries[0]
	assert.Equal(t, "sales", q.Group)
	assert.Equal(t, core.GranularitySmall, q.Granularity)
	assert.Equal(t, search.DefaultTolerance, q.Tolerance)

	turns, err := f.stores.Conversations.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.SenderUser, turns[0].Sender)
	assert.Equal(t, "What was the Q1 revenue?", turns[0].Message)
	assert.Equal(t, core.SenderAssistant, turns[1].Sender)
	assert.Equal(t, "It was 12M.", turns[1].Message)
	assert.Less(t, turns[0].Timestamp, turns[1].Timestamp)
	assert.Greater(t, turns[0].Expiration, time.Now().Add(13*24*time.Hour).Unix())
}

func TestAsk_FollowUpIsRephrased(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Ask(ctx, Request{SessionID: "s1", Query: "What was the Q1 revenue?", Group: "sales"})
	require.NoError(t, err)
	answer, err := f.service.Ask(ctx, Request{SessionID: "s1", Query: "And Q2?", Group: "sales", Granularity: core.GranularityLarge})
	require.NoError(t, err)
	assert.Equal(t, "What was the Q2 revenue?", answer.StandaloneQuery)

	calls := f.model.Calls()
	require.Len(t, calls, 3)
	rephrase := calls[1]
	require.Len(t, rephrase, 4)
	assert.Equal(t, ai.System(DefaultContextPrompt), rephrase[0])
	assert.Equal(t, ai.Human("What was the Q1 revenue?"), rephrase[1])
	assert.Equal(t, ai.Assistant("It was 12M."), rephrase[2])
	assert.Equal(t, ai.Human("And Q2?"), rephrase[3])

	// The answer sees the history and the original wording.
	assert.Len(t, calls[2], 4)
	assert.Equal(t, ai.Human("And Q2?"), calls[2][3])

	q := f.retriever.queries[1]
	assert.Equal(t, "What was the Q2 revenue?", q.Text)
	assert.Equal(t, core.GranularityLarge, q.Granularity)

	turns, err := f.stores.Conversations.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestAsk_SessionsAreIsolated(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Ask(ctx, Request{SessionID: "s1", Query: "first", Group: "sales"})
	require.NoError(t, err)
	answer, err := f.service.Ask(ctx, Request{SessionID: "s2", Query: "second"})
	require.NoError(t, err)
	assert.Equal(t, "second", answer.StandaloneQuery)
	assert.Equal(t, DefaultGroup, f.retriever.queries[1].Group)
}

func TestAsk_Errors(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Ask(ctx, Request{Query: "q"})
	assert.ErrorIs(t, err, ErrMissingSession)

	_, err = f.service.Ask(ctx, Request{SessionID: "s1", Query: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.ErrorIs(t, err, core.ErrValidation)

	f.retriever.err = errors.New("store offline")
	_, err = f.service.Ask(ctx, Request{SessionID: "s1", Query: "q"})
	assert.Error(t, err)

	f.retriever.err = nil
	f.model.CompleteFunc = func(ctx context.Context, messages []ai.Message) (string, error) {
		return "", errors.New("throttled")
	}
	_, err = f.service.Ask(ctx, Request{SessionID: "s1", Query: "q"})
	assert.ErrorIs(t, err, core.ErrTransient)

	// Failed questions leave no turns behind.
	turns, err := f.stores.Conversations.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAsk_Options(t *testing.T) {
	f := newChatFixture(t, WithMaxHits(1), WithTolerance(0.5), WithRetention(time.Hour))
	ctx := context.Background()

	_, err := f.service.Ask(ctx, Request{SessionID: "s1", Query: "q", Group: "sales"})
	require.NoError(t, err)
	q := f.retriever.queries[0]
	assert.Equal(t, 1, q.MaxHits)
	assert.Equal(t, 0.5, q.Tolerance)

	turns, err := f.stores.Conversations.History(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, turns)
	assert.LessOrEqual(t, turns[0].Expiration, time.Now().Add(time.Hour).Unix())
}

func TestNew_Validation(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	model := mock.NewMockChatModel()

	_, err = New(nil, model, stores.Conversations, stores.Prompts)
	assert.Equal(t, ErrRetrieverRequired, err)
	_, err = New(&fakeRetriever{}, nil, stores.Conversations, stores.Prompts)
	assert.Equal(t, ErrChatModelRequired, err)
	_, err = New(&fakeRetriever{}, model, nil, stores.Prompts)
	assert.Equal(t, ErrRepositoryRequired, err)
	_, err = New(&fakeRetriever{}, model, stores.Conversations, stores.Prompts, WithRetention(0))
	assert.Error(t, err)
}

func TestStampClock(t *testing.T) {
	fixed := time.Unix(1700000000, 123456789)
	c := &stampClock{now: func() time.Time { return fixed }}

	a, b, d := c.next(), c.next(), c.next()
	assert.Equal(t, "1700000000.123456", core.FormatTimestamp(a))
	assert.Equal(t, "1700000000.123457", core.FormatTimestamp(b))
	assert.Equal(t, "1700000000.123458", core.FormatTimestamp(d))
}
