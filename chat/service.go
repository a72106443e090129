package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/search"
	"github.com/poiesic/ragline/storage"
)

const (
	// DefaultRetention is how long conversation turns are kept.
	DefaultRetention = 14 * 24 * time.Hour
	// DefaultGroup is searched when a request names no group.
	DefaultGroup = "default"
)

// Request is one question in a chat session.
type Request struct {
	SessionID   string
	Query       string
	Group       string
	Granularity core.Granularity
}

// Answer is the model's reply and the material it was given.
type Answer struct {
	Text string
	// StandaloneQuery is the question as it was sent to the retriever.
	StandaloneQuery string
	Matches         []search.Match
}

// Service answers questions from retrieved chunks, keeping per-session history.
type Service struct {
	retriever search.Retriever
	model     ai.ChatModel
	turns     storage.ConversationRepository
	prompts   *Prompts
	retention time.Duration
	tolerance float64
	maxHits   int
	clock     *stampClock
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRetention sets how long turns live.
// Default is DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *Service) error {
		if d <= 0 {
			return fmt.Errorf("retention must be positive, got %s", d)
		}
		s.retention = d
		return nil
	}
}

// WithTolerance sets the minimum similarity of context chunks.
// Default is search.DefaultTolerance.
func WithTolerance(t float64) Option {
	return func(s *Service) error {
		s.tolerance = t
		return nil
	}
}

// WithMaxHits caps how many chunks are given to the model. Zero passes all matches.
func WithMaxHits(n int) Option {
	return func(s *Service) error {
		if n < 0 {
			return fmt.Errorf("max hits must not be negative, got %d", n)
		}
		s.maxHits = n
		return nil
	}
}

// New creates a chat service.
func New(retriever search.Retriever, model ai.ChatModel, turns storage.ConversationRepository, prompts storage.PromptRepository, opts ...Option) (*Service, error) {
	switch {
	case retriever == nil:
		return nil, ErrRetrieverRequired
	case model == nil:
		return nil, ErrChatModelRequired
	case turns == nil || prompts == nil:
		return nil, ErrRepositoryRequired
	}
	s := &Service{
		retriever: retriever,
		model:     model,
		turns:     turns,
		prompts:   NewPrompts(prompts),
		retention: DefaultRetention,
		tolerance: search.DefaultTolerance,
		clock:     &stampClock{now: time.Now},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "chat")
	return s, nil
}

// Prompts returns the prompt store the service reads from.
func (s *Service) Prompts() *Prompts { return s.prompts }

// Ask answers req.Query. When the session has history the question is first
// rephrased into a standalone query. The question and the answer are then
// appended to the session.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, core.Validation("chat.Ask", ErrMissingSession)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, core.Validation("chat.Ask", ErrEmptyQuery)
	}
	if req.Group == "" {
		req.Group = DefaultGroup
	}
	logger := s.logger.With("session", req.SessionID, "group", req.Group)

	history, err := s.history(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	standalone, err := s.standalone(ctx, history, req.Query)
	if err != nil {
		return nil, err
	}

	q := search.NewQuery(standalone, req.Group)
	if req.Granularity != 0 {
		q.Granularity = req.Granularity
	}
	q.Tolerance = s.tolerance
	q.MaxHits = s.maxHits
	matches, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	system, err := s.prompts.Get(ctx, PromptSystem)
	if err != nil {
		return nil, err
	}
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.System(renderSystem(system, joinMatches(matches))))
	messages = append(messages, history...)
	messages = append(messages, ai.Human(req.Query))
	reply, err := s.model.Complete(ctx, messages)
	if err != nil {
		logger.Error("error generating answer", "err", err)
		return nil, core.Transient("chat.Ask", err)
	}

	if err := s.appendTurn(ctx, req.SessionID, core.SenderUser, req.Query); err != nil {
		return nil, err
	}
	if err := s.appendTurn(ctx, req.SessionID, core.SenderAssistant, reply); err != nil {
		return nil, err
	}
	logger.Debug("question answered", "history", len(history), "matches", len(matches))
	return &Answer{Text: reply, StandaloneQuery: standalone, Matches: matches}, nil
}

func (s *Service) history(ctx context.Context, sessionID string) ([]ai.Message, error) {
	turns, err := s.turns.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history of %s: %w", sessionID, err)
	}
	messages := make([]ai.Message, len(turns))
	for i, t := range turns {
		if t.Sender == core.SenderUser {
			messages[i] = ai.Human(t.Message)
		} else {
			messages[i] = ai.Assistant(t.Message)
		}
	}
	return messages, nil
}

// standalone rephrases query against the history. Without history the
// query is used as is.
func (s *Service) standalone(ctx context.Context, history []ai.Message, query string) (string, error) {
	if len(history) == 0 {
		return query, nil
	}
	prompt, err := s.prompts.Get(ctx, PromptContext)
	if err != nil {
		return "", err
	}
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.System(prompt))
	messages = append(messages, history...)
	messages = append(messages, ai.Human(query))
	rephrased, err := s.model.Complete(ctx, messages)
	if err != nil {
		return "", core.Transient("chat.standalone", err)
	}
	if rephrased = strings.TrimSpace(rephrased); rephrased == "" {
		return query, nil
	}
	return rephrased, nil
}

func (s *Service) appendTurn(ctx context.Context, sessionID string, sender core.Sender, message string) error {
	at := s.clock.next()
	return s.turns.AppendTurn(ctx, &core.ConversationTurn{
		SessionID:  sessionID,
		Timestamp:  core.FormatTimestamp(at),
		Sender:     sender,
		Message:    message,
		Expiration: at.Add(s.retention).Unix(),
	})
}

// joinMatches concatenates the chunk texts, most similar first.
func joinMatches(matches []search.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}
