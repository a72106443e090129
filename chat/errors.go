package chat

import "errors"

var (
	// ErrEmptyQuery is returned when a question has no text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrMissingSession is returned when a request has no session id.
	ErrMissingSession = errors.New("session id is required")

	// ErrUnknownPrompt is returned for prompt names other than "context" and "system".
	ErrUnknownPrompt = errors.New("unknown prompt")

	// ErrEmptyPrompt is returned when a prompt is set to blank text.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrChatModelRequired is returned when a chat model is not provided.
	ErrChatModelRequired = errors.New("chat model required")

	// ErrRepositoryRequired is returned when a conversation or prompt repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")
)
