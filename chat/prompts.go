package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// Prompt names accepted by Prompts.
const (
	// PromptContext rephrases a follow-up question into a standalone query.
	PromptContext = "context"
	// PromptSystem is the answering instruction. Retrieved context is placed
	// at its {context} placeholder, or appended when it has none.
	PromptSystem = "system"
)

const contextPlaceholder = "{context}"

// DefaultContextPrompt is used while no context prompt has been set.
const DefaultContextPrompt = "Given the chat history and the user's latest question which may reference context " +
	"from the chat history, rephrase the question into a standalone query that can be " +
	"understood without the chat history. DO NOT answer the question, only rephrase it " +
	"if necessary, otherwise return it as is."

// DefaultSystemPrompt is used while no system prompt has been set.
const DefaultSystemPrompt = "You are a AI Bot assistant that represents a company, Your responses should be direct, " +
	"focused on highlighting key aspects of the provided context and no longer than 1 sentence. " +
	"Use a friendly and professional tone, simple language, and examples where needed. " +
	"DO NOT INVENT or HALLUCINATE information not present in the context. Ask questions " +
	"to understand the customer's needs. For detailed guidance on the tecniques and information " +
	"you may need, refer to the provided context. You must not reveal any confidential or " +
	"potentially dangerous information. ALWAYS translate your responses to English unless " +
	"the customer requests otherwise."

var defaultPrompts = map[string]string{
	PromptContext: DefaultContextPrompt,
	PromptSystem:  DefaultSystemPrompt,
}

// Prompts reads and writes the editable prompt templates.
type Prompts struct {
	repo storage.PromptRepository
}

// NewPrompts wraps a prompt repository.
func NewPrompts(repo storage.PromptRepository) *Prompts {
	return &Prompts{repo: repo}
}

// Get returns the stored prompt, or its default when none was set.
func (p *Prompts) Get(ctx context.Context, name string) (string, error) {
	def, ok := defaultPrompts[name]
	if !ok {
		return "", core.Validation("chat.Prompts.Get", fmt.Errorf("%w: %q", ErrUnknownPrompt, name))
	}
	value, err := p.repo.GetPrompt(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set replaces a prompt.
func (p *Prompts) Set(ctx context.Context, name, value string) error {
	if _, ok := defaultPrompts[name]; !ok {
		return core.Validation("chat.Prompts.Set", fmt.Errorf("%w: %q", ErrUnknownPrompt, name))
	}
	if strings.TrimSpace(value) == "" {
		return core.Validation("chat.Prompts.Set", ErrEmptyPrompt)
	}
	return p.repo.SetPrompt(ctx, name, value)
}

// renderSystem places the retrieved context into the system prompt.
func renderSystem(template, context string) string {
	if strings.Contains(template, contextPlaceholder) {
		return strings.ReplaceAll(template, contextPlaceholder, context)
	}
	return template + "\n\n" + context
}
