package chat

import (
	"context"
	"testing"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompts(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()
	p := NewPrompts(stores.Prompts)

	got, err := p.Get(ctx, PromptContext)
	require.NoError(t, err)
	assert.Equal(t, DefaultContextPrompt, got)

	got, err = p.Get(ctx, PromptSystem)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, got)

	require.NoError(t, p.Set(ctx, PromptSystem, "Answer like a pirate."))
	got, err = p.Get(ctx, PromptSystem)
	require.NoError(t, err)
	assert.Equal(t, "Answer like a pirate.", got)

	_, err = p.Get(ctx, "greeting")
	assert.ErrorIs(t, err, ErrUnknownPrompt)
	assert.ErrorIs(t, p.Set(ctx, "greeting", "hi"), ErrUnknownPrompt)
	assert.ErrorIs(t, p.Set(ctx, PromptContext, " "), core.ErrValidation)
}

func TestRenderSystem(t *testing.T) {
	assert.Equal(t, "Be brief.\n\nctx", renderSystem("Be brief.", "ctx"))
	assert.Equal(t, "Context:\nctx\nBe brief.", renderSystem("Context:\n{context}\nBe brief.", "ctx"))
}

func TestAsk_UsesStoredSystemPrompt(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Prompts().Set(ctx, PromptSystem, "Use only:\n{context}"))

	_, err := f.service.Ask(ctx, Request{SessionID: "s1", Query: "q", Group: "sales"})
	require.NoError(t, err)
	call := f.model.Calls()[0]
	assert.Equal(t, ai.System("Use only:\nQ1 revenue was 10M.\n\nQ2 revenue was 12M."), call[0])
}
