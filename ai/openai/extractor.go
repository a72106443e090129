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


package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// PageExtractor implements ai.PageExtractor with a multimodal chat model.
type PageExtractor struct {
	client    llms.Model
	maxTokens int
	prompt    string
	limiter   *limiter
	logger    *slog.Logger
}

// newPageExtractor is an internal constructor that returns the concrete type.
func newPageExtractor(config *ai.Config, lim *limiter) (*PageExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerativeHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, err
	}

	return &PageExtractor{
		client:    client,
		maxTokens: config.MaxTokens,
		prompt:    buildPageExtractionPrompt(),
		limiter:   lim,
		logger:    slog.Default().With("component", "openai-page-extractor"),
	}, nil
}

// NewPageExtractor creates a page extractor using the provided configuration.
//
// Returns ai.PageExtractor interface to enforce abstraction.
func NewPageExtractor(config *ai.Config) (ai.PageExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newPageExtractor(config, newLimiter(config))
}

// ExtractPage sends the page bytes with the layout-preserving instruction
// and returns the model's markdown without its envelope.
func (e *PageExtractor) ExtractPage(ctx context.Context, page []byte, mimeType string) (string, error) {
	if len(page) == 0 {
		return "", core.Validation("extract page", nil)
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, page),
				llms.TextPart(e.prompt),
			},
		},
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	e.logger.Debug("extracting page", "bytes", len(page), "mime", mimeType)

	response, err := e.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(e.maxTokens),
	)
	if err != nil {
		e.logger.Error("failed to extract page", "err", err)
		return "", core.Transient("extract page", err)
	}
	if len(response.Choices) < 1 {
		e.logger.Debug("no choices returned from model")
		return "", nil
	}

	choice := response.Choices[0]
	e.logger.Debug("page extracted", "stop_reason", choice.StopReason, "length", len(choice.Content))
	return unwrapMarkdown(choice.Content), nil
}
