// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.PageExtractor,
// ai.ChatModel and ai.AIProvider for use in unit tests. The mocks allow tests
// to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	extractor := mock.NewMockPageExtractor()
//	extractor.ExtractPageFunc = func(ctx context.Context, page []byte, mime string) (string, error) {
//	    return "Page1", nil
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockPageExtractor: Returns the page bytes as text
//   - MockChatModel: Echoes the last message
package mock
