// Package chat answers questions about ingested documents.
//
// A Service keeps the turns of every session in a ConversationRepository for
// two weeks. Follow-up questions are first rephrased into standalone queries
// with the "context" prompt, then answered by the chat model from the chunks
// the retriever returns, under the "system" prompt. Both prompts can be
// replaced at runtime through Prompts.
package chat
