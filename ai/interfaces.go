package ai

import (
	"context"

	"github.com/poiesic/askdb/core"
)

// Embedder generates vector embeddings from text for semantic
// similarity search. Vectors are assumed L2-normalized by the service.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The returned slice contains embeddings in the same order as the
	// input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the text-generation service used for summarization,
// query rewriting and chat answers.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate produces a single non-streamed completion for prompt
	// under the given system prompt. Used for summarization and query
	// rewriting.
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)

	// Chat streams a completion for message given the prior history,
	// invoking onToken for each token as it arrives. A non-nil error
	// from onToken aborts the stream.
	Chat(ctx context.Context, systemPrompt string, history []core.ChatMessage, message string, onToken func(token string) error) error

	// ContextLength returns the model's token budget.
	ContextLength() int

	// Available reports whether the generation service is reachable.
	// Returns a core.KindUnreachable error with an actionable message
	// when it is not.
	Available(ctx context.Context) error
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the text generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
