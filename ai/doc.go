// Package ai provides abstractions for the AI services used by askdb.
//
// It defines interfaces for text embeddings and text generation so the
// indexing and retrieval core depends on abstractions rather than a
// concrete model host.
//
//   - Embedder: generates vector embeddings from text
//   - Generator: summarization, query rewriting and streamed chat
//   - Provider: aggregates both for initialization and lifecycle
//
// Two implementation sub-packages exist:
//
//   - ai/openai: production implementation against OpenAI-compatible
//     local services (Ollama, LocalAI, vLLM)
//   - ai/mock: test doubles with injectable function fields
//
// Public constructors in ai/openai return interface types to enforce
// abstraction; the mock constructors return concrete types so tests can
// inject behavior and assert call counts.
package ai
