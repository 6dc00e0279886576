package storage

import (
	"context"

	"github.com/poiesic/askdb/core"
)

// SearchOptions controls a similarity query.
type SearchOptions struct {
	// TopK is the number of results to return.
	TopK int

	// QueryText, when non-empty, enables hybrid mode: lexical term
	// search runs alongside vector search and the two ranked lists are
	// fused by reciprocal rank fusion.
	QueryText string

	// TypeFilter, when non-nil, restricts candidates to one object type.
	TypeFilter *core.ObjectType
}

// ChunkStore provides durable, queryable storage of schema chunks, one
// independent collection per source. Implementations must be
// thread-safe: concurrent reads against a settled collection are safe,
// and writes are serialized per source.
type ChunkStore interface {
	// ReplaceAll atomically drops and recreates the source's collection
	// from the given chunks. A crawl is a full snapshot; there are no
	// incremental upsert semantics. Readers never observe a
	// half-replaced collection.
	ReplaceAll(ctx context.Context, sourceId string, chunks []*core.SchemaChunk) error

	// GetAll returns up to limit chunks with no ranking, for questions
	// that need the entire corpus. A missing collection yields an empty
	// result, not an error.
	GetAll(ctx context.Context, sourceId string, limit int) ([]*core.SchemaChunk, error)

	// Search runs a cosine top-K query over the source's embeddings,
	// optionally fused with lexical term search (see SearchOptions).
	// A missing collection yields an empty result, not an error.
	Search(ctx context.Context, sourceId string, queryVector []float32, opts SearchOptions) ([]*core.ScoredChunk, error)

	// Clear drops the source's collection. Idempotent on a missing
	// collection.
	Clear(ctx context.Context, sourceId string) error

	// Stats recomputes aggregate statistics by scanning the source's
	// stored chunks.
	Stats(ctx context.Context, sourceId string) (*core.IndexStats, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
