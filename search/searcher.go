package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/storage"
)

// DefaultTopK is the result depth used by chat retrieval.
const DefaultTopK = 30

// Searcher provides hybrid semantic and lexical search over a
// source's indexed chunks.
type Searcher struct {
	store    storage.ChunkStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.ChunkStore, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: provider.Embedder(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// FindChunks searches a source for chunks relevant to the query.
// Returns up to topK results ranked by fused relevance.
func (s *Searcher) FindChunks(ctx context.Context, sourceId, query string, topK int) ([]*core.ScoredChunk, error) {
	return s.FindChunksWithMonitor(ctx, sourceId, query, topK, nil, nil)
}

// FindChunksWithMonitor searches with an optional object-type filter
// and monitoring. The monitor receives callbacks at each stage of the
// search process.
func (s *Searcher) FindChunksWithMonitor(ctx context.Context, sourceId, query string, topK int, typeFilter *core.ObjectType, monitor SearchMonitor) ([]*core.ScoredChunk, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	embedStart := time.Now()
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector), time.Since(embedStart))

	searchStart := time.Now()
	results, err := s.store.Search(ctx, sourceId, vector, storage.SearchOptions{
		TopK:       topK,
		QueryText:  query,
		TypeFilter: typeFilter,
	})
	if err != nil {
		s.logger.Error("error searching chunk store", "source", sourceId, "err", err)
		return nil, err
	}
	monitor.AfterSearch(results, time.Since(searchStart))

	monitor.Finish(results)
	return results, nil
}
