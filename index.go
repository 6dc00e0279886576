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

package askdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/ai/openai"
	"github.com/poiesic/askdb/chat"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/enrich"
	"github.com/poiesic/askdb/schema"
	"github.com/poiesic/askdb/search"
	"github.com/poiesic/askdb/storage"
	"github.com/poiesic/askdb/storage/badger"
)

// Index is the top-level handle over one local knowledge base: a
// chunk store on disk plus the AI services used to build and query
// it. One Index serves any number of sources, each with its own
// collection. At most one crawl may be in flight per source.
type Index struct {
	store    storage.ChunkStore
	provider ai.Provider
	pipeline *enrich.Pipeline
	searcher *search.Searcher
	asker    *chat.Asker
	logger   *slog.Logger

	mu     sync.Mutex
	crawls map[string]context.CancelFunc
}

// IndexOption configures an Index.
type IndexOption func(*indexOptions)

type indexOptions struct {
	aiConfig   *ai.Config
	enrichOpts []enrich.Option
}

// WithAIConfig sets the AI service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) IndexOption {
	return func(o *indexOptions) {
		o.aiConfig = config
	}
}

// WithEnrichOptions passes options through to the enrichment
// pipeline (concurrency, batch size).
func WithEnrichOptions(opts ...enrich.Option) IndexOption {
	return func(o *indexOptions) {
		o.enrichOpts = append(o.enrichOpts, opts...)
	}
}

// Open opens (or creates) the knowledge base at filePath and connects
// the configured AI services.
func Open(filePath string, opts ...IndexOption) (*Index, error) {
	options := &indexOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	store, err := badger.NewStore(filePath)
	if err != nil {
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		store.Close()
		return nil, err
	}

	idx, err := NewIndex(store, provider, opts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}
	return idx, nil
}

// NewIndex assembles an Index from an existing store and provider.
// Useful for tests; most callers want Open.
func NewIndex(store storage.ChunkStore, provider ai.Provider, opts ...IndexOption) (*Index, error) {
	options := &indexOptions{}
	for _, opt := range opts {
		opt(options)
	}

	pipeline, err := enrich.NewPipeline(store, provider, options.enrichOpts...)
	if err != nil {
		return nil, err
	}
	searcher, err := search.NewSearcher(store, provider)
	if err != nil {
		return nil, err
	}
	asker, err := chat.NewAsker(store, provider)
	if err != nil {
		return nil, err
	}

	return &Index{
		store:    store,
		provider: provider,
		pipeline: pipeline,
		searcher: searcher,
		asker:    asker,
		logger:   slog.Default().With("component", "askdb"),
		crawls:   make(map[string]context.CancelFunc),
	}, nil
}

// Close closes the AI provider and the storage backend.
func (idx *Index) Close() error {
	if err := idx.provider.Close(); err != nil {
		idx.logger.Error("error closing AI provider", "err", err)
	}
	if err := idx.store.Close(); err != nil {
		idx.logger.Error("error closing chunk store", "err", err)
		return err
	}
	return nil
}

// Crawl extracts the source's schema with the given crawler, builds
// and enriches chunks, and replaces the source's collection. Progress
// events from both crawling and enrichment flow to onProgress (may be
// nil). A second crawl for the same source while one is in flight is
// rejected with a conflict error; CancelCrawl stops an in-flight one.
func (idx *Index) Crawl(ctx context.Context, sourceId string, crawler schema.Crawler, onProgress schema.ProgressFunc) error {
	idx.mu.Lock()
	if _, busy := idx.crawls[sourceId]; busy {
		idx.mu.Unlock()
		return core.Errorf(core.KindConflict, "askdb.crawl",
			"a crawl is already in progress for source %s", sourceId)
	}
	crawlCtx, cancel := context.WithCancel(ctx)
	idx.crawls[sourceId] = cancel
	idx.mu.Unlock()

	defer func() {
		cancel()
		idx.mu.Lock()
		delete(idx.crawls, sourceId)
		idx.mu.Unlock()
	}()

	started := time.Now()
	md, err := crawler.Crawl(crawlCtx, onProgress)
	if err != nil {
		return err
	}

	chunks := schema.BuildChunks(sourceId, md, time.Now().UTC())
	if err := idx.pipeline.Run(crawlCtx, sourceId, chunks, onProgress); err != nil {
		return err
	}

	idx.logger.Info("crawl complete",
		"source", sourceId, "objects", md.ObjectCount(), "elapsed", time.Since(started))
	return nil
}

// CancelCrawl cancels the in-flight crawl for a source, if any.
// Returns true when there was one to cancel.
func (idx *Index) CancelCrawl(sourceId string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cancel, ok := idx.crawls[sourceId]
	if ok {
		cancel()
	}
	return ok
}

// Ask answers a question about a source's schema, streaming tokens to
// onToken. See chat.Asker.
func (idx *Index) Ask(ctx context.Context, sourceId, question string, history []core.ChatMessage, carriedSummary string, onToken func(string) error) (*chat.Answer, error) {
	return idx.asker.Ask(ctx, sourceId, question, history, carriedSummary, onToken)
}

// AskWithMonitor is Ask with a thinking-trace monitor.
func (idx *Index) AskWithMonitor(ctx context.Context, sourceId, question string, history []core.ChatMessage, carriedSummary string, onToken func(string) error, monitor chat.AskMonitor) (*chat.Answer, error) {
	return idx.asker.AskWithMonitor(ctx, sourceId, question, history, carriedSummary, onToken, monitor)
}

// SearchChunks runs a hybrid search over a source's indexed chunks.
func (idx *Index) SearchChunks(ctx context.Context, sourceId, query string, topK int) ([]*core.ScoredChunk, error) {
	return idx.searcher.FindChunks(ctx, sourceId, query, topK)
}

// Stats recomputes index statistics for a source.
func (idx *Index) Stats(ctx context.Context, sourceId string) (*core.IndexStats, error) {
	return idx.store.Stats(ctx, sourceId)
}

// ClearSource drops a source's collection.
func (idx *Index) ClearSource(ctx context.Context, sourceId string) error {
	return idx.store.Clear(ctx, sourceId)
}
