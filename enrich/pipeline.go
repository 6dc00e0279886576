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

package enrich

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/storage"
)

const (
	defaultConcurrency = 5
	defaultBatchSize   = 32
)

// Pipeline enriches freshly built chunks with summaries and
// embeddings, then persists the whole set as one snapshot.
//
// Enrichment is two strictly ordered phases: bounded-concurrency
// summarization over a shared work queue, then sequential batched
// embedding. Cancellation is observed before every unit of work; a
// cancelled run persists nothing.
type Pipeline struct {
	store       storage.ChunkStore
	embedder    ai.Embedder
	generator   ai.Generator
	concurrency int
	batchSize   int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency sets the summarization worker pool width.
// Default is 5. Values below 1 are clamped to 1.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
		return nil
	}
}

// WithBatchSize sets how many chunks go into one embedding call.
// Default is 32. Values below 1 are clamped to 1.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new enrichment pipeline.
func NewPipeline(store storage.ChunkStore, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		store:       store,
		embedder:    provider.Embedder(),
		generator:   provider.Generator(),
		concurrency: defaultConcurrency,
		batchSize:   defaultBatchSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "enrich")

	return p, nil
}

// Run summarizes, embeds, and stores the chunks for one source.
// onProgress may be nil. On any error (including cancellation)
// nothing is persisted and the source's previous collection is left
// untouched.
func (p *Pipeline) Run(ctx context.Context, sourceId string, chunks []*core.SchemaChunk, onProgress func(core.Progress)) error {
	progress := func(phase core.Phase, current, total int, objectName string) {
		if onProgress != nil {
			onProgress(core.Progress{
				SourceId:   sourceId,
				Phase:      phase,
				Current:    current,
				Total:      total,
				ObjectName: objectName,
			})
		}
	}

	if len(chunks) == 0 {
		progress(core.PhaseStoring, 0, 1, "")
		return nil
	}

	if err := p.summarize(ctx, chunks, progress); err != nil {
		return err
	}
	if err := p.embed(ctx, chunks, progress); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return core.Cancelled("enrich.run", err)
	}
	if err := p.store.ReplaceAll(ctx, sourceId, chunks); err != nil {
		return err
	}
	progress(core.PhaseStoring, 1, 1, "")

	p.logger.Info("enrichment complete", "source", sourceId, "chunks", len(chunks))
	return nil
}

type progressFn func(phase core.Phase, current, total int, objectName string)

// summarize runs the bounded-concurrency summarization phase. Workers
// pull chunk indices from a shared queue and stop within one unit of
// work on cancellation or first error.
func (p *Pipeline) summarize(ctx context.Context, chunks []*core.SchemaChunk, progress progressFn) error {
	workers := p.concurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	queue := make(chan int, len(chunks))
	for i := range chunks {
		queue <- i
	}
	close(queue)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		firstErr  error
	)
	total := len(chunks)

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	stopped := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			for idx := range queue {
				if stopped() {
					return
				}
				if err := ctx.Err(); err != nil {
					setErr(core.Cancelled("enrich.summarize", err))
					return
				}

				chunk := chunks[idx]
				reply, err := p.generator.Generate(ctx, summaryPrompt(chunk), summarySystemPrompt)
				if err != nil {
					setErr(err)
					return
				}
				chunk.Summary = strings.TrimSpace(reply)

				// Emitting under the lock keeps current monotone for
				// the observer.
				mu.Lock()
				completed++
				current := completed
				progress(core.PhaseSummarizing, current, total, chunk.ObjectName)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			setErr(submitErr)
			break
		}
	}

	wg.Wait()
	return firstErr
}

// embed runs the sequential batched embedding phase.
func (p *Pipeline) embed(ctx context.Context, chunks []*core.SchemaChunk, progress progressFn) error {
	total := len(chunks)
	for offset := 0; offset < total; offset += p.batchSize {
		if err := ctx.Err(); err != nil {
			return core.Cancelled("enrich.embed", err)
		}

		end := offset + p.batchSize
		if end > total {
			end = total
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = embeddingText(chunk)
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return core.Errorf(core.KindMalformedResponse, "enrich.embed",
				"embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vectors))
		}

		for i, vector := range vectors {
			batch[i].Embedding = vector
		}
		progress(core.PhaseEmbedding, end, total, "")
	}
	return nil
}
