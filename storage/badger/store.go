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

package badger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/storage"
)

// rrfK is the reciprocal rank fusion constant. Rank contributions are
// 1/(rrfK+rank+1) with 0-based ranks.
const rrfK = 60

// Store implements storage.ChunkStore on BadgerDB.
//
// Each source gets an independent collection addressed by its
// sanitized source id. A collection's keys are versioned by a
// generation number; a per-source pointer key names the active
// generation. Replacing a collection writes the next generation in as
// many transactions as it needs and then flips the pointer, so the
// write is never capped by badger's transaction size and a failure
// leaves the old generation live. Readers share the source's
// collection lock; writers hold it exclusively.
type Store struct {
	backend *Backend
	logger  *slog.Logger

	// flushEvery forces the batched snapshot writer to split after
	// this many operations. Zero splits only when badger reports the
	// open transaction is full.
	flushEvery int

	mu      sync.Mutex
	sources map[string]*sourceState
}

var _ storage.ChunkStore = (*Store)(nil)

// sourceState holds the per-source collection lock and the cached
// generation pointer and coarse vector index. The cache fields have
// their own mutex so concurrent readers can fill them under the
// shared collection lock.
type sourceState struct {
	mu sync.RWMutex // collection lock: writers exclusive, readers shared

	cacheMu     sync.Mutex
	gen         uint64
	genLoaded   bool
	index       *vectorIndex
	indexLoaded bool
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore opens a BadgerDB-backed chunk store at the given path.
//
// Returns storage.ChunkStore interface to enforce abstraction.
func NewStore(path string, opts ...Option) (storage.ChunkStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStore(backend, opts...)
}

func newStore(backend *Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
		sources: make(map[string]*sourceState),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			backend.Close()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "chunkstore")
	return s, nil
}

// Close closes the storage backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// sourceState returns the state record for a sanitized source,
// creating it on first use.
func (s *Store) sourceState(src string) *sourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sources[src]
	if !ok {
		st = &sourceState{}
		s.sources[src] = st
	}
	return st
}

func (s *Store) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// generation resolves the source's active collection generation,
// loading the stored pointer on first access. Generation 0 means the
// source has never been written; reads against it find nothing.
func (s *Store) generation(st *sourceState, src string) (uint64, error) {
	st.cacheMu.Lock()
	defer st.cacheMu.Unlock()
	if st.genLoaded {
		return st.gen, nil
	}

	var gen uint64
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionKey(src))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			g, _, err := varint.Uint64.Unmarshal(val)
			if err != nil {
				return fmt.Errorf("%w: generation pointer: %w", storage.ErrSerializationFailed, err)
			}
			gen = g
			return nil
		})
	}, false)
	if err != nil {
		return 0, err
	}

	st.gen = gen
	st.genLoaded = true
	return gen, nil
}

func marshalGeneration(gen uint64) []byte {
	buf := make([]byte, varint.Uint64.Size(gen))
	varint.Uint64.Marshal(gen, buf)
	return buf
}

// ReplaceAll atomically replaces the source's collection with the
// given chunks. The snapshot is written under the next generation,
// batched across transactions, and becomes visible only when the
// final operation flips the source's generation pointer; a failure
// anywhere leaves the previous generation live. Readers are excluded
// for the duration by the source's collection lock.
func (s *Store) ReplaceAll(ctx context.Context, sourceId string, chunks []*core.SchemaChunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src := sanitizeSource(sourceId)
	st := s.sourceState(src)
	st.mu.Lock()
	defer st.mu.Unlock()

	oldGen, err := s.generation(st, src)
	if err != nil {
		return err
	}
	newGen := oldGen + 1

	// Cluster before writing so no transaction stays open through it.
	embedded := embeddedSorted(chunks)
	var ix *vectorIndex
	if len(embedded) >= minANNChunks {
		ix = buildVectorIndex(embedded)
	}

	// A previously interrupted replace may have leaked keys under this
	// generation number; purge them before writing.
	if err := s.deleteGeneration(src, newGen); err != nil {
		return err
	}

	if err := s.writeSnapshot(src, newGen, chunks, ix); err != nil {
		if purgeErr := s.deleteGeneration(src, newGen); purgeErr != nil {
			s.logger.Warn("failed to purge partial snapshot",
				"source", sourceId, "err", purgeErr)
		}
		return err
	}

	st.cacheMu.Lock()
	st.gen = newGen
	st.genLoaded = true
	st.index = ix
	st.indexLoaded = true
	st.cacheMu.Unlock()

	// The old generation is unreachable now; failing to delete it only
	// leaks keys, and a later replace of the same generation number
	// purges them.
	if err := s.deleteGeneration(src, oldGen); err != nil {
		s.logger.Warn("failed to delete previous generation",
			"source", sourceId, "err", err)
	}

	s.logger.Debug("collection replaced",
		"source", sourceId, "chunks", len(chunks), "generation", newGen, "clustered", ix != nil)
	return nil
}

// writeSnapshot writes every key of a generation and finishes by
// flipping the source's generation pointer. The pointer write is the
// last operation, so an interrupted snapshot never becomes active.
func (s *Store) writeSnapshot(src string, gen uint64, chunks []*core.SchemaChunk, ix *vectorIndex) error {
	tx := s.backend.newBatchedTx(s.flushEvery)
	defer tx.Discard()

	for _, chunk := range chunks {
		if err := tx.Set(makeChunkKey(src, gen, chunk.Id), storage.MarshalChunk(chunk)); err != nil {
			return err
		}
		if err := writePostings(tx, src, gen, chunk); err != nil {
			return err
		}
	}
	if ix != nil {
		if err := tx.Set(makeVectorIndexKey(src, gen), marshalVectorIndex(ix)); err != nil {
			return err
		}
	}
	if err := tx.Set(makeCollectionKey(src), marshalGeneration(gen)); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteGeneration removes every key a generation owns, in batched
// transactions. Generation 0 never has keys.
func (s *Store) deleteGeneration(src string, gen uint64) error {
	if gen == 0 {
		return nil
	}
	keys, err := s.collectKeys(
		makeChunkPrefix(src, gen),
		makeLexicalPrefix(src, gen),
		makeVectorIndexKey(src, gen),
	)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	tx := s.backend.newBatchedTx(s.flushEvery)
	defer tx.Discard()
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// collectKeys gathers every key under the given prefixes in one read
// snapshot.
func (s *Store) collectKeys(prefixes ...[]byte) ([][]byte, error) {
	var keys [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, prefix := range prefixes {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				keys = append(keys, iter.Item().KeyCopy(nil))
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// embeddedSorted returns the embedded chunks ordered by ID, the
// canonical input order for clustering.
func embeddedSorted(chunks []*core.SchemaChunk) []*core.SchemaChunk {
	embedded := make([]*core.SchemaChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			embedded = append(embedded, chunk)
		}
	}
	slices.SortFunc(embedded, func(a, b *core.SchemaChunk) int {
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})
	return embedded
}

// GetAll returns up to limit chunks from the source's collection in
// ID order. A missing collection yields an empty result.
func (s *Store) GetAll(ctx context.Context, sourceId string, limit int) ([]*core.SchemaChunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := sanitizeSource(sourceId)
	st := s.sourceState(src)
	st.mu.RLock()
	defer st.mu.RUnlock()

	gen, err := s.generation(st, src)
	if err != nil {
		return nil, err
	}

	var chunks []*core.SchemaChunk
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(src, gen)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(chunks) >= limit {
				break
			}
			var chunk *core.SchemaChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Search runs a cosine top-K query over the source's embeddings. When
// opts.QueryText is set, a lexical term search runs alongside and the
// two ranked lists are fused by reciprocal rank fusion; a lexical
// failure degrades to vector-only results.
func (s *Store) Search(ctx context.Context, sourceId string, queryVector []float32, opts storage.SearchOptions) ([]*core.ScoredChunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	src := sanitizeSource(sourceId)
	st := s.sourceState(src)
	st.mu.RLock()
	defer st.mu.RUnlock()

	gen, err := s.generation(st, src)
	if err != nil {
		return nil, err
	}

	depth := max(2*opts.TopK, 60)

	vectorRanked, err := s.vectorSearch(st, src, gen, queryVector, opts.TypeFilter, depth)
	if err != nil {
		return nil, err
	}

	if opts.QueryText == "" {
		return cut(vectorRanked, opts.TopK), nil
	}

	lexicalRanked, err := s.lexicalCandidates(src, gen, opts.QueryText, opts.TypeFilter, depth)
	if err != nil {
		s.logger.Warn("lexical search failed, degrading to vector-only",
			"source", sourceId, "err", err)
		return cut(vectorRanked, opts.TopK), nil
	}
	if len(lexicalRanked) == 0 {
		return cut(vectorRanked, opts.TopK), nil
	}

	fused := fuseRRF(vectorRanked, lexicalRanked)
	return cut(fused, opts.TopK), nil
}

// vectorSearch returns the top candidates by cosine similarity,
// descending. Small collections are scanned exactly; collections with
// a stored centroid index probe only the nearest clusters.
func (s *Store) vectorSearch(st *sourceState, src string, gen uint64, query []float32, typeFilter *core.ObjectType, depth int) ([]*core.ScoredChunk, error) {
	ix, err := s.loadIndex(st, src, gen)
	if err != nil {
		return nil, err
	}

	var results []*core.ScoredChunk
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		score := func(chunk *core.SchemaChunk) {
			if len(chunk.Embedding) == 0 {
				return
			}
			if typeFilter != nil && chunk.ObjectType != *typeFilter {
				return
			}
			results = append(results, &core.ScoredChunk{
				Chunk: chunk,
				Score: float64(dotProduct(query, chunk.Embedding)),
			})
		}

		if ix != nil {
			for _, id := range ix.probe(query) {
				chunk, err := readChunk(tx, src, gen, id)
				if err != nil {
					return err
				}
				if chunk != nil {
					score(chunk)
				}
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(src, gen)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.SchemaChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			score(chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sortScored(results)
	return cut(results, depth), nil
}

// lexicalCandidates resolves lexical hits to chunks, applying the
// type filter, ranked by summed term frequency.
func (s *Store) lexicalCandidates(src string, gen uint64, query string, typeFilter *core.ObjectType, depth int) ([]*core.ScoredChunk, error) {
	// Over-fetch so type filtering does not starve the ranked list.
	hits, err := s.lexicalSearch(src, gen, query, 0)
	if err != nil {
		return nil, err
	}

	var results []*core.ScoredChunk
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		for _, hit := range hits {
			if len(results) >= depth {
				break
			}
			chunk, err := readChunk(tx, src, gen, hit.id)
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			if typeFilter != nil && chunk.ObjectType != *typeFilter {
				continue
			}
			results = append(results, &core.ScoredChunk{
				Chunk: chunk,
				Score: float64(hit.score),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// fuseRRF merges two ranked lists by reciprocal rank fusion: each
// chunk accumulates 1/(rrfK+rank+1) per list it appears in, and the
// merged list is sorted by fused score.
func fuseRRF(lists ...[]*core.ScoredChunk) []*core.ScoredChunk {
	fused := make(map[core.ID]*core.ScoredChunk)
	for _, list := range lists {
		for rank, sc := range list {
			contribution := 1.0 / float64(rrfK+rank+1)
			if existing, ok := fused[sc.Chunk.Id]; ok {
				existing.Score += contribution
			} else {
				fused[sc.Chunk.Id] = &core.ScoredChunk{
					Chunk: sc.Chunk,
					Score: contribution,
				}
			}
		}
	}

	results := make([]*core.ScoredChunk, 0, len(fused))
	for _, sc := range fused {
		results = append(results, sc)
	}
	sortScored(results)
	return results
}

// sortScored orders by score descending with ID as the deterministic
// tiebreak.
func sortScored(results []*core.ScoredChunk) {
	slices.SortFunc(results, func(a, b *core.ScoredChunk) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Chunk.Id < b.Chunk.Id {
			return -1
		}
		if a.Chunk.Id > b.Chunk.Id {
			return 1
		}
		return 0
	})
}

func cut(results []*core.ScoredChunk, limit int) []*core.ScoredChunk {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// loadIndex returns the source's cached centroid index for the active
// generation, loading the stored one on first access. A nil index
// means exact scan.
func (s *Store) loadIndex(st *sourceState, src string, gen uint64) (*vectorIndex, error) {
	st.cacheMu.Lock()
	defer st.cacheMu.Unlock()

	if st.indexLoaded {
		return st.index, nil
	}

	var ix *vectorIndex
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorIndexKey(src, gen))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ix, err = unmarshalVectorIndex(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}

	st.index = ix
	st.indexLoaded = true
	return ix, nil
}

// readChunk fetches one chunk record, or nil when absent.
func readChunk(tx *badger.Txn, src string, gen uint64, id core.ID) (*core.SchemaChunk, error) {
	item, err := tx.Get(makeChunkKey(src, gen, id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var chunk *core.SchemaChunk
	err = item.Value(func(val []byte) error {
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// Clear drops the source's collection. The generation pointer goes
// first, so an interrupted clear leaves at worst an unreachable
// partial generation. Idempotent on a missing collection.
func (s *Store) Clear(ctx context.Context, sourceId string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src := sanitizeSource(sourceId)
	st := s.sourceState(src)
	st.mu.Lock()
	defer st.mu.Unlock()

	gen, err := s.generation(st, src)
	if err != nil {
		return err
	}
	if gen == 0 {
		return nil
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCollectionKey(src)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	st.cacheMu.Lock()
	st.gen = 0
	st.genLoaded = true
	st.index = nil
	st.indexLoaded = true
	st.cacheMu.Unlock()

	if err := s.deleteGeneration(src, gen); err != nil {
		s.logger.Warn("failed to delete cleared generation",
			"source", sourceId, "err", err)
	}
	return nil
}

// Stats recomputes aggregate statistics by scanning the source's
// stored chunks. Never persisted, so it cannot drift from the data.
func (s *Store) Stats(ctx context.Context, sourceId string) (*core.IndexStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := sanitizeSource(sourceId)
	st := s.sourceState(src)
	st.mu.RLock()
	defer st.mu.RUnlock()

	gen, err := s.generation(st, src)
	if err != nil {
		return nil, err
	}

	stats := &core.IndexStats{ByType: make(map[core.ObjectType]int)}
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(src, gen)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.SchemaChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			stats.TotalChunks++
			stats.ByType[chunk.ObjectType]++
			if chunk.Summary != "" {
				stats.WithSummary++
			}
			if len(chunk.Embedding) > 0 {
				stats.WithEmbedding++
			}
			if chunk.IndexedAt.After(stats.LastIndexedAt) {
				stats.LastIndexedAt = chunk.IndexedAt
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
