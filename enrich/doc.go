// Package enrich provides pipeline orchestration for enriching schema chunks.
//
// The Pipeline type drives two strictly ordered phases over a freshly
// crawled chunk set:
//   - Summarizing each chunk via the generation service, with a
//     bounded worker pool
//   - Embedding chunks in fixed-size batches via the embedding service
//
// The enriched set is then persisted as one atomic snapshot. The
// pipeline is synchronous and cancellable: a cancelled run stops
// within one unit of work and persists nothing.
package enrich
