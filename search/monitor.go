package search

import (
	"time"

	"github.com/poiesic/askdb/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and timings
// during retrieval.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimensions int, elapsed time.Duration)
	AfterSearch(results []*core.ScoredChunk, elapsed time.Duration)
	Finish(results []*core.ScoredChunk)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                  {}
func (n *noopMonitor) AfterEmbedding(_ int, _ time.Duration)           {}
func (n *noopMonitor) AfterSearch(_ []*core.ScoredChunk, _ time.Duration) {}
func (n *noopMonitor) Finish(_ []*core.ScoredChunk)                    {}
