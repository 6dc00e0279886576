package chat

import (
	"time"

	"github.com/poiesic/askdb/core"
)

// AskMonitor provides hooks to observe one chat turn as it moves
// through retrieval, context fitting, and generation. Implement it to
// surface a thinking trace to the caller.
type AskMonitor interface {
	Start(question string)
	QueryRewritten(original, rewritten string)
	AfterEmbedding(dimensions int, elapsed time.Duration)
	AfterSearch(results []*core.ScoredChunk, elapsed time.Duration)
	AfterContext(messageCount, tokenEstimate int, summarized bool)
	AfterGeneration(elapsed time.Duration)
}

// noopAskMonitor is a no-op implementation of AskMonitor
type noopAskMonitor struct{}

var _ AskMonitor = (*noopAskMonitor)(nil)

func (n *noopAskMonitor) Start(_ string)                                  {}
func (n *noopAskMonitor) QueryRewritten(_, _ string)                      {}
func (n *noopAskMonitor) AfterEmbedding(_ int, _ time.Duration)           {}
func (n *noopAskMonitor) AfterSearch(_ []*core.ScoredChunk, _ time.Duration) {}
func (n *noopAskMonitor) AfterContext(_, _ int, _ bool)                   {}
func (n *noopAskMonitor) AfterGeneration(_ time.Duration)                 {}

// searchMonitorAdapter forwards the searcher's stage callbacks into
// an AskMonitor.
type searchMonitorAdapter struct {
	monitor AskMonitor
}

func (a *searchMonitorAdapter) Start(_ string) {}

func (a *searchMonitorAdapter) AfterEmbedding(dimensions int, elapsed time.Duration) {
	a.monitor.AfterEmbedding(dimensions, elapsed)
}

func (a *searchMonitorAdapter) AfterSearch(results []*core.ScoredChunk, elapsed time.Duration) {
	a.monitor.AfterSearch(results, elapsed)
}

func (a *searchMonitorAdapter) Finish(_ []*core.ScoredChunk) {}
