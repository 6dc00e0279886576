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

package chat

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/search"
	"github.com/poiesic/askdb/storage"
)

// broadResultLimit caps how many chunks a broad list/count question
// pulls into the prompt.
const broadResultLimit = 200

// Broad questions ask for an inventory rather than a lookup: a
// list/count verb near an object-kind noun.
var (
	broadVerbPattern  = regexp.MustCompile(`(?i)\b(list|show|count|how many|all)\b`)
	objectNounPattern = regexp.MustCompile(`(?i)\b(tables?|views?|(stored\s+)?procedures?|functions?|objects?)\b`)
)

func isBroadQuestion(question string) bool {
	return broadVerbPattern.MatchString(question) && objectNounPattern.MatchString(question)
}

// Asker orchestrates one conversational turn over an indexed source:
// retrieve, ground, fit, generate.
type Asker struct {
	store     storage.ChunkStore
	generator ai.Generator
	searcher  *search.Searcher
	window    *Window
	logger    *slog.Logger
}

// Option configures an Asker.
type Option func(*Asker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Asker) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAsker creates a new ask orchestrator.
func NewAsker(store storage.ChunkStore, provider ai.Provider, opts ...Option) (*Asker, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	a := &Asker{
		store:     store,
		generator: provider.Generator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	searcher, err := search.NewSearcher(store, provider, search.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	window, err := NewWindow(provider.Generator(), WithWindowLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.searcher = searcher
	a.window = window
	a.logger = a.logger.With("component", "chat")

	return a, nil
}

// Answer is the terminal state of one turn. Summary and History are
// what the caller persists for the next turn; History already
// includes this turn's question and reply.
type Answer struct {
	RetrievalContext *core.RetrievalContext
	Summary          string
	History          []core.ChatMessage
}

// Ask answers a question about a source's schema, streaming reply
// tokens to onToken as they arrive.
func (a *Asker) Ask(ctx context.Context, sourceId, question string, history []core.ChatMessage, carriedSummary string, onToken func(string) error) (*Answer, error) {
	return a.AskWithMonitor(ctx, sourceId, question, history, carriedSummary, onToken, nil)
}

// AskWithMonitor is Ask with a thinking-trace monitor. The monitor
// receives callbacks at each stage of the turn.
func (a *Asker) AskWithMonitor(ctx context.Context, sourceId, question string, history []core.ChatMessage, carriedSummary string, onToken func(string) error, monitor AskMonitor) (*Answer, error) {
	if monitor == nil {
		monitor = &noopAskMonitor{}
	}
	monitor.Start(question)

	rc, err := a.retrieve(ctx, sourceId, question, history, monitor)
	if err != nil {
		return nil, err
	}

	system := answerSystemPrompt(rc.Chunks)
	rc.TokenEstimate = core.EstimateTokens(system)

	fit, err := a.window.Fit(ctx, FitInput{
		SystemPrompt:   system,
		History:        history,
		CarriedSummary: carriedSummary,
		NewMessage:     question,
		Budget:         a.generator.ContextLength(),
	})
	if err != nil {
		return nil, err
	}
	monitor.AfterContext(len(fit.Messages), rc.TokenEstimate, fit.Summarized)

	var reply strings.Builder
	collect := func(token string) error {
		reply.WriteString(token)
		if onToken != nil {
			return onToken(token)
		}
		return nil
	}

	genStart := time.Now()
	if err := a.generator.Chat(ctx, system, fit.Messages, question, collect); err != nil {
		return nil, err
	}
	monitor.AfterGeneration(time.Since(genStart))

	now := time.Now().UTC()
	nextHistory := make([]core.ChatMessage, 0, len(fit.Tail)+2)
	nextHistory = append(nextHistory, fit.Tail...)
	nextHistory = append(nextHistory,
		core.ChatMessage{Role: core.RoleUser, Content: question, Timestamp: now},
		core.ChatMessage{Role: core.RoleAssistant, Content: reply.String(), Timestamp: now},
	)

	return &Answer{
		RetrievalContext: rc,
		Summary:          fit.Summary,
		History:          nextHistory,
	}, nil
}

// retrieve picks the grounding chunks for a question: the whole
// corpus for broad inventory questions, hybrid search otherwise.
func (a *Asker) retrieve(ctx context.Context, sourceId, question string, history []core.ChatMessage, monitor AskMonitor) (*core.RetrievalContext, error) {
	start := time.Now()

	if isBroadQuestion(question) {
		chunks, err := a.store.GetAll(ctx, sourceId, broadResultLimit)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("broad question, using full corpus", "source", sourceId, "chunks", len(chunks))
		return buildRetrievalContext(chunks, time.Since(start)), nil
	}

	query := question
	if len(history) > 0 {
		rewritten, err := a.generator.Generate(ctx, rewritePrompt(history, question), rewriteSystemPrompt)
		if err != nil {
			// Rewrite failures never abort the turn.
			a.logger.Warn("query rewrite failed, using raw question", "err", err)
		} else if trimmed := strings.TrimSpace(rewritten); trimmed != "" {
			query = trimmed
			monitor.QueryRewritten(question, trimmed)
		}
	}

	results, err := a.searcher.FindChunksWithMonitor(ctx, sourceId, query,
		search.DefaultTopK, nil, &searchMonitorAdapter{monitor: monitor})
	if err != nil {
		return nil, err
	}

	chunks := make([]*core.SchemaChunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	return buildRetrievalContext(chunks, time.Since(start)), nil
}

func buildRetrievalContext(chunks []*core.SchemaChunk, elapsed time.Duration) *core.RetrievalContext {
	rc := &core.RetrievalContext{
		Chunks:         chunks,
		ByType:         make(map[core.ObjectType]int),
		SearchDuration: elapsed,
	}
	for _, chunk := range chunks {
		rc.ByType[chunk.ObjectType]++
		rc.ObjectNames = append(rc.ObjectNames, chunk.QualifiedName())
	}
	return rc
}
