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
	"strings"
	"time"

	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/core"
)

const (
	// passRatio is the fraction of the budget below which history
	// passes through untouched.
	passRatio = 0.9

	// firstSummaryKeep is how many trailing turns stay verbatim on
	// the first summarization of a conversation.
	firstSummaryKeep = 10

	// laterSummaryKeep is how many trailing turns stay verbatim once
	// a summary is already being carried.
	laterSummaryKeep = 5
)

// Window keeps a chat request inside a model's token budget,
// progressively summarizing older turns when the conversation grows.
type Window struct {
	generator ai.Generator
	logger    *slog.Logger
}

// WindowOption configures a Window.
type WindowOption func(*Window) error

// WithWindowLogger sets a custom logger.
// Default is slog.Default().
func WithWindowLogger(logger *slog.Logger) WindowOption {
	return func(w *Window) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWindow creates a new context window manager.
func NewWindow(generator ai.Generator, opts ...WindowOption) (*Window, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	w := &Window{
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "chat.window")
	return w, nil
}

// FitInput is one turn's worth of context to fit into the budget.
type FitInput struct {
	SystemPrompt   string
	History        []core.ChatMessage
	CarriedSummary string
	NewMessage     string
	Budget         int
}

// FitResult is the fitted context. Messages is the API history to
// send (a synthetic summary message first when one exists). Tail is
// the verbatim turns it ends with, for the caller to persist.
type FitResult struct {
	Messages   []core.ChatMessage
	Tail       []core.ChatMessage
	Summary    string
	Summarized bool
}

// Fit decides whether the candidate history fits the budget as-is,
// needs its older turns folded into a summary, or cannot fit at all.
// Token costs are estimated at four characters per token; the check
// is deliberately conservative.
func (w *Window) Fit(ctx context.Context, in FitInput) (*FitResult, error) {
	est := w.estimate(in, in.CarriedSummary, in.History)
	if est >= in.Budget {
		return nil, core.Errorf(core.KindBudgetExceeded, "chat.window",
			"conversation too long: estimated %d tokens against a budget of %d", est, in.Budget)
	}

	if float64(est) < passRatio*float64(in.Budget) {
		return w.passThrough(in), nil
	}

	keep := firstSummaryKeep
	if in.CarriedSummary != "" {
		keep = laterSummaryKeep
	}
	if len(in.History) <= keep {
		// Nothing precedes the retained tail; summarizing would
		// change nothing.
		return w.passThrough(in), nil
	}

	prefix := in.History[:len(in.History)-keep]
	tail := in.History[len(in.History)-keep:]

	w.logger.Debug("summarizing conversation prefix",
		"turns", len(prefix), "kept", len(tail), "estimatedTokens", est, "budget", in.Budget)

	fresh, err := w.generator.Generate(ctx, historySummaryPrompt(prefix), windowSummarySystemPrompt)
	if err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(fresh)
	if in.CarriedSummary != "" {
		summary = in.CarriedSummary + "\n\n" + summary
	}

	messages := make([]core.ChatMessage, 0, len(tail)+1)
	messages = append(messages, summaryMessage(summary))
	messages = append(messages, tail...)

	return &FitResult{
		Messages:   messages,
		Tail:       tail,
		Summary:    summary,
		Summarized: true,
	}, nil
}

func (w *Window) passThrough(in FitInput) *FitResult {
	messages := make([]core.ChatMessage, 0, len(in.History)+1)
	if in.CarriedSummary != "" {
		messages = append(messages, summaryMessage(in.CarriedSummary))
	}
	messages = append(messages, in.History...)
	return &FitResult{
		Messages:   messages,
		Tail:       in.History,
		Summary:    in.CarriedSummary,
		Summarized: false,
	}
}

// estimate prices the system prompt, the candidate history (carried
// summary included), and the new message.
func (w *Window) estimate(in FitInput, summary string, history []core.ChatMessage) int {
	est := core.EstimateTokens(in.SystemPrompt) + core.EstimateTokens(in.NewMessage)
	if summary != "" {
		est += core.EstimateTokens(summaryMessagePrefix + summary)
	}
	for _, msg := range history {
		est += core.EstimateTokens(msg.Content)
	}
	return est
}

func summaryMessage(summary string) core.ChatMessage {
	return core.ChatMessage{
		Role:      core.RoleAssistant,
		Content:   summaryMessagePrefix + summary,
		Timestamp: time.Now().UTC(),
	}
}
