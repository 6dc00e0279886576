package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/askdb/core"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a deterministic canned summary.
	GenerateFunc func(ctx context.Context, prompt, systemPrompt string) (string, error)

	// ChatFunc is called by Chat if set.
	// If nil, streams a short canned answer token by token.
	ChatFunc func(ctx context.Context, systemPrompt string, history []core.ChatMessage, message string, onToken func(string) error) error

	// ContextLengthValue is returned by ContextLength. Default 8192.
	ContextLengthValue int

	// AvailableErr is returned by Available. Default nil.
	AvailableErr error

	mu            sync.Mutex
	generateCalls int
	chatCalls     int
	prompts       []string
}

// NewMockGenerator creates a mock generator with default behavior.
// Note: returns the concrete type so tests can inject behavior and
// assert call counts.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{ContextLengthValue: 8192}
}

// Generate returns a canned completion or delegates to GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	m.mu.Lock()
	m.generateCalls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemPrompt)
	}

	// Deterministic default: echo the first prompt line as a summary.
	line, _, _ := strings.Cut(prompt, "\n")
	return "Summary: " + line, nil
}

// Chat streams a canned answer or delegates to ChatFunc.
func (m *MockGenerator) Chat(ctx context.Context, systemPrompt string, history []core.ChatMessage, message string, onToken func(string) error) error {
	m.mu.Lock()
	m.chatCalls++
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, systemPrompt, history, message, onToken)
	}

	for _, token := range []string{"mock ", "answer"} {
		if err := onToken(token); err != nil {
			return err
		}
	}
	return nil
}

// ContextLength returns the configured token budget.
func (m *MockGenerator) ContextLength() int {
	if m.ContextLengthValue > 0 {
		return m.ContextLengthValue
	}
	return 8192
}

// Available returns the injected availability error, if any.
func (m *MockGenerator) Available(ctx context.Context) error {
	return m.AvailableErr
}

// GenerateCallCount returns how many times Generate was called.
func (m *MockGenerator) GenerateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// ChatCallCount returns how many times Chat was called.
func (m *MockGenerator) ChatCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatCalls
}

// Prompts returns the prompts passed to Generate, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears call counts and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls = 0
	m.chatCalls = 0
	m.prompts = nil
	m.GenerateFunc = nil
	m.ChatFunc = nil
	m.AvailableErr = nil
}
