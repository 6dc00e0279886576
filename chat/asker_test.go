package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/askdb/ai/mock"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/storage"
	"github.com/poiesic/askdb/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBroadQuestion(t *testing.T) {
	broad := []string{
		"list all tables",
		"How many stored procedures are there?",
		"show me the views",
		"count the functions in this database",
		"what are all the objects here",
	}
	for _, q := range broad {
		t.Run(q, func(t *testing.T) {
			assert.True(t, isBroadQuestion(q))
		})
	}

	narrow := []string{
		"what columns does users have?",
		"describe the orders table",
		"which table stores invoices?",
		"show me the definition of sp_report",
		"is there an index on email?",
	}
	for _, q := range narrow {
		t.Run(q, func(t *testing.T) {
			assert.False(t, isBroadQuestion(q))
		})
	}
}

func seedStore(t *testing.T, store storage.ChunkStore, names ...string) {
	t.Helper()
	var chunks []*core.SchemaChunk
	for _, name := range names {
		content := "Table dbo." + name + "\nColumns: id (int) PK"
		chunks = append(chunks, &core.SchemaChunk{
			Id:         core.IDFromContent("db1\x00" + content),
			SourceId:   "db1",
			ObjectType: core.ObjectTypeTable,
			ObjectName: name,
			SchemaName: "dbo",
			Content:    content,
			Summary:    "Stores " + name + ".",
			Embedding:  mock.DeterministicVector(content, 64),
			IndexedAt:  time.Now().UTC(),
		})
	}
	require.NoError(t, store.ReplaceAll(context.Background(), "db1", chunks))
}

func newTestAsker(t *testing.T) (*Asker, storage.ChunkStore, *mock.MockProvider) {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := mock.NewMockProvider().(*mock.MockProvider)
	asker, err := NewAsker(store, provider)
	require.NoError(t, err)
	return asker, store, provider
}

func TestAskStreamsAnswer(t *testing.T) {
	asker, store, _ := newTestAsker(t)
	seedStore(t, store, "users", "orders")

	var streamed strings.Builder
	answer, err := asker.Ask(context.Background(), "db1",
		"which table stores user accounts?", nil, "",
		func(token string) error {
			streamed.WriteString(token)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, "mock answer", streamed.String())

	// The turn is appended to the history to persist.
	require.Len(t, answer.History, 2)
	assert.Equal(t, core.RoleUser, answer.History[0].Role)
	assert.Equal(t, "which table stores user accounts?", answer.History[0].Content)
	assert.Equal(t, core.RoleAssistant, answer.History[1].Role)
	assert.Equal(t, "mock answer", answer.History[1].Content)

	require.NotNil(t, answer.RetrievalContext)
	assert.NotEmpty(t, answer.RetrievalContext.Chunks)
	assert.NotEmpty(t, answer.RetrievalContext.ObjectNames)
	assert.Greater(t, answer.RetrievalContext.TokenEstimate, 0)
}

func TestAskBroadQuestionUsesFullCorpus(t *testing.T) {
	asker, store, provider := newTestAsker(t)
	seedStore(t, store, "users", "orders", "invoices")

	var system string
	provider.GetMockGenerator().ChatFunc = func(ctx context.Context, systemPrompt string, history []core.ChatMessage, message string, onToken func(string) error) error {
		system = systemPrompt
		return onToken("three tables")
	}

	answer, err := asker.Ask(context.Background(), "db1", "list all tables", nil, "", nil)
	require.NoError(t, err)

	// Broad questions bypass similarity search entirely.
	assert.Zero(t, provider.GetMockEmbedder().CallCount())
	assert.Len(t, answer.RetrievalContext.Chunks, 3)

	for _, name := range []string{"users", "orders", "invoices"} {
		assert.Contains(t, system, "[table] dbo."+name)
	}
}

func TestAskRewritesFollowUpQuery(t *testing.T) {
	asker, store, provider := newTestAsker(t)
	seedStore(t, store, "users")

	provider.GetMockGenerator().GenerateFunc = func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		return "columns of dbo.users", nil
	}
	var embedded string
	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		embedded = text
		return mock.DeterministicVector(text, 64), nil
	}

	history := []core.ChatMessage{
		{Role: core.RoleUser, Content: "tell me about the users table", Timestamp: time.Now().UTC()},
		{Role: core.RoleAssistant, Content: "dbo.users stores accounts", Timestamp: time.Now().UTC()},
	}

	monitor := &captureMonitor{}
	_, err := asker.AskWithMonitor(context.Background(), "db1",
		"what columns does it have?", history, "", nil, monitor)
	require.NoError(t, err)

	assert.Equal(t, "columns of dbo.users", embedded)
	assert.Equal(t, "columns of dbo.users", monitor.rewritten)
}

func TestAskRewriteFailureFallsBack(t *testing.T) {
	asker, store, provider := newTestAsker(t)
	seedStore(t, store, "users")

	provider.GetMockGenerator().GenerateFunc = func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		return "", errors.New("rewrite failed")
	}
	var embedded string
	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		embedded = text
		return mock.DeterministicVector(text, 64), nil
	}

	history := []core.ChatMessage{
		{Role: core.RoleUser, Content: "tell me about users", Timestamp: time.Now().UTC()},
	}

	_, err := asker.Ask(context.Background(), "db1",
		"what columns does it have?", history, "", nil)
	require.NoError(t, err, "rewrite failure must never abort the turn")
	assert.Equal(t, "what columns does it have?", embedded)
}

func TestAskEmptyIndexPrompt(t *testing.T) {
	asker, _, provider := newTestAsker(t)

	var system string
	provider.GetMockGenerator().ChatFunc = func(ctx context.Context, systemPrompt string, history []core.ChatMessage, message string, onToken func(string) error) error {
		system = systemPrompt
		return nil
	}

	_, err := asker.Ask(context.Background(), "db1",
		"which table stores invoices?", nil, "", nil)
	require.NoError(t, err)
	assert.Contains(t, system, "index may be empty")
}

func TestAskBudgetExceeded(t *testing.T) {
	asker, store, provider := newTestAsker(t)
	seedStore(t, store, "users")
	provider.GetMockGenerator().ContextLengthValue = 10

	_, err := asker.Ask(context.Background(), "db1",
		"which table stores user accounts and what are its columns?", nil, "", nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindBudgetExceeded))
	assert.Zero(t, provider.GetMockGenerator().ChatCallCount())
}

// captureMonitor records the stages of one turn.
type captureMonitor struct {
	rewritten string
	stages    []string
}

func (m *captureMonitor) Start(question string)              { m.stages = append(m.stages, "start") }
func (m *captureMonitor) QueryRewritten(_, rewritten string) { m.rewritten = rewritten }

func (m *captureMonitor) AfterEmbedding(_ int, _ time.Duration) {
	m.stages = append(m.stages, "embedding")
}

func (m *captureMonitor) AfterSearch(_ []*core.ScoredChunk, _ time.Duration) {
	m.stages = append(m.stages, "search")
}

func (m *captureMonitor) AfterContext(_, _ int, _ bool) {
	m.stages = append(m.stages, "context")
}

func (m *captureMonitor) AfterGeneration(_ time.Duration) {
	m.stages = append(m.stages, "generation")
}
