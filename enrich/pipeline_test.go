package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/askdb/ai/mock"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks(n int) []*core.SchemaChunk {
	chunks := make([]*core.SchemaChunk, n)
	names := []string{"users", "orders", "invoices", "sp_report", "items", "v_sales"}
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		content := "Table dbo." + name + "\nColumns: id (int) PK"
		chunks[i] = &core.SchemaChunk{
			Id:         core.IDFromContent("db1\x00" + content + string(rune('0'+i))),
			SourceId:   "db1",
			ObjectType: core.ObjectTypeTable,
			ObjectName: name,
			SchemaName: "dbo",
			Content:    content,
			IndexedAt:  time.Now().UTC(),
		}
	}
	return chunks
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *mock.MockProvider, *collector) {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := mock.NewMockProvider().(*mock.MockProvider)
	pipeline, err := NewPipeline(store, provider, opts...)
	require.NoError(t, err)
	return pipeline, provider, &collector{}
}

// collector records progress events for assertions.
type collector struct {
	mu     sync.Mutex
	events []core.Progress
}

func (c *collector) record(p core.Progress) {
	c.mu.Lock()
	c.events = append(c.events, p)
	c.mu.Unlock()
}

func (c *collector) byPhase(phase core.Phase) []core.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []core.Progress
	for _, e := range c.events {
		if e.Phase == phase {
			out = append(out, e)
		}
	}
	return out
}

func TestNewPipelineValidation(t *testing.T) {
	provider := mock.NewMockProvider()

	_, err := NewPipeline(nil, provider)
	assert.ErrorIs(t, err, ErrStoreRequired)

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	_, err = NewPipeline(store, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestRunEnrichesAndStores(t *testing.T) {
	pipeline, _, progress := newTestPipeline(t, WithConcurrency(2))
	chunks := testChunks(4)

	err := pipeline.Run(context.Background(), "db1", chunks, progress.record)
	require.NoError(t, err)

	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk.Summary)
		assert.NotEmpty(t, chunk.Embedding)
	}

	summarizing := progress.byPhase(core.PhaseSummarizing)
	require.Len(t, summarizing, 4)
	for i, e := range summarizing {
		assert.Equal(t, i+1, e.Current, "summarizing progress must be monotone")
		assert.Equal(t, 4, e.Total)
		assert.NotEmpty(t, e.ObjectName)
	}

	embedding := progress.byPhase(core.PhaseEmbedding)
	require.Len(t, embedding, 1, "4 chunks fit in one batch of 32")
	assert.Equal(t, 4, embedding[0].Current)
	assert.Equal(t, 4, embedding[0].Total)

	storing := progress.byPhase(core.PhaseStoring)
	require.Len(t, storing, 1)
	assert.Equal(t, 1, storing[0].Current)
	assert.Equal(t, 1, storing[0].Total)

	stored, err := pipeline.store.GetAll(context.Background(), "db1", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestRunZeroChunks(t *testing.T) {
	pipeline, provider, progress := newTestPipeline(t)

	err := pipeline.Run(context.Background(), "db1", nil, progress.record)
	require.NoError(t, err)

	storing := progress.byPhase(core.PhaseStoring)
	require.Len(t, storing, 1)
	assert.Equal(t, 0, storing[0].Current)
	assert.Equal(t, 1, storing[0].Total)

	assert.Zero(t, provider.GetMockGenerator().GenerateCallCount())
	assert.Zero(t, provider.GetMockEmbedder().CallCount())
}

func TestRunBatchesEmbeddings(t *testing.T) {
	pipeline, provider, progress := newTestPipeline(t, WithBatchSize(2))
	chunks := testChunks(5)

	var batchSizes []int
	embedder := provider.GetMockEmbedder()
	embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		batchSizes = append(batchSizes, len(texts))
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.DeterministicVector(text, 8)
		}
		return vectors, nil
	}

	err := pipeline.Run(context.Background(), "db1", chunks, progress.record)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, batchSizes)

	embedding := progress.byPhase(core.PhaseEmbedding)
	require.Len(t, embedding, 3)
	assert.Equal(t, 2, embedding[0].Current)
	assert.Equal(t, 4, embedding[1].Current)
	assert.Equal(t, 5, embedding[2].Current)
}

func TestRunCancellationStopsPromptly(t *testing.T) {
	pipeline, provider, progress := newTestPipeline(t, WithConcurrency(1))
	chunks := testChunks(3)

	ctx, cancel := context.WithCancel(context.Background())
	generator := provider.GetMockGenerator()
	generator.GenerateFunc = func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		// Cancel during the first summarization.
		cancel()
		return "a summary", nil
	}

	err := pipeline.Run(ctx, "db1", chunks, progress.record)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindCancelled))
	assert.ErrorIs(t, err, context.Canceled)

	// The worker finished its unit of work but took nothing further.
	assert.Equal(t, 1, generator.GenerateCallCount())
	assert.Zero(t, provider.GetMockEmbedder().CallCount())

	// Nothing was persisted.
	stored, err := pipeline.store.GetAll(context.Background(), "db1", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRunSummarizeErrorPropagates(t *testing.T) {
	pipeline, provider, _ := newTestPipeline(t, WithConcurrency(1))
	chunks := testChunks(3)

	boom := errors.New("model exploded")
	provider.GetMockGenerator().GenerateFunc = func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		return "", boom
	}

	err := pipeline.Run(context.Background(), "db1", chunks, nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, provider.GetMockEmbedder().CallCount())
}

func TestRunEmbedCountMismatch(t *testing.T) {
	pipeline, provider, _ := newTestPipeline(t)
	chunks := testChunks(3)

	provider.GetMockEmbedder().EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.1}}, nil
	}

	err := pipeline.Run(context.Background(), "db1", chunks, nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindMalformedResponse))

	stored, err := pipeline.store.GetAll(context.Background(), "db1", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
