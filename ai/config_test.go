package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
	assert.Equal(t, 8192, cfg.ContextLength)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://models.internal:8000/v1"),
		WithChatModel("qwen2.5:7b"),
		WithContextLength(32768),
	)
	assert.Equal(t, "http://models.internal:8000/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://models.internal:8000/v1", cfg.ChatHost)
	assert.Equal(t, "qwen2.5:7b", cfg.ChatModel)
	assert.Equal(t, 32768, cfg.ContextLength)

	// Split hosts override the shared one.
	cfg = NewConfig(
		WithEmbeddingHost("http://embed.internal:8000/v1"),
		WithChatHost("http://chat.internal:8000/v1"),
		WithEmbeddingModel("text-embedding-3-small"),
	)
	assert.Equal(t, "http://embed.internal:8000/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://chat.internal:8000/v1", cfg.ChatHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
}

func TestNormalizeAddsV1Suffix(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"http://localhost:11434", "http://localhost:11434/v1"},
		{"http://localhost:11434/", "http://localhost:11434/v1"},
		{"http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"", ""},
	}
	for _, tc := range cases {
		cfg := &Config{EmbeddingHost: tc.host, ChatHost: tc.host}
		cfg.Normalize()
		assert.Equal(t, tc.want, cfg.EmbeddingHost, "embedding host %q", tc.host)
		assert.Equal(t, tc.want, cfg.ChatHost, "chat host %q", tc.host)
	}
}

func TestValidateNormalizesFirst(t *testing.T) {
	cfg := NewConfig(WithHost("http://localhost:11434"))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate ConfigOption
	}{
		{"missing embedding host", WithEmbeddingHost("")},
		{"missing chat host", WithChatHost("")},
		{"missing embedding model", WithEmbeddingModel("")},
		{"missing chat model", WithChatModel("")},
		{"zero context length", WithContextLength(0)},
		{"negative context length", WithContextLength(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig(tc.mutate)
			assert.Error(t, cfg.Validate())
		})
	}
}
