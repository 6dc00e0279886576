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

package openai

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client        llms.Model
	host          string
	contextLength int
	logger        *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken("none"),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:        client,
		host:          config.ChatHost,
		contextLength: config.ContextLength,
		logger:        slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate produces a single non-streamed completion.
func (g *Generator) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", classifyErr("ai.generate", err)
	}

	if len(response.Choices) < 1 {
		return "", malformed("ai.generate", "no choices returned from model")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Chat streams a completion for message given the prior history,
// forwarding tokens to onToken as they arrive.
func (g *Generator) Chat(ctx context.Context, systemPrompt string, history []core.ChatMessage, message string, onToken func(string) error) error {
	content := make([]llms.MessageContent, 0, len(history)+2)
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
	})
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == core.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(message)},
	})

	_, err := g.client.GenerateContent(ctx, content,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onToken(string(chunk))
		}))
	if err != nil {
		g.logger.Error("failed to stream chat completion", "err", err)
		return classifyErr("ai.chat", err)
	}

	return nil
}

// ContextLength returns the configured token budget of the chat model.
func (g *Generator) ContextLength() int {
	return g.contextLength
}

// Available probes the service host with a short HTTP request.
func (g *Generator) Available(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	base := strings.TrimSuffix(g.host, "/v1")
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, base, nil)
	if err != nil {
		return core.WrapError(core.KindUnknown, "ai.available", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return classifyErr("ai.available", err)
	}
	resp.Body.Close()
	return nil
}
