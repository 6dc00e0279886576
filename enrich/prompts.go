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

package enrich

import (
	"fmt"

	"github.com/poiesic/askdb/core"
)

const summarySystemPrompt = `You are a database documentation assistant. You write short, factual summaries of database schema objects. Describe what the object stores or does and how it relates to other objects. Use two or three sentences. Do not speculate beyond the definition given.`

// summaryPrompt builds the per-chunk summarization prompt from the
// object identity and its rendered definition.
func summaryPrompt(chunk *core.SchemaChunk) string {
	return fmt.Sprintf("Summarize the following database %s named %s:\n\n%s",
		chunk.ObjectType, chunk.QualifiedName(), chunk.Content)
}

// embeddingText is what gets embedded for a chunk. Summaries are
// produced first so they can sharpen the semantic signal; the raw
// rendering follows so column and parameter names still match.
func embeddingText(chunk *core.SchemaChunk) string {
	if chunk.Summary == "" {
		return chunk.Content
	}
	return chunk.Summary + "\n\n" + chunk.Content
}
