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
	"strings"
	"unicode/utf8"

	"github.com/poiesic/askdb/core"
)

// contentExcerptLimit caps the raw-content fallback shown for chunks
// that never got a summary.
const contentExcerptLimit = 300

// summaryMessagePrefix leads the synthetic message that carries the
// running conversation summary.
const summaryMessagePrefix = "Summary of the conversation so far: "

const answerPreamble = `You are a database schema assistant. Answer questions about the user's database using only the schema context below. Name tables, views, procedures, and columns exactly as they appear. If the context does not contain the answer, say so.

Schema context:
`

const emptyIndexInstruction = `You are a database schema assistant. No schema objects were retrieved for this question; the index may be empty or not yet built. Tell the user that and suggest indexing the database, rather than guessing at an answer.`

const rewriteSystemPrompt = `You rewrite the user's latest message into a standalone database search query. Resolve pronouns and references using the conversation. Reply with the rewritten query only, no explanation.`

const windowSummarySystemPrompt = `You summarize conversations about a database schema. Be brief, but you must preserve every table, view, procedure, function, and column name that was mentioned, and keep track of what "it" or other references pointed to, so the conversation can continue from your summary alone.`

// answerSystemPrompt renders the retrieved chunks into the grounding
// section of the system prompt.
func answerSystemPrompt(chunks []*core.SchemaChunk) string {
	if len(chunks) == 0 {
		return emptyIndexInstruction
	}

	var b strings.Builder
	b.WriteString(answerPreamble)
	for _, chunk := range chunks {
		b.WriteString("\n[")
		b.WriteString(chunk.ObjectType.String())
		b.WriteString("] ")
		b.WriteString(chunk.QualifiedName())
		b.WriteString("\n")
		if chunk.Summary != "" {
			b.WriteString(chunk.Summary)
		} else {
			b.WriteString(excerpt(chunk.Content))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// excerpt truncates raw chunk content for prompt use, backing up to a
// rune boundary so the cut never emits an invalid UTF-8 sequence.
func excerpt(content string) string {
	if len(content) <= contentExcerptLimit {
		return content
	}
	cut := contentExcerptLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

// rewritePrompt asks the generator to turn the latest message into a
// standalone query given the conversation so far.
func rewritePrompt(history []core.ChatMessage, question string) string {
	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, msg := range history {
		b.WriteString(msg.Role.String())
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nLatest message: ")
	b.WriteString(question)
	return b.String()
}

// historySummaryPrompt asks for a summary of the turns being folded
// out of the context window.
func historySummaryPrompt(turns []core.ChatMessage) string {
	var b strings.Builder
	b.WriteString("Summarize this conversation:\n\n")
	for _, msg := range turns {
		b.WriteString(msg.Role.String())
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
