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

// Package search provides query-time retrieval over indexed schema chunks.
//
// The Searcher type embeds the query text and runs a hybrid search
// against the chunk store: cosine similarity over embeddings fused
// with lexical term matching. A SearchMonitor can observe each stage
// with timing metadata, which the chat layer surfaces as its
// retrieval trace.
package search
