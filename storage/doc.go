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

// Package storage provides the storage abstraction layer for askdb.
//
// This package defines the ChunkStore interface that decouples the
// storage implementation from indexing and retrieval logic, plus the
// binary serialization for stored chunk records. The BadgerDB
// implementation lives in the badger subpackage.
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.ChunkStore interface rather
// than concrete types:
//
//	store, err := badger.NewStore(path)  // returns storage.ChunkStore
//
// This keeps consumers decoupled from BadgerDB specifics and lets
// tests substitute in-memory or mock implementations without
// modification.
//
// # Collections
//
// Chunks are grouped into one independent collection per source id. A
// crawl replaces a source's collection wholesale; there are no
// incremental upsert semantics. Operations against a source that was
// never indexed return empty results, not errors.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Writes are
// serialized per source; reads against a settled collection may run
// concurrently.
package storage
