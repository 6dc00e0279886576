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

package badger

import (
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/askdb/core"
)

// Stop words to filter out when tokenizing chunk text and queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenize splits text into words, lowercases, trims punctuation, and
// removes stop words.
func tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// termFrequencies counts token occurrences in the chunk text that
// feeds the lexical index: rendered content plus summary.
func termFrequencies(chunk *core.SchemaChunk) map[string]int {
	tf := make(map[string]int)
	for _, term := range tokenize(chunk.Content) {
		tf[term]++
	}
	for _, term := range tokenize(chunk.Summary) {
		tf[term]++
	}
	return tf
}

// writePostings writes one chunk's lexical postings into a generation
// being built. Value is the varint-encoded term frequency.
func writePostings(tx *batchedTx, src string, gen uint64, chunk *core.SchemaChunk) error {
	for term, tf := range termFrequencies(chunk) {
		buf := make([]byte, varint.Int.Size(tf))
		varint.Int.Marshal(tf, buf)
		if err := tx.Set(makeLexicalKey(src, gen, term, chunk.Id), buf); err != nil {
			return err
		}
	}
	return nil
}

// lexicalHit is one candidate from the term index.
type lexicalHit struct {
	id    core.ID
	score int // summed term frequency over matched query terms
}

// lexicalSearch scans the postings for each query term and ranks
// candidates by summed term frequency, descending. Ties break on
// chunk ID so results are deterministic.
func (s *Store) lexicalSearch(src string, gen uint64, query string, limit int) ([]lexicalHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[core.ID]int)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, term := range terms {
			prefix := makeLexicalTermPrefix(src, gen, term)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)

			for iter.Rewind(); iter.Valid(); iter.Next() {
				item := iter.Item()
				id := chunkIDFromKey(item.Key())
				err := item.Value(func(val []byte) error {
					tf, _, err := varint.Int.Unmarshal(val)
					if err != nil {
						return err
					}
					scores[id] += tf
					return nil
				})
				if err != nil {
					iter.Close()
					return err
				}
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	hits := make([]lexicalHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, lexicalHit{id: id, score: score})
	}
	slices.SortFunc(hits, func(a, b lexicalHit) int {
		if a.score != b.score {
			return b.score - a.score
		}
		if a.id < b.id {
			return -1
		}
		if a.id > b.id {
			return 1
		}
		return 0
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
