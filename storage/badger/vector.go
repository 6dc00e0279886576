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
	"fmt"
	"math"
	"slices"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/storage"
)

// minANNChunks is the embedded-chunk count at which a collection gets
// a coarse centroid index. Below it an exact scan is cheaper than the
// clustering it would take to avoid one.
const minANNChunks = 256

// dotProduct computes the dot product of two vectors.
// Assumes vectors are normalized, so this equals cosine similarity.
func dotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// vectorIndex is a coarse inverted-file index: embeddings clustered
// once at write time, queries probe only the nearest clusters.
type vectorIndex struct {
	centroids [][]float32
	members   [][]core.ID
}

// nprobe returns how many clusters a query inspects.
func (ix *vectorIndex) nprobe() int {
	n := len(ix.centroids) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// probe returns the member IDs of the nprobe centroids nearest to the
// query vector.
func (ix *vectorIndex) probe(query []float32) []core.ID {
	type ranked struct {
		cluster int
		sim     float32
	}
	order := make([]ranked, len(ix.centroids))
	for i, c := range ix.centroids {
		order[i] = ranked{cluster: i, sim: dotProduct(query, c)}
	}
	slices.SortFunc(order, func(a, b ranked) int {
		if a.sim > b.sim {
			return -1
		}
		if a.sim < b.sim {
			return 1
		}
		return a.cluster - b.cluster
	})

	var ids []core.ID
	for _, r := range order[:ix.nprobe()] {
		ids = append(ids, ix.members[r.cluster]...)
	}
	return ids
}

// normalizeUnit returns v scaled to unit length. Zero vectors are
// returned unchanged.
func normalizeUnit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum <= 0 {
		return v
	}
	den := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] * den
	}
	return out
}

// meanVector averages a non-empty set of same-length vectors.
func meanVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	mean := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range mean {
			mean[i] += v[i]
		}
	}
	inv := 1.0 / float32(len(vecs))
	for i := range mean {
		mean[i] *= inv
	}
	return mean
}

// buildVectorIndex clusters the embedded chunks into round(sqrt(n))
// clusters with deterministic k-means: seeding starts from the first
// vector and repeatedly picks the farthest remaining one, then at
// most 10 Lloyd iterations under cosine similarity. Chunks must
// already be sorted by ID so the result is reproducible.
func buildVectorIndex(chunks []*core.SchemaChunk) *vectorIndex {
	n := len(chunks)
	if n == 0 {
		return nil
	}

	k := int(math.Round(math.Sqrt(float64(n))))
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}

	// Deterministic k-means++: start with first vector, then pick farthest each time.
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, chunks[0].Embedding)
	for len(centroids) < k {
		bestIdx := 0
		bestDist := -1.0
		for i := range chunks {
			d := 1.0
			for _, c := range centroids {
				dist := 1.0 - float64(dotProduct(chunks[i].Embedding, c))
				if dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, chunks[bestIdx].Embedding)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	var members [][]core.ID
	for iter := 0; iter < 10; iter++ {
		changed := false
		members = make([][]core.ID, k)
		clusterVecs := make([][][]float32, k)

		for i, chunk := range chunks {
			best := 0
			bestScore := float32(-1.0)
			for c := 0; c < k; c++ {
				s := dotProduct(chunk.Embedding, centroids[c])
				if s > bestScore {
					bestScore = s
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
			members[best] = append(members[best], chunk.Id)
			clusterVecs[best] = append(clusterVecs[best], chunk.Embedding)
		}

		for c := 0; c < k; c++ {
			if len(clusterVecs[c]) == 0 {
				continue
			}
			if mean := meanVector(clusterVecs[c]); len(mean) > 0 {
				centroids[c] = normalizeUnit(mean)
			}
		}

		if !changed {
			break
		}
	}

	return &vectorIndex{centroids: centroids, members: members}
}

// marshalVectorIndex serializes the centroid index for storage under
// the vix key. Layout: cluster count, dimension, centroids, then per
// cluster a member count and member IDs.
func marshalVectorIndex(ix *vectorIndex) []byte {
	k := len(ix.centroids)
	dim := 0
	if k > 0 {
		dim = len(ix.centroids[0])
	}

	size := varint.Int.Size(k) + varint.Int.Size(dim)
	for _, c := range ix.centroids {
		for _, v := range c {
			size += raw.Float32.Size(v)
		}
	}
	for _, m := range ix.members {
		size += varint.Int.Size(len(m))
		for _, id := range m {
			size += varint.Uint64.Size(uint64(id))
		}
	}

	buf := make([]byte, size)
	n := varint.Int.Marshal(k, buf)
	n += varint.Int.Marshal(dim, buf[n:])
	for _, c := range ix.centroids {
		for _, v := range c {
			n += raw.Float32.Marshal(v, buf[n:])
		}
	}
	for _, m := range ix.members {
		n += varint.Int.Marshal(len(m), buf[n:])
		for _, id := range m {
			n += varint.Uint64.Marshal(uint64(id), buf[n:])
		}
	}
	return buf
}

// unmarshalVectorIndex deserializes a stored centroid index.
func unmarshalVectorIndex(bs []byte) (*vectorIndex, error) {
	fail := func(err error) (*vectorIndex, error) {
		return nil, fmt.Errorf("%w: vector index: %w", storage.ErrSerializationFailed, err)
	}

	k, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return fail(err)
	}
	dim, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return fail(err)
	}
	if k < 0 || dim < 0 {
		return nil, fmt.Errorf("%w: vector index: negative dimensions", storage.ErrSerializationFailed)
	}

	ix := &vectorIndex{
		centroids: make([][]float32, k),
		members:   make([][]core.ID, k),
	}
	for c := 0; c < k; c++ {
		centroid := make([]float32, dim)
		for i := 0; i < dim; i++ {
			centroid[i], n1, err = raw.Float32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return fail(err)
			}
		}
		ix.centroids[c] = centroid
	}
	for c := 0; c < k; c++ {
		var count int
		count, n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return fail(err)
		}
		if count < 0 {
			return nil, fmt.Errorf("%w: vector index: negative member count", storage.ErrSerializationFailed)
		}
		ids := make([]core.ID, count)
		for i := 0; i < count; i++ {
			var id uint64
			id, n1, err = varint.Uint64.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return fail(err)
			}
			ids[i] = core.ID(id)
		}
		ix.members[c] = ids
	}
	return ix, nil
}
