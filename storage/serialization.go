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

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/askdb/core"
)

// chunkSer is the MUS serializer for SchemaChunk. The record is a
// single flat struct, so the serializer is hand-written from mus-go
// primitives rather than generated. Field order is part of the stored
// format; append new fields at the end only.
type chunkSer struct{}

// ChunkMUS serializes SchemaChunk records for badger values.
var ChunkMUS = chunkSer{}

func (chunkSer) Marshal(c core.SchemaChunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += ord.String.Marshal(c.SourceId, bs[n:])
	n += varint.Int.Marshal(int(c.ObjectType), bs[n:])
	n += ord.String.Marshal(c.ObjectName, bs[n:])
	n += ord.String.Marshal(c.SchemaName, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += ord.String.Marshal(c.Summary, bs[n:])
	n += varint.Int.Marshal(len(c.Embedding), bs[n:])
	for _, v := range c.Embedding {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	n += varint.Int64.Marshal(c.IndexedAt.UnixMicro(), bs[n:])
	return n
}

func (chunkSer) Unmarshal(bs []byte) (c core.SchemaChunk, n int, err error) {
	var (
		n1  int
		id  uint64
		typ int
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	c.Id = core.ID(id)

	c.SourceId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	typ, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.ObjectType = core.ObjectType(typ)

	c.ObjectName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	c.SchemaName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	c.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	c.Summary, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	var dim int
	dim, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if dim < 0 {
		err = fmt.Errorf("%w: negative embedding length", ErrSerializationFailed)
		return
	}
	if dim > 0 {
		c.Embedding = make([]float32, dim)
		for i := 0; i < dim; i++ {
			c.Embedding[i], n1, err = raw.Float32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}

	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.IndexedAt = time.UnixMicro(micros).UTC()
	return
}

func (chunkSer) Size(c core.SchemaChunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += ord.String.Size(c.SourceId)
	size += varint.Int.Size(int(c.ObjectType))
	size += ord.String.Size(c.ObjectName)
	size += ord.String.Size(c.SchemaName)
	size += ord.String.Size(c.Content)
	size += ord.String.Size(c.Summary)
	size += varint.Int.Size(len(c.Embedding))
	for _, v := range c.Embedding {
		size += raw.Float32.Size(v)
	}
	size += varint.Int64.Size(c.IndexedAt.UnixMicro())
	return size
}

// MarshalChunk serializes a SchemaChunk to bytes.
func MarshalChunk(chunk *core.SchemaChunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a SchemaChunk from bytes.
func UnmarshalChunk(data []byte) (*core.SchemaChunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}
