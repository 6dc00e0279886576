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

package schema

import (
	"strings"
	"time"

	"github.com/poiesic/askdb/core"
)

// BuildChunks converts crawled metadata into retrievable chunks, one
// per schema object, ordered tables, views, procedures, functions with
// input order preserved inside each kind. Rendering is deterministic:
// the same metadata and timestamp always yield byte-identical Content.
// Summary and Embedding are left empty for the enrichment pipeline.
func BuildChunks(sourceId string, md *Metadata, indexedAt time.Time) []*core.SchemaChunk {
	if md == nil {
		return nil
	}

	chunks := make([]*core.SchemaChunk, 0, md.ObjectCount())

	for _, t := range md.Tables {
		chunks = append(chunks, newChunk(sourceId, core.ObjectTypeTable, t.Schema, t.Name,
			renderTable(&t), indexedAt))
	}
	for _, v := range md.Views {
		chunks = append(chunks, newChunk(sourceId, core.ObjectTypeView, v.Schema, v.Name,
			renderView(&v), indexedAt))
	}
	for _, p := range md.Procedures {
		chunks = append(chunks, newChunk(sourceId, core.ObjectTypeStoredProcedure, p.Schema, p.Name,
			renderRoutine("Stored Procedure", &p), indexedAt))
	}
	for _, f := range md.Functions {
		chunks = append(chunks, newChunk(sourceId, core.ObjectTypeFunction, f.Schema, f.Name,
			renderRoutine("Function", &f), indexedAt))
	}

	return chunks
}

func newChunk(sourceId string, objectType core.ObjectType, schemaName, objectName, content string, indexedAt time.Time) *core.SchemaChunk {
	return &core.SchemaChunk{
		Id:         core.IDFromContent(sourceId + "\x00" + content),
		SourceId:   sourceId,
		ObjectType: objectType,
		ObjectName: objectName,
		SchemaName: schemaName,
		Content:    content,
		IndexedAt:  indexedAt,
	}
}

func renderTable(t *Table) string {
	var b strings.Builder
	b.WriteString("Table ")
	b.WriteString(qualified(t.Schema, t.Name))
	b.WriteString("\nColumns: ")
	b.WriteString(renderColumns(t.Columns))
	return b.String()
}

func renderView(v *View) string {
	var b strings.Builder
	b.WriteString("View ")
	b.WriteString(qualified(v.Schema, v.Name))
	b.WriteString("\nColumns: ")
	b.WriteString(renderColumns(v.Columns))
	b.WriteString("\n\nDefinition:\n")
	b.WriteString(v.Definition)
	return b.String()
}

func renderRoutine(label string, r *Routine) string {
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(" ")
	b.WriteString(qualified(r.Schema, r.Name))
	b.WriteString("\nParameters: ")
	if len(r.Parameters) == 0 {
		b.WriteString("none")
	} else {
		for i, p := range r.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(" (")
			b.WriteString(p.DataType)
			b.WriteString(", ")
			b.WriteString(p.Direction)
			b.WriteString(")")
		}
	}
	b.WriteString("\n\nDefinition:\n")
	b.WriteString(r.Definition)
	return b.String()
}

// renderColumns renders a column list as
// "name (type[, nullable])[ PK][ FK -> table.column]" entries joined
// by "; ".
func renderColumns(cols []Column) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteString(" (")
		b.WriteString(c.DataType)
		if c.Nullable {
			b.WriteString(", nullable")
		}
		b.WriteString(")")
		if c.PrimaryKey {
			b.WriteString(" PK")
		}
		if c.References != nil {
			b.WriteString(" FK -> ")
			b.WriteString(c.References.Table)
			b.WriteString(".")
			b.WriteString(c.References.Column)
		}
	}
	return b.String()
}

func qualified(schemaName, objectName string) string {
	if schemaName == "" {
		return objectName
	}
	return schemaName + "." + objectName
}
