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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/askdb/core"
)

// FileLoader is a Crawler over a JSON metadata dump, the interchange
// format external dialect crawlers write. It replays the crawl phases
// object by object so progress reporting and cancellation behave the
// same as a live crawl.
type FileLoader struct {
	sourceId string
	path     string
}

var _ Crawler = (*FileLoader)(nil)

// NewFileLoader creates a loader reading metadata for sourceId from the
// JSON file at path.
func NewFileLoader(sourceId, path string) *FileLoader {
	return &FileLoader{sourceId: sourceId, path: path}
}

// Crawl reads and decodes the metadata file, emitting the standard
// crawl phases. Missing sections decode as empty lists.
func (l *FileLoader) Crawl(ctx context.Context, onProgress ProgressFunc) (*Metadata, error) {
	if onProgress == nil {
		onProgress = func(core.Progress) {}
	}

	onProgress(core.Progress{SourceId: l.sourceId, Phase: core.PhaseConnecting, Current: 1, Total: 1})

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	md, err := DecodeMetadata(f)
	if err != nil {
		return nil, err
	}

	if err := l.replayPhase(ctx, onProgress, core.PhaseCrawlingTables, len(md.Tables), func(i int) string {
		return md.Tables[i].Name
	}); err != nil {
		return nil, err
	}
	if err := l.replayPhase(ctx, onProgress, core.PhaseCrawlingViews, len(md.Views), func(i int) string {
		return md.Views[i].Name
	}); err != nil {
		return nil, err
	}
	if err := l.replayPhase(ctx, onProgress, core.PhaseCrawlingProcedures, len(md.Procedures), func(i int) string {
		return md.Procedures[i].Name
	}); err != nil {
		return nil, err
	}
	if err := l.replayPhase(ctx, onProgress, core.PhaseCrawlingFunctions, len(md.Functions), func(i int) string {
		return md.Functions[i].Name
	}); err != nil {
		return nil, err
	}

	return md, nil
}

// replayPhase emits one progress event per object, checking for
// cancellation between objects.
func (l *FileLoader) replayPhase(ctx context.Context, onProgress ProgressFunc, phase core.Phase, total int, name func(int) string) error {
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return core.Cancelled("schema.crawl", err)
		}
		onProgress(core.Progress{
			SourceId:   l.sourceId,
			Phase:      phase,
			Current:    i + 1,
			Total:      total,
			ObjectName: name(i),
		})
	}
	return nil
}

// DecodeMetadata decodes a JSON metadata dump. Unknown fields are
// ignored; absent sections come back as empty lists rather than errors.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	var md Metadata
	if err := json.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode schema metadata: %w", err)
	}
	return &md, nil
}
