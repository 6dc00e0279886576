package schema

import (
	"context"

	"github.com/poiesic/askdb/core"
)

// ProgressFunc receives crawl progress events. Implementations must be
// cheap; crawlers call it synchronously between objects.
type ProgressFunc func(core.Progress)

// Crawler extracts schema metadata from one logical database source.
// Dialect-specific implementations (catalog queries, connection
// pooling) live outside this module.
//
// Implementations must emit a connecting event first, then the four
// crawling phases in order (tables, views, procedures, functions) with
// per-object progress, and must honor ctx cancellation by returning a
// core.KindCancelled error.
type Crawler interface {
	Crawl(ctx context.Context, onProgress ProgressFunc) (*Metadata, error)
}
