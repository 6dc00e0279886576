package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/askdb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureJSON = `{
  "tables": [
    {"schema": "dbo", "name": "users", "columns": [
      {"name": "id", "data_type": "int", "primary_key": true},
      {"name": "email", "data_type": "varchar(255)", "nullable": true}
    ]},
    {"schema": "dbo", "name": "orders", "columns": [
      {"name": "id", "data_type": "int", "primary_key": true},
      {"name": "user_id", "data_type": "int", "references": {"table": "dbo.users", "column": "id"}}
    ]}
  ],
  "views": [
    {"schema": "dbo", "name": "v_users", "columns": [{"name": "id", "data_type": "int"}],
     "definition": "SELECT id FROM dbo.users"}
  ],
  "procedures": [
    {"schema": "dbo", "name": "sp_report",
     "parameters": [{"name": "@month", "data_type": "int", "direction": "in"}],
     "definition": "SELECT 1"}
  ]
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileLoaderCrawl(t *testing.T) {
	loader := NewFileLoader("proddb", writeFixture(t, fixtureJSON))

	var events []core.Progress
	md, err := loader.Crawl(context.Background(), func(p core.Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)

	require.Len(t, md.Tables, 2)
	require.Len(t, md.Views, 1)
	require.Len(t, md.Procedures, 1)
	assert.Empty(t, md.Functions)
	assert.Equal(t, 4, md.ObjectCount())

	fk := md.Tables[1].Columns[1].References
	require.NotNil(t, fk)
	assert.Equal(t, "dbo.users", fk.Table)
	assert.Equal(t, "id", fk.Column)

	// Connecting first, then one event per object in crawl order.
	require.Len(t, events, 5)
	assert.Equal(t, core.PhaseConnecting, events[0].Phase)

	expected := []struct {
		phase core.Phase
		name  string
		cur   int
		total int
	}{
		{core.PhaseCrawlingTables, "users", 1, 2},
		{core.PhaseCrawlingTables, "orders", 2, 2},
		{core.PhaseCrawlingViews, "v_users", 1, 1},
		{core.PhaseCrawlingProcedures, "sp_report", 1, 1},
	}
	for i, want := range expected {
		got := events[i+1]
		assert.Equal(t, want.phase, got.Phase)
		assert.Equal(t, want.name, got.ObjectName)
		assert.Equal(t, want.cur, got.Current)
		assert.Equal(t, want.total, got.Total)
		assert.Equal(t, "proddb", got.SourceId)
	}
}

func TestFileLoaderCrawlNilProgress(t *testing.T) {
	loader := NewFileLoader("proddb", writeFixture(t, fixtureJSON))
	md, err := loader.Crawl(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, md.ObjectCount())
}

func TestFileLoaderCancellation(t *testing.T) {
	loader := NewFileLoader("proddb", writeFixture(t, fixtureJSON))

	ctx, cancel := context.WithCancel(context.Background())
	var seen int
	_, err := loader.Crawl(ctx, func(p core.Progress) {
		if p.Phase == core.PhaseCrawlingTables {
			cancel()
		}
		seen++
	})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindCancelled))

	// Cancelled after the first table, before views were replayed.
	assert.Equal(t, 2, seen)
}

func TestFileLoaderMissingFile(t *testing.T) {
	loader := NewFileLoader("proddb", filepath.Join(t.TempDir(), "absent.json"))
	_, err := loader.Crawl(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open schema file")
}

func TestFileLoaderMalformedFile(t *testing.T) {
	loader := NewFileLoader("proddb", writeFixture(t, "{not json"))
	_, err := loader.Crawl(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode schema metadata")
}

func TestDecodeMetadataAbsentSections(t *testing.T) {
	md, err := DecodeMetadata(strings.NewReader(`{"tables": []}`))
	require.NoError(t, err)
	assert.Zero(t, md.ObjectCount())
}
