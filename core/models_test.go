package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContentDeterministic(t *testing.T) {
	a := IDFromContent("Table dbo.users\nColumns: id (int) PK")
	b := IDFromContent("Table dbo.users\nColumns: id (int) PK")
	assert.Equal(t, a, b)

	c := IDFromContent("Table dbo.orders\nColumns: id (int) PK")
	assert.NotEqual(t, a, c)
}

func TestObjectTypeString(t *testing.T) {
	assert.Equal(t, "table", ObjectTypeTable.String())
	assert.Equal(t, "view", ObjectTypeView.String())
	assert.Equal(t, "stored_procedure", ObjectTypeStoredProcedure.String())
	assert.Equal(t, "function", ObjectTypeFunction.String())
	assert.Equal(t, "unknown", ObjectType(0).String())
}

func TestParseObjectType(t *testing.T) {
	for _, typ := range []ObjectType{
		ObjectTypeTable, ObjectTypeView, ObjectTypeStoredProcedure, ObjectTypeFunction,
	} {
		parsed, ok := ParseObjectType(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, parsed)
	}

	_, ok := ParseObjectType("sequence")
	assert.False(t, ok)
}

func TestQualifiedName(t *testing.T) {
	chunk := &SchemaChunk{SchemaName: "dbo", ObjectName: "users"}
	assert.Equal(t, "dbo.users", chunk.QualifiedName())

	chunk.SchemaName = ""
	assert.Equal(t, "users", chunk.QualifiedName())
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "user", RoleUser.String())
	assert.Equal(t, "assistant", RoleAssistant.String())
	assert.Equal(t, "unknown", Role(0).String())
}

func TestPhaseString(t *testing.T) {
	names := map[Phase]string{
		PhaseConnecting:         "connecting",
		PhaseCrawlingTables:     "crawling_tables",
		PhaseCrawlingViews:      "crawling_views",
		PhaseCrawlingProcedures: "crawling_procedures",
		PhaseCrawlingFunctions:  "crawling_functions",
		PhaseSummarizing:        "summarizing",
		PhaseEmbedding:          "embedding",
		PhaseStoring:            "storing",
	}
	for phase, want := range names {
		assert.Equal(t, want, phase.String())
	}
	assert.Equal(t, "unknown", Phase(0).String())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 10, EstimateTokens("0123456789012345678901234567890123456789"))
}
