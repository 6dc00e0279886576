package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validChunk() *SchemaChunk {
	content := "Table dbo.users\nColumns: id (int) PK"
	return &SchemaChunk{
		Id:         IDFromContent("proddb\x00" + content),
		SourceId:   "proddb",
		ObjectType: ObjectTypeTable,
		ObjectName: "users",
		SchemaName: "dbo",
		Content:    content,
		IndexedAt:  time.Now().UTC(),
	}
}

func TestValidateChunk(t *testing.T) {
	assert.NoError(t, ValidateChunk(validChunk()))
}

func TestValidateChunkNil(t *testing.T) {
	err := ValidateChunk(nil)
	assert.True(t, errors.Is(err, ErrInvalidChunk))
}

func TestValidateChunkMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SchemaChunk)
		want   error
	}{
		{"empty source id", func(c *SchemaChunk) { c.SourceId = "" }, ErrEmptySourceId},
		{"empty object name", func(c *SchemaChunk) { c.ObjectName = "" }, ErrEmptyObjectName},
		{"empty content", func(c *SchemaChunk) { c.Content = "" }, ErrEmptyContent},
		{"invalid object type", func(c *SchemaChunk) { c.ObjectType = 0 }, ErrInvalidObjectType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunk := validChunk()
			tc.mutate(chunk)
			err := ValidateChunk(chunk)
			assert.True(t, errors.Is(err, ErrInvalidChunk))
			assert.True(t, errors.Is(err, tc.want))
		})
	}
}

func TestValidateChunkEnrichmentFieldsOptional(t *testing.T) {
	chunk := validChunk()
	chunk.Summary = ""
	chunk.Embedding = nil
	assert.NoError(t, ValidateChunk(chunk))
}

func TestValidateObjectType(t *testing.T) {
	for _, typ := range []ObjectType{
		ObjectTypeTable, ObjectTypeView, ObjectTypeStoredProcedure, ObjectTypeFunction,
	} {
		assert.NoError(t, ValidateObjectType(typ))
	}
	assert.True(t, errors.Is(ValidateObjectType(0), ErrInvalidObjectType))
	assert.True(t, errors.Is(ValidateObjectType(99), ErrInvalidObjectType))
}

func TestValidateRole(t *testing.T) {
	assert.NoError(t, ValidateRole(RoleUser))
	assert.NoError(t, ValidateRole(RoleAssistant))
	assert.True(t, errors.Is(ValidateRole(0), ErrInvalidRole))
}
