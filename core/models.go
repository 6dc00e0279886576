package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored chunks.
// It is generated from chunk content using content-based hashing, so a
// given schema object rendered from the same metadata always maps to
// the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ObjectType identifies the kind of database object a chunk represents.
type ObjectType int

const (
	// ObjectTypeTable represents a base table.
	ObjectTypeTable ObjectType = iota + 1
	// ObjectTypeView represents a view.
	ObjectTypeView
	// ObjectTypeStoredProcedure represents a stored procedure.
	ObjectTypeStoredProcedure
	// ObjectTypeFunction represents a user-defined function.
	ObjectTypeFunction
)

// String returns the canonical lowercase name of the object type.
func (t ObjectType) String() string {
	switch t {
	case ObjectTypeTable:
		return "table"
	case ObjectTypeView:
		return "view"
	case ObjectTypeStoredProcedure:
		return "stored_procedure"
	case ObjectTypeFunction:
		return "function"
	default:
		return "unknown"
	}
}

// ParseObjectType parses a canonical object type name.
// Returns false if the name is not one of the known types.
func ParseObjectType(s string) (ObjectType, bool) {
	switch s {
	case "table":
		return ObjectTypeTable, true
	case "view":
		return ObjectTypeView, true
	case "stored_procedure":
		return ObjectTypeStoredProcedure, true
	case "function":
		return ObjectTypeFunction, true
	default:
		return 0, false
	}
}

// SchemaChunk is one retrievable unit representing a single schema object.
// Content is a deterministic rendering of the object's metadata; Summary
// and Embedding are filled in by the enrichment pipeline. A fresh crawl
// fully replaces all chunks for a source, chunks are never patched
// individually.
type SchemaChunk struct {
	Id         ID
	SourceId   string
	ObjectType ObjectType
	ObjectName string
	SchemaName string
	Content    string
	Summary    string
	Embedding  []float32
	IndexedAt  time.Time // When the crawl that produced the chunk ran
}

// QualifiedName returns the object name prefixed with its schema.
func (c *SchemaChunk) QualifiedName() string {
	if c.SchemaName == "" {
		return c.ObjectName
	}
	return c.SchemaName + "." + c.ObjectName
}

// ScoredChunk is a chunk paired with a retrieval relevance score.
type ScoredChunk struct {
	Chunk *SchemaChunk
	Score float64
}

// IndexStats is an aggregate view over a source's stored chunks.
// Always recomputed by scanning stored chunks, never persisted.
type IndexStats struct {
	TotalChunks   int
	ByType        map[ObjectType]int
	WithSummary   int
	WithEmbedding int
	LastIndexedAt time.Time
}

// Role identifies the author of a chat message.
type Role int

const (
	// RoleUser represents the human user.
	RoleUser Role = iota + 1
	// RoleAssistant represents the model.
	RoleAssistant
)

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// ChatMessage is a single turn in a conversation. Conversation state
// lives entirely in the caller; this core is stateless across turns
// except for an optional carried-forward summary string.
type ChatMessage struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// RetrievalContext describes what was retrieved for a single chat turn.
// Ephemeral, never persisted.
type RetrievalContext struct {
	Chunks         []*SchemaChunk
	ByType         map[ObjectType]int
	ObjectNames    []string
	SearchDuration time.Duration
	TokenEstimate  int
}

// Phase identifies a stage of a crawl-and-index run.
type Phase int

const (
	// PhaseConnecting covers establishing the source connection.
	PhaseConnecting Phase = iota + 1
	// PhaseCrawlingTables covers table metadata extraction.
	PhaseCrawlingTables
	// PhaseCrawlingViews covers view metadata extraction.
	PhaseCrawlingViews
	// PhaseCrawlingProcedures covers stored procedure metadata extraction.
	PhaseCrawlingProcedures
	// PhaseCrawlingFunctions covers function metadata extraction.
	PhaseCrawlingFunctions
	// PhaseSummarizing covers chunk summarization.
	PhaseSummarizing
	// PhaseEmbedding covers chunk embedding.
	PhaseEmbedding
	// PhaseStoring covers the atomic store write.
	PhaseStoring
)

// String returns the canonical phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseCrawlingTables:
		return "crawling_tables"
	case PhaseCrawlingViews:
		return "crawling_views"
	case PhaseCrawlingProcedures:
		return "crawling_procedures"
	case PhaseCrawlingFunctions:
		return "crawling_functions"
	case PhaseSummarizing:
		return "summarizing"
	case PhaseEmbedding:
		return "embedding"
	case PhaseStoring:
		return "storing"
	default:
		return "unknown"
	}
}

// Progress reports advancement within a crawl phase.
// Current is monotonically non-decreasing within a phase; phases occur
// in declaration order for a given crawl.
type Progress struct {
	SourceId   string
	Phase      Phase
	Current    int
	Total      int
	ObjectName string // The object currently being processed, when known
}

// EstimateTokens estimates the token cost of a string as ceil(len/4).
// A cheap proxy shared by the context window manager and retrieval
// accounting, not a real tokenizer.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
