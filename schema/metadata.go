package schema

// Metadata is the structured output of a schema crawl: every table,
// view, stored procedure and function of one database connection.
// Dialect-specific catalog queries live in external crawlers; this
// package only consumes their result.
type Metadata struct {
	Tables     []Table   `json:"tables"`
	Views      []View    `json:"views"`
	Procedures []Routine `json:"procedures"`
	Functions  []Routine `json:"functions"`
}

// Table describes a base table and its columns.
type Table struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column describes one table or view column.
type Column struct {
	Name       string      `json:"name"`
	DataType   string      `json:"data_type"`
	Nullable   bool        `json:"nullable"`
	PrimaryKey bool        `json:"primary_key,omitempty"`
	References *ForeignRef `json:"references,omitempty"`
}

// ForeignRef is the target of a foreign key column.
type ForeignRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// View describes a view, its columns and its definition text.
type View struct {
	Schema     string   `json:"schema"`
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	Definition string   `json:"definition"`
}

// Routine describes a stored procedure or function.
type Routine struct {
	Schema     string      `json:"schema"`
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	Definition string      `json:"definition"`
}

// Parameter describes one routine parameter.
type Parameter struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Direction string `json:"direction"` // "in", "out" or "inout"
}

// ObjectCount returns the total number of schema objects in the metadata.
func (m *Metadata) ObjectCount() int {
	if m == nil {
		return 0
	}
	return len(m.Tables) + len(m.Views) + len(m.Procedures) + len(m.Functions)
}
