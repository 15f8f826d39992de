package core

// Column is one column of a table or one field of a composite type.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"notNull,omitempty"`
	Default string `json:"default,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Parameter is one parameter of a function. A parameter with a default
// is optional; adding one is a backward-compatible change.
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
}

// Constraint is a table-level constraint clause.
type Constraint struct {
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"` // PRIMARY KEY, UNIQUE, FOREIGN KEY, CHECK
	Expr string `json:"expr"`
}

// TableDef is the structural model of a table definition.
type TableDef struct {
	Columns     []Column     `json:"columns"`
	Constraints []Constraint `json:"constraints,omitempty"`
	Comment     string       `json:"comment,omitempty"`
}

// Column returns the named column, or nil.
func (d *TableDef) Column(name string) *Column {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// ViewDef is the structural model of a view definition.
type ViewDef struct {
	Query   string `json:"query"`
	Comment string `json:"comment,omitempty"`
}

// FunctionDef is the structural model of a function definition.
type FunctionDef struct {
	Params  []Parameter `json:"params,omitempty"`
	Returns string      `json:"returns"`
	Body    string      `json:"body"`
	Comment string      `json:"comment,omitempty"`
}

// IndexDef is the structural model of an index definition.
type IndexDef struct {
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
	Unique    bool     `json:"unique,omitempty"`
	Predicate string   `json:"predicate,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

// SequenceDef is the structural model of a sequence definition.
type SequenceDef struct {
	Start     int64  `json:"start"`
	Increment int64  `json:"increment"`
	Cycle     bool   `json:"cycle,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// TypeDef is the structural model of a user-defined type: either an enum
// (Values set) or a composite (Fields set).
type TypeDef struct {
	Values  []string `json:"values,omitempty"`
	Fields  []Column `json:"fields,omitempty"`
	Comment string   `json:"comment,omitempty"`
}
