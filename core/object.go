package core

import (
	"fmt"
	"strings"
)

// ObjectType enumerates the kinds of schema objects under version control.
type ObjectType string

const (
	TableObject      ObjectType = "table"
	ViewObject       ObjectType = "view"
	FunctionObject   ObjectType = "function"
	IndexObject      ObjectType = "index"
	ConstraintObject ObjectType = "constraint"
	SequenceObject   ObjectType = "sequence"
	TypeObject       ObjectType = "type"
)

// ObjectRef identifies a schema object by type and schema-qualified name.
// Two refs are the same object iff all three fields are equal.
type ObjectRef struct {
	Type   ObjectType `json:"type"`
	Schema string     `json:"schema"`
	Name   string     `json:"name"`
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s %s.%s", r.Type, r.Schema, r.Name)
}

// Path returns the tree path for this object: <schema>/<type>/<name>.
func (r ObjectRef) Path() string {
	return r.Schema + "/" + string(r.Type) + "/" + r.Name
}

// ParseRefPath is the inverse of Path.
func ParseRefPath(p string) (ObjectRef, error) {
	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return ObjectRef{}, fmt.Errorf("invalid object path: %s", p)
	}
	return ObjectRef{Schema: parts[0], Type: ObjectType(parts[1]), Name: parts[2]}, nil
}

// Less orders refs by schema, then name, then type. Diff and merge output
// ordering depends on this being total and stable.
func (r ObjectRef) Less(other ObjectRef) bool {
	if r.Schema != other.Schema {
		return r.Schema < other.Schema
	}
	if r.Name != other.Name {
		return r.Name < other.Name
	}
	return r.Type < other.Type
}

// Identity identifies the author of a change or commit.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

// Dependency is a directed edge between two objects, e.g. a foreign key or
// a view reading from a table. From depends on To.
type Dependency struct {
	From ObjectRef `json:"from"`
	To   ObjectRef `json:"to"`
	Kind string    `json:"kind"`
}
