package migrate

import (
	"strings"

	"github.com/avendley/schemavc/core"
)

// Step is one migration operation, rendered to DDL only at the boundary.
type Step interface {
	Target() core.ObjectRef
	Render() string
}

// CreateObject creates an object from its full definition text.
type CreateObject struct {
	Ref        core.ObjectRef
	Definition string
}

func (s CreateObject) Target() core.ObjectRef { return s.Ref }

func (s CreateObject) Render() string {
	return terminate(s.Definition)
}

// DropObject removes an object. Constraints drop through their owning
// table, so Table is set for constraint targets only.
type DropObject struct {
	Ref   core.ObjectRef
	Table string
}

func (s DropObject) Target() core.ObjectRef { return s.Ref }

func (s DropObject) Render() string {
	if s.Ref.Type == core.ConstraintObject {
		return "ALTER TABLE " + s.Ref.Schema + "." + s.Table +
			" DROP CONSTRAINT " + s.Ref.Name + ";"
	}
	return "DROP " + strings.ToUpper(string(s.Ref.Type)) + " " +
		s.Ref.Schema + "." + s.Ref.Name + ";"
}

// ReplaceObject swaps an object's definition wholesale. Views and
// functions replace in place; everything else drops and recreates.
type ReplaceObject struct {
	Ref        core.ObjectRef
	Definition string
	Table      string
}

func (s ReplaceObject) Target() core.ObjectRef { return s.Ref }

func (s ReplaceObject) Render() string {
	switch s.Ref.Type {
	case core.ViewObject, core.FunctionObject:
		definition := s.Definition
		if upper := strings.ToUpper(definition); strings.HasPrefix(upper, "CREATE ") &&
			!strings.HasPrefix(upper, "CREATE OR REPLACE") {
			definition = "CREATE OR REPLACE" + definition[len("CREATE"):]
		}
		return terminate(definition)
	default:
		drop := DropObject{Ref: s.Ref, Table: s.Table}
		return drop.Render() + "\n" + terminate(s.Definition)
	}
}

// AlterObject applies typed sub-operations to a table.
type AlterObject struct {
	Ref core.ObjectRef
	Ops []AlterOp
}

func (s AlterObject) Target() core.ObjectRef { return s.Ref }

func (s AlterObject) Render() string {
	prefix := "ALTER TABLE " + s.Ref.Schema + "." + s.Ref.Name + " "
	lines := make([]string, 0, len(s.Ops))
	for _, op := range s.Ops {
		lines = append(lines, prefix+op.clause()+";")
	}
	return strings.Join(lines, "\n")
}

// AlterOp is one clause of an ALTER TABLE statement.
type AlterOp interface {
	clause() string
}

type AddColumn struct {
	Column core.Column
}

func (op AddColumn) clause() string {
	clause := "ADD COLUMN " + op.Column.Name + " " + op.Column.Type
	if op.Column.NotNull {
		clause += " NOT NULL"
	}
	if op.Column.Default != "" {
		clause += " DEFAULT " + op.Column.Default
	}
	return clause
}

type DropColumn struct {
	Name string
}

func (op DropColumn) clause() string {
	return "DROP COLUMN " + op.Name
}

type RetypeColumn struct {
	Name string
	Type string
}

func (op RetypeColumn) clause() string {
	return "ALTER COLUMN " + op.Name + " TYPE " + op.Type
}

type SetNotNull struct {
	Name    string
	NotNull bool
}

func (op SetNotNull) clause() string {
	if op.NotNull {
		return "ALTER COLUMN " + op.Name + " SET NOT NULL"
	}
	return "ALTER COLUMN " + op.Name + " DROP NOT NULL"
}

type SetDefault struct {
	Name    string
	Default string
}

func (op SetDefault) clause() string {
	if op.Default == "" {
		return "ALTER COLUMN " + op.Name + " DROP DEFAULT"
	}
	return "ALTER COLUMN " + op.Name + " SET DEFAULT " + op.Default
}

type AddConstraint struct {
	Name   string
	Clause string
}

func (op AddConstraint) clause() string {
	if op.Name == "" {
		return "ADD " + op.Clause
	}
	return "ADD CONSTRAINT " + op.Name + " " + op.Clause
}

type DropConstraint struct {
	Name string
}

func (op DropConstraint) clause() string {
	return "DROP CONSTRAINT " + op.Name
}

// Script is an ordered list of migration steps.
type Script struct {
	Steps []Step
}

// Render serializes the script, one statement per line.
func (s Script) Render() string {
	lines := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		lines = append(lines, step.Render())
	}
	return strings.Join(lines, "\n")
}

func terminate(statement string) string {
	statement = strings.TrimRight(statement, " \t\n")
	if !strings.HasSuffix(statement, ";") {
		statement += ";"
	}
	return statement
}
