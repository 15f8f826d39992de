package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/ddl"
)

type FieldKind int

const (
	ColumnAdded FieldKind = iota
	ColumnRemoved
	ColumnRetyped
	ColumnNullability
	ColumnDefault
	ConstraintAdded
	ConstraintRemoved
	ConstraintChanged
	ParameterAdded
	ParameterRemoved
	ParameterRetyped
	ParameterDefault
	ParameterRenamed
	ReturnTypeChanged
	BodyChanged
	QueryChanged
	IndexChanged
	SequenceChanged
	EnumValueAdded
	EnumValueRemoved
	CommentChanged
	DefinitionReplaced
)

// FieldChange is one attribute-level sub-change inside a Modified object.
type FieldChange struct {
	Kind      FieldKind     `json:"kind"`
	Severity  core.Severity `json:"severity"`
	Name      string        `json:"name,omitempty"`
	Old       string        `json:"old,omitempty"`
	New       string        `json:"new,omitempty"`
	OldColumn *core.Column  `json:"oldColumn,omitempty"`
	NewColumn *core.Column  `json:"newColumn,omitempty"`
}

// Definitions compares two definitions of the same object and classifies
// the overall severity as the maximum severity among sub-changes. A
// definition that cannot be parsed, or whose object kind changed, is
// treated as an opaque whole-definition replacement at MAJOR severity.
func Definitions(oldText, newText string) ([]FieldChange, core.Severity) {
	oldDef, oldErr := ddl.Parse(oldText)
	newDef, newErr := ddl.Parse(newText)

	if oldErr != nil || newErr != nil || oldDef.ObjectType() != newDef.ObjectType() {
		return []FieldChange{{Kind: DefinitionReplaced, Severity: core.MajorSeverity}}, core.MajorSeverity
	}

	var fields []FieldChange
	switch oldParsed := oldDef.(type) {
	case ddl.TableDefinition:
		fields = compareTables(oldParsed.Table, newDef.(ddl.TableDefinition).Table)
	case ddl.ViewDefinition:
		fields = compareViews(oldParsed.View, newDef.(ddl.ViewDefinition).View)
	case ddl.FunctionDefinition:
		fields = compareFunctions(oldParsed.Function, newDef.(ddl.FunctionDefinition).Function)
	case ddl.IndexDefinition:
		fields = compareIndexes(oldParsed.Index, newDef.(ddl.IndexDefinition).Index)
	case ddl.SequenceDefinition:
		fields = compareSequences(oldParsed.Sequence, newDef.(ddl.SequenceDefinition).Sequence)
	case ddl.TypeDefinition:
		fields = compareTypes(oldParsed.Type, newDef.(ddl.TypeDefinition).Type)
	case ddl.ConstraintDefinition:
		fields = compareConstraintObjects(oldParsed, newDef.(ddl.ConstraintDefinition))
	}

	// The texts differ but no structural attribute moved; whatever did
	// change (e.g. a definition-level comment clause) is cosmetic.
	if len(fields) == 0 {
		fields = []FieldChange{{Kind: CommentChanged, Severity: core.PatchSeverity}}
	}

	severity := core.PatchSeverity
	for _, field := range fields {
		severity = core.MaxSeverity(severity, field.Severity)
	}
	return fields, severity
}

func compareTables(old, new core.TableDef) []FieldChange {
	var fields []FieldChange

	for i := range old.Columns {
		oldColumn := old.Columns[i]
		newColumn := new.Column(oldColumn.Name)
		if newColumn == nil {
			fields = append(fields, FieldChange{
				Kind:      ColumnRemoved,
				Severity:  core.MajorSeverity,
				Name:      oldColumn.Name,
				OldColumn: &old.Columns[i],
			})
			continue
		}
		fields = append(fields, compareColumns(oldColumn, *newColumn)...)
	}

	for i := range new.Columns {
		newColumn := new.Columns[i]
		if old.Column(newColumn.Name) != nil {
			continue
		}
		severity := core.MinorSeverity
		if newColumn.NotNull && newColumn.Default == "" {
			// A required column with no default breaks existing writers.
			severity = core.MajorSeverity
		}
		fields = append(fields, FieldChange{
			Kind:      ColumnAdded,
			Severity:  severity,
			Name:      newColumn.Name,
			NewColumn: &new.Columns[i],
		})
	}

	fields = append(fields, compareConstraints(old.Constraints, new.Constraints)...)

	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func compareColumns(old, new core.Column) []FieldChange {
	var fields []FieldChange

	if old.Type != new.Type {
		fields = append(fields, FieldChange{
			Kind:      ColumnRetyped,
			Severity:  typeChangeSeverity(old.Type, new.Type),
			Name:      old.Name,
			Old:       old.Type,
			New:       new.Type,
			OldColumn: &old,
			NewColumn: &new,
		})
	}
	if old.NotNull != new.NotNull {
		severity := core.MinorSeverity
		if new.NotNull {
			// Tightening nullability rejects values that used to be legal.
			severity = core.MajorSeverity
		}
		fields = append(fields, FieldChange{
			Kind:      ColumnNullability,
			Severity:  severity,
			Name:      old.Name,
			Old:       strconv.FormatBool(old.NotNull),
			New:       strconv.FormatBool(new.NotNull),
			OldColumn: &old,
			NewColumn: &new,
		})
	}
	if old.Default != new.Default {
		fields = append(fields, FieldChange{
			Kind:      ColumnDefault,
			Severity:  core.MinorSeverity,
			Name:      old.Name,
			Old:       old.Default,
			New:       new.Default,
			OldColumn: &old,
			NewColumn: &new,
		})
	}
	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Name:     old.Name,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func compareConstraints(old, new []core.Constraint) []FieldChange {
	var fields []FieldChange

	key := func(c core.Constraint) string {
		if c.Name != "" {
			return "name:" + c.Name
		}
		return "anon:" + c.Kind + ":" + c.Expr
	}

	oldByKey := make(map[string]core.Constraint)
	for _, constraint := range old {
		oldByKey[key(constraint)] = constraint
	}
	newByKey := make(map[string]core.Constraint)
	for _, constraint := range new {
		newByKey[key(constraint)] = constraint
	}

	for _, constraint := range old {
		k := key(constraint)
		replacement, ok := newByKey[k]
		if !ok {
			fields = append(fields, FieldChange{
				Kind:     ConstraintRemoved,
				Severity: core.MinorSeverity,
				Name:     constraint.Name,
				Old:      constraint.Kind + " " + constraint.Expr,
			})
			continue
		}
		if constraint.Kind != replacement.Kind || constraint.Expr != replacement.Expr {
			fields = append(fields, FieldChange{
				Kind:     ConstraintChanged,
				Severity: core.MajorSeverity,
				Name:     constraint.Name,
				Old:      constraint.Kind + " " + constraint.Expr,
				New:      replacement.Kind + " " + replacement.Expr,
			})
		}
	}

	for _, constraint := range new {
		if _, ok := oldByKey[key(constraint)]; ok {
			continue
		}
		// New constraints narrow the set of acceptable values.
		fields = append(fields, FieldChange{
			Kind:     ConstraintAdded,
			Severity: core.MajorSeverity,
			Name:     constraint.Name,
			New:      constraint.Kind + " " + constraint.Expr,
		})
	}

	return fields
}

func compareViews(old, new core.ViewDef) []FieldChange {
	var fields []FieldChange

	if old.Query != new.Query {
		// The query is the view's contract; its output shape may have
		// changed in ways we cannot see without planning it.
		fields = append(fields, FieldChange{
			Kind:     QueryChanged,
			Severity: core.MajorSeverity,
			Old:      old.Query,
			New:      new.Query,
		})
	}
	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func compareFunctions(old, new core.FunctionDef) []FieldChange {
	var fields []FieldChange

	shared := len(old.Params)
	if len(new.Params) < shared {
		shared = len(new.Params)
	}

	for i := 0; i < shared; i++ {
		oldParam, newParam := old.Params[i], new.Params[i]
		if oldParam.Type != newParam.Type {
			fields = append(fields, FieldChange{
				Kind:     ParameterRetyped,
				Severity: core.MajorSeverity,
				Name:     oldParam.Name,
				Old:      oldParam.Type,
				New:      newParam.Type,
			})
		}
		if oldParam.Default != newParam.Default {
			severity := core.MinorSeverity
			if newParam.Default == "" {
				// Optional parameter became required.
				severity = core.MajorSeverity
			}
			fields = append(fields, FieldChange{
				Kind:     ParameterDefault,
				Severity: severity,
				Name:     oldParam.Name,
				Old:      oldParam.Default,
				New:      newParam.Default,
			})
		}
		if oldParam.Name != newParam.Name {
			fields = append(fields, FieldChange{
				Kind:     ParameterRenamed,
				Severity: core.PatchSeverity,
				Old:      oldParam.Name,
				New:      newParam.Name,
			})
		}
	}

	for i := shared; i < len(old.Params); i++ {
		fields = append(fields, FieldChange{
			Kind:     ParameterRemoved,
			Severity: core.MajorSeverity,
			Name:     old.Params[i].Name,
			Old:      old.Params[i].Type,
		})
	}
	for i := shared; i < len(new.Params); i++ {
		severity := core.MajorSeverity
		if new.Params[i].Default != "" {
			// Trailing optional parameters keep old call sites working.
			severity = core.MinorSeverity
		}
		fields = append(fields, FieldChange{
			Kind:     ParameterAdded,
			Severity: severity,
			Name:     new.Params[i].Name,
			New:      new.Params[i].Type,
		})
	}

	if old.Returns != new.Returns {
		fields = append(fields, FieldChange{
			Kind:     ReturnTypeChanged,
			Severity: core.MajorSeverity,
			Old:      old.Returns,
			New:      new.Returns,
		})
	}
	if old.Body != new.Body {
		fields = append(fields, FieldChange{
			Kind:     BodyChanged,
			Severity: core.PatchSeverity,
		})
	}
	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func compareIndexes(old, new core.IndexDef) []FieldChange {
	var fields []FieldChange

	if old.Table != new.Table {
		fields = append(fields, FieldChange{
			Kind:     IndexChanged,
			Severity: core.MajorSeverity,
			Name:     "table",
			Old:      old.Table,
			New:      new.Table,
		})
	}
	if strings.Join(old.Columns, ",") != strings.Join(new.Columns, ",") {
		fields = append(fields, FieldChange{
			Kind:     IndexChanged,
			Severity: core.MinorSeverity,
			Name:     "columns",
			Old:      strings.Join(old.Columns, ","),
			New:      strings.Join(new.Columns, ","),
		})
	}
	if old.Unique != new.Unique {
		severity := core.MinorSeverity
		if new.Unique {
			// A new uniqueness requirement can start rejecting writes.
			severity = core.MajorSeverity
		}
		fields = append(fields, FieldChange{
			Kind:     IndexChanged,
			Severity: severity,
			Name:     "unique",
			Old:      strconv.FormatBool(old.Unique),
			New:      strconv.FormatBool(new.Unique),
		})
	}
	if old.Predicate != new.Predicate {
		fields = append(fields, FieldChange{
			Kind:     IndexChanged,
			Severity: core.MinorSeverity,
			Name:     "predicate",
			Old:      old.Predicate,
			New:      new.Predicate,
		})
	}
	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func compareSequences(old, new core.SequenceDef) []FieldChange {
	var fields []FieldChange

	// Sequence parameters only steer future value generation; nothing
	// already stored depends on them.
	if old.Start != new.Start || old.Increment != new.Increment || old.Cycle != new.Cycle {
		fields = append(fields, FieldChange{
			Kind:     SequenceChanged,
			Severity: core.PatchSeverity,
			Old:      renderSequence(old),
			New:      renderSequence(new),
		})
	}
	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func renderSequence(def core.SequenceDef) string {
	rendered := fmt.Sprintf("START %d INCREMENT %d", def.Start, def.Increment)
	if def.Cycle {
		rendered += " CYCLE"
	}
	return rendered
}

func compareTypes(old, new core.TypeDef) []FieldChange {
	var fields []FieldChange

	oldValues := make(map[string]bool)
	for _, value := range old.Values {
		oldValues[value] = true
	}
	newValues := make(map[string]bool)
	for _, value := range new.Values {
		newValues[value] = true
	}

	for _, value := range old.Values {
		if !newValues[value] {
			fields = append(fields, FieldChange{
				Kind:     EnumValueRemoved,
				Severity: core.MajorSeverity,
				Name:     value,
			})
		}
	}
	for _, value := range new.Values {
		if !oldValues[value] {
			fields = append(fields, FieldChange{
				Kind:     EnumValueAdded,
				Severity: core.MinorSeverity,
				Name:     value,
			})
		}
	}

	// Composite fields follow the same rules as table columns.
	oldFields := core.TableDef{Columns: old.Fields}
	newFields := core.TableDef{Columns: new.Fields}
	fields = append(fields, compareTables(oldFields, newFields)...)

	if old.Comment != new.Comment {
		fields = append(fields, FieldChange{
			Kind:     CommentChanged,
			Severity: core.PatchSeverity,
			Old:      old.Comment,
			New:      new.Comment,
		})
	}

	return fields
}

func compareConstraintObjects(old, new ddl.ConstraintDefinition) []FieldChange {
	var fields []FieldChange

	if old.Table != new.Table ||
		old.Constraint.Kind != new.Constraint.Kind ||
		old.Constraint.Expr != new.Constraint.Expr {
		fields = append(fields, FieldChange{
			Kind:     ConstraintChanged,
			Severity: core.MajorSeverity,
			Name:     old.Constraint.Name,
			Old:      old.Constraint.Kind + " " + old.Constraint.Expr,
			New:      new.Constraint.Kind + " " + new.Constraint.Expr,
		})
	}

	return fields
}

// typeChangeSeverity distinguishes widening type changes, which existing
// data and readers survive, from narrowing or lateral ones, which they
// may not.
func typeChangeSeverity(oldType, newType string) core.Severity {
	if TypeWidens(oldType, newType) {
		return core.MinorSeverity
	}
	return core.MajorSeverity
}

// TypeWidens reports whether every value of oldType fits newType. The
// migration generator relies on this to refuse inverting a narrowing
// change.
func TypeWidens(oldType, newType string) bool {
	oldBase, oldArg := splitTypeArg(oldType)
	newBase, newArg := splitTypeArg(newType)

	intRank := map[string]int{"smallint": 1, "int": 2, "integer": 2, "bigint": 3}
	floatRank := map[string]int{"real": 1, "float": 1, "double": 2}

	if oldRank, ok := intRank[oldBase]; ok {
		if newRank, ok := intRank[newBase]; ok {
			return newRank >= oldRank
		}
		return false
	}
	if oldRank, ok := floatRank[oldBase]; ok {
		if newRank, ok := floatRank[newBase]; ok {
			return newRank >= oldRank
		}
		return false
	}

	textual := map[string]bool{"char": true, "varchar": true, "text": true}
	if textual[oldBase] && textual[newBase] {
		if newBase == "text" {
			return true
		}
		if oldBase == "text" {
			return false
		}
		return newArg >= oldArg
	}

	return false
}

// splitTypeArg splits "varchar(255)" into ("varchar", 255). A missing or
// non-numeric argument yields 0.
func splitTypeArg(typeName string) (string, int) {
	open := strings.IndexByte(typeName, '(')
	if open < 0 {
		return typeName, 0
	}
	base := typeName[:open]
	args := strings.TrimSuffix(typeName[open+1:], ")")
	if comma := strings.IndexByte(args, ','); comma >= 0 {
		args = args[:comma]
	}
	size, err := strconv.Atoi(args)
	if err != nil {
		return base, 0
	}
	return base, size
}
