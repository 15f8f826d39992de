package migrate

import (
	"errors"
	"fmt"

	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/ddl"
	"github.com/avendley/schemavc/diff"
)

var ErrUnsupportedChange = errors.New("change has no safe automatic inverse")

// Generate converts a structural diff into a forward script and its
// inverse. The forward script preserves the diff's identity ordering;
// the backward script applies the inverse steps in reverse order, so
// dependents are removed before their dependencies and recreated after.
//
// A change whose inverse would lose or reject data, such as undoing a
// widening column retype, fails the whole generation with
// ErrUnsupportedChange rather than silently producing a lossy script.
func Generate(changes []diff.ObjectChange) (Script, Script, error) {
	var forward Script
	var inverse []Step

	for _, change := range changes {
		forwardSteps, inverseSteps, err := convertChange(change)
		if err != nil {
			return Script{}, Script{}, err
		}
		forward.Steps = append(forward.Steps, forwardSteps...)
		inverse = append(inverse, inverseSteps...)
	}

	backward := Script{Steps: make([]Step, 0, len(inverse))}
	for i := len(inverse) - 1; i >= 0; i-- {
		backward.Steps = append(backward.Steps, inverse[i])
	}

	return forward, backward, nil
}

func convertChange(change diff.ObjectChange) ([]Step, []Step, error) {
	switch change.Type {
	case diff.Added:
		return []Step{CreateObject{Ref: change.Ref, Definition: change.NewDef}},
			[]Step{DropObject{Ref: change.Ref, Table: constraintTable(change.NewDef)}},
			nil

	case diff.Removed:
		return []Step{DropObject{Ref: change.Ref, Table: constraintTable(change.OldDef)}},
			[]Step{CreateObject{Ref: change.Ref, Definition: change.OldDef}},
			nil

	default:
		if change.Ref.Type == core.TableObject {
			steps, inverse, ok, err := convertTableAlter(change)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				return steps, inverse, nil
			}
		}
		return []Step{ReplaceObject{
				Ref:        change.Ref,
				Definition: change.NewDef,
				Table:      constraintTable(change.NewDef),
			}},
			[]Step{ReplaceObject{
				Ref:        change.Ref,
				Definition: change.OldDef,
				Table:      constraintTable(change.OldDef),
			}},
			nil
	}
}

// convertTableAlter maps the field-level sub-changes of a modified table
// onto typed ALTER operations. It reports ok=false when any sub-change
// has no ALTER form, in which case the caller falls back to a full
// replacement.
func convertTableAlter(change diff.ObjectChange) ([]Step, []Step, bool, error) {
	var ops, inverseOps []AlterOp

	for _, field := range change.Fields {
		switch field.Kind {
		case diff.ColumnAdded:
			ops = append(ops, AddColumn{Column: *field.NewColumn})
			inverseOps = append(inverseOps, DropColumn{Name: field.Name})

		case diff.ColumnRemoved:
			ops = append(ops, DropColumn{Name: field.Name})
			inverseOps = append(inverseOps, AddColumn{Column: *field.OldColumn})

		case diff.ColumnRetyped:
			if !diff.TypeWidens(field.New, field.Old) {
				return nil, nil, false, fmt.Errorf(
					"%s: reverting column %s from %s to %s narrows it: %w",
					change.Ref, field.Name, field.New, field.Old, ErrUnsupportedChange)
			}
			ops = append(ops, RetypeColumn{Name: field.Name, Type: field.New})
			inverseOps = append(inverseOps, RetypeColumn{Name: field.Name, Type: field.Old})

		case diff.ColumnNullability:
			ops = append(ops, SetNotNull{Name: field.Name, NotNull: field.New == "true"})
			inverseOps = append(inverseOps, SetNotNull{Name: field.Name, NotNull: field.Old == "true"})

		case diff.ColumnDefault:
			ops = append(ops, SetDefault{Name: field.Name, Default: field.New})
			inverseOps = append(inverseOps, SetDefault{Name: field.Name, Default: field.Old})

		case diff.ConstraintAdded:
			if field.Name == "" {
				return nil, nil, false, fmt.Errorf(
					"%s: anonymous constraint cannot be dropped by name: %w",
					change.Ref, ErrUnsupportedChange)
			}
			ops = append(ops, AddConstraint{Name: field.Name, Clause: field.New})
			inverseOps = append(inverseOps, DropConstraint{Name: field.Name})

		case diff.ConstraintRemoved:
			if field.Name == "" {
				return nil, nil, false, fmt.Errorf(
					"%s: anonymous constraint cannot be dropped by name: %w",
					change.Ref, ErrUnsupportedChange)
			}
			ops = append(ops, DropConstraint{Name: field.Name})
			inverseOps = append(inverseOps, AddConstraint{Name: field.Name, Clause: field.Old})

		case diff.ConstraintChanged:
			if field.Name == "" {
				return nil, nil, false, fmt.Errorf(
					"%s: anonymous constraint cannot be dropped by name: %w",
					change.Ref, ErrUnsupportedChange)
			}
			ops = append(ops,
				DropConstraint{Name: field.Name},
				AddConstraint{Name: field.Name, Clause: field.New})
			inverseOps = append(inverseOps,
				DropConstraint{Name: field.Name},
				AddConstraint{Name: field.Name, Clause: field.Old})

		case diff.CommentChanged:
			// Comments live in the definition text; nothing to alter.

		default:
			return nil, nil, false, nil
		}
	}

	if len(ops) == 0 {
		return nil, nil, false, nil
	}

	// Inverse ops run in reverse order within the statement as well.
	reversed := make([]AlterOp, 0, len(inverseOps))
	for i := len(inverseOps) - 1; i >= 0; i-- {
		reversed = append(reversed, inverseOps[i])
	}

	return []Step{AlterObject{Ref: change.Ref, Ops: ops}},
		[]Step{AlterObject{Ref: change.Ref, Ops: reversed}},
		true, nil
}

// constraintTable extracts the owning table name from a standalone
// constraint definition; other definitions yield "".
func constraintTable(definition string) string {
	parsed, err := ddl.Parse(definition)
	if err != nil {
		return ""
	}
	if constraint, ok := parsed.(ddl.ConstraintDefinition); ok {
		return constraint.Table
	}
	return ""
}
