package diff

import (
	"sort"

	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/ddl"
)

type ChangeType int

const (
	Added ChangeType = iota
	Removed
	Modified
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "modified"
	}
}

// ObjectChange is one entry in a tree-level diff.
type ObjectChange struct {
	Type     ChangeType     `json:"type"`
	Ref      core.ObjectRef `json:"ref"`
	OldDef   string         `json:"oldDef,omitempty"`
	NewDef   string         `json:"newDef,omitempty"`
	Severity core.Severity  `json:"severity"`
	Fields   []FieldChange  `json:"fields,omitempty"`
}

// Trees compares two snapshots given as identity -> definition text.
// Identity membership is compared first; identities present in both with
// differing normalized text get a structural sub-diff. The result is
// ordered by identity.
func Trees(a, b map[core.ObjectRef]string) ([]ObjectChange, error) {
	refs := make(map[core.ObjectRef]bool)
	for ref := range a {
		refs[ref] = true
	}
	for ref := range b {
		refs[ref] = true
	}

	ordered := make([]core.ObjectRef, 0, len(refs))
	for ref := range refs {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	var changes []ObjectChange
	for _, ref := range ordered {
		oldDef, inA := a[ref]
		newDef, inB := b[ref]

		switch {
		case inA && !inB:
			changes = append(changes, ObjectChange{
				Type:     Removed,
				Ref:      ref,
				OldDef:   oldDef,
				Severity: core.MajorSeverity,
			})
		case !inA && inB:
			changes = append(changes, ObjectChange{
				Type:     Added,
				Ref:      ref,
				NewDef:   newDef,
				Severity: core.MinorSeverity,
			})
		default:
			oldNorm := ddl.Normalize(oldDef)
			newNorm := ddl.Normalize(newDef)
			if oldNorm == newNorm {
				continue
			}
			fields, severity := Definitions(oldNorm, newNorm)
			changes = append(changes, ObjectChange{
				Type:     Modified,
				Ref:      ref,
				OldDef:   oldDef,
				NewDef:   newDef,
				Severity: severity,
				Fields:   fields,
			})
		}
	}

	return changes, nil
}
