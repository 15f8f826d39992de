package core

import "fmt"

// Severity classifies a structural change for version bumping.
type Severity int

const (
	PatchSeverity Severity = iota
	MinorSeverity
	MajorSeverity
)

func (s Severity) String() string {
	switch s {
	case MajorSeverity:
		return "MAJOR"
	case MinorSeverity:
		return "MINOR"
	default:
		return "PATCH"
	}
}

// MaxSeverity returns the higher of two severities. A change event may
// bundle several sub-changes; the object-level severity is the maximum.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// ChangeKind is the lifecycle tag carried by a change event. Severity is
// classified from the structural diff, not from this tag.
type ChangeKind string

const (
	CreateChange  ChangeKind = "CREATE"
	AlterChange   ChangeKind = "ALTER"
	DropChange    ChangeKind = "DROP"
	RenameChange  ChangeKind = "RENAME"
	CommentChange ChangeKind = "COMMENT"
)

// Version is a semantic version for one tracked object.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// InitialVersion is assigned when an object is first observed.
var InitialVersion = Version{Major: 1, Minor: 0, Patch: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Bump returns the next version for the given severity. MAJOR resets
// minor and patch, MINOR resets patch.
func (v Version) Bump(severity Severity) Version {
	switch severity {
	case MajorSeverity:
		return Version{Major: v.Major + 1}
	case MinorSeverity:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// Compare returns -1, 0 or 1. History entries must never decrease.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return sign(v.Major - other.Major)
	}
	if v.Minor != other.Minor {
		return sign(v.Minor - other.Minor)
	}
	return sign(v.Patch - other.Patch)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
