// Package migrate turns structural diffs into migration scripts.
//
// Each migration step is a typed value (CreateObject, AlterObject with
// typed sub-operations, DropObject, ReplaceObject); text is rendered
// only at the boundary, when a Script is serialized or exported. The
// generator emits a forward script in diff order and a backward script
// in reverse order, and refuses with ErrUnsupportedChange when a change
// has no safe automatic inverse.
package migrate
