// Package diff compares schema state structurally.
//
// Trees compares two snapshots identity by identity; Definitions
// compares two definitions of the same object attribute by attribute
// (columns, parameters, constraints, index clauses). The attribute-level
// comparison is the single source of truth for MAJOR/MINOR/PATCH
// severity: the tracker's version bumps and the migration generator both
// consume it, so one ALTER bundling several sub-changes is classified by
// the maximum severity among them.
//
// Output ordering is a hard invariant: changes are sorted by identity
// (schema, then name), so two calls with the same inputs are
// byte-identical.
package diff
