// Package core defines the shared domain types for SchemaVC: object
// identities, semantic versions, change severities, and the structural
// models that definitions are parsed into.
//
// Everything here is plain data. Behaviour lives in the packages that
// consume these types (ddl for parsing, diff for comparison, vcs for
// storage, track for lifecycle bookkeeping).
package core
