// Package ddl lexes, normalizes and parses schema object definitions.
//
// Definitions arrive as raw DDL text from a change-event source or a
// catalog provider. Normalize strips comment tokens and collapses
// whitespace so that semantically identical definitions render to the
// same canonical text; Parse turns the text into the structural models
// in package core, which the diff engine compares attribute by
// attribute.
//
// The dialect is a deliberately small common subset: CREATE TABLE, VIEW,
// FUNCTION, INDEX, SEQUENCE and TYPE, plus ALTER TABLE ... ADD CONSTRAINT
// for standalone constraint objects. Unquoted identifiers fold to lower
// case; double-quoted identifiers keep their case.
package ddl
