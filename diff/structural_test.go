package diff

import (
	"testing"

	"github.com/avendley/schemavc/core"
)

func severityOf(t *testing.T, oldDef, newDef string) core.Severity {
	t.Helper()
	_, severity := Definitions(oldDef, newDef)
	return severity
}

func TestColumnRemovalIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int, email varchar(255))",
		"CREATE TABLE users (id int)")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR, got %s", severity)
	}
}

func TestNullableColumnAdditionIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int)",
		"CREATE TABLE users (id int, email varchar(255))")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR, got %s", severity)
	}
}

func TestRequiredColumnAdditionIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int)",
		"CREATE TABLE users (id int, tenant int NOT NULL)")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for NOT NULL column without default, got %s", severity)
	}
}

func TestRequiredColumnWithDefaultIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int)",
		"CREATE TABLE users (id int, tenant int NOT NULL DEFAULT 1)")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for NOT NULL column with default, got %s", severity)
	}
}

func TestWideningRetypeIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int, name varchar(50))",
		"CREATE TABLE users (id bigint, name varchar(100))")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for widening retypes, got %s", severity)
	}
}

func TestNarrowingRetypeIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (name varchar(100))",
		"CREATE TABLE users (name varchar(50))")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for narrowing retype, got %s", severity)
	}
}

func TestTighteningNullabilityIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (email varchar(255))",
		"CREATE TABLE users (email varchar(255) NOT NULL)")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR, got %s", severity)
	}
}

func TestRelaxingNullabilityIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (email varchar(255) NOT NULL)",
		"CREATE TABLE users (email varchar(255))")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR, got %s", severity)
	}
}

func TestConstraintAdditionIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int)",
		"CREATE TABLE users (id int, CONSTRAINT uq_id UNIQUE (id))")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for new constraint, got %s", severity)
	}
}

func TestConstraintRemovalIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TABLE users (id int, CONSTRAINT uq_id UNIQUE (id))",
		"CREATE TABLE users (id int)")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for removed constraint, got %s", severity)
	}
}

func TestCommentOnlyChangeIsPatch(t *testing.T) {
	fields, severity := Definitions(
		"CREATE TABLE users (id int COMMENT 'identifier')",
		"CREATE TABLE users (id int COMMENT 'primary identifier')")
	if severity != core.PatchSeverity {
		t.Errorf("Expected PATCH, got %s", severity)
	}
	if len(fields) != 1 || fields[0].Kind != CommentChanged {
		t.Errorf("Expected single CommentChanged field, got %+v", fields)
	}
}

func TestViewQueryChangeIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE VIEW v AS SELECT id FROM users",
		"CREATE VIEW v AS SELECT id, email FROM users")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for view query change, got %s", severity)
	}
}

func TestFunctionBodyChangeIsPatch(t *testing.T) {
	severity := severityOf(t,
		"CREATE FUNCTION f(x int) RETURNS int AS 'select x'",
		"CREATE FUNCTION f(x int) RETURNS int AS 'select x + 0'")
	if severity != core.PatchSeverity {
		t.Errorf("Expected PATCH for body change, got %s", severity)
	}
}

func TestFunctionSignatureChangeIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE FUNCTION f(x int) RETURNS int AS 'select x'",
		"CREATE FUNCTION f(x varchar(10)) RETURNS int AS 'select 0'")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for parameter retype, got %s", severity)
	}
}

func TestTrailingOptionalParameterIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE FUNCTION f(x int) RETURNS int AS 'select x'",
		"CREATE FUNCTION f(x int, y int DEFAULT 0) RETURNS int AS 'select x + y'")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for optional trailing parameter, got %s", severity)
	}
}

func TestIndexColumnChangeIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE INDEX ix ON users (email)",
		"CREATE INDEX ix ON users (email, tenant)")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for index column change, got %s", severity)
	}
}

func TestIndexBecomingUniqueIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE INDEX ix ON users (email)",
		"CREATE UNIQUE INDEX ix ON users (email)")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for new uniqueness, got %s", severity)
	}
}

func TestSequenceAttributeChangeIsPatch(t *testing.T) {
	severity := severityOf(t,
		"CREATE SEQUENCE s START 1 INCREMENT 1",
		"CREATE SEQUENCE s START 1000 INCREMENT 10")
	if severity != core.PatchSeverity {
		t.Errorf("Expected PATCH for sequence attributes, got %s", severity)
	}
}

func TestEnumValueAddedIsMinor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TYPE status AS ENUM ('active')",
		"CREATE TYPE status AS ENUM ('active', 'closed')")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for new enum value, got %s", severity)
	}
}

func TestEnumValueRemovedIsMajor(t *testing.T) {
	severity := severityOf(t,
		"CREATE TYPE status AS ENUM ('active', 'closed')",
		"CREATE TYPE status AS ENUM ('active')")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for removed enum value, got %s", severity)
	}
}

func TestObjectKindMismatchIsReplacement(t *testing.T) {
	fields, severity := Definitions(
		"CREATE TABLE t (id int)",
		"CREATE VIEW t AS SELECT 1")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR, got %s", severity)
	}
	if len(fields) != 1 || fields[0].Kind != DefinitionReplaced {
		t.Errorf("Expected DefinitionReplaced, got %+v", fields)
	}
}

func TestUnparseableDefinitionIsReplacement(t *testing.T) {
	_, severity := Definitions("not ddl at all", "CREATE TABLE t (id int)")
	if severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for unparseable definition, got %s", severity)
	}
}

func TestSeverityIsMaxOfSubChanges(t *testing.T) {
	fields, severity := Definitions(
		"CREATE TABLE users (id int, email varchar(255))",
		"CREATE TABLE users (id int, email varchar(300), note varchar(50))")
	if severity != core.MinorSeverity {
		t.Errorf("Expected MINOR overall, got %s", severity)
	}
	if len(fields) != 2 {
		t.Errorf("Expected 2 sub-changes, got %d", len(fields))
	}
}

func TestTypeWidens(t *testing.T) {
	cases := []struct {
		old, new string
		want     bool
	}{
		{"smallint", "int", true},
		{"int", "bigint", true},
		{"bigint", "int", false},
		{"varchar(50)", "varchar(100)", true},
		{"varchar(100)", "varchar(50)", false},
		{"varchar(100)", "text", true},
		{"text", "varchar(100)", false},
		{"float", "double", true},
		{"int", "varchar(20)", false},
	}
	for _, c := range cases {
		if got := TypeWidens(c.old, c.new); got != c.want {
			t.Errorf("TypeWidens(%q, %q) = %v, expected %v", c.old, c.new, got, c.want)
		}
	}
}
