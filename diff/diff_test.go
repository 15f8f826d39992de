package diff

import (
	"testing"

	"github.com/avendley/schemavc/core"
)

func tableRef(name string) core.ObjectRef {
	return core.ObjectRef{Type: core.TableObject, Schema: "public", Name: name}
}

func TestTreesIdenticalSnapshotsAreEmpty(t *testing.T) {
	snapshot := map[core.ObjectRef]string{
		tableRef("users"): "CREATE TABLE users (id int)",
	}

	changes, err := Trees(snapshot, snapshot)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("Expected empty diff, got %d changes", len(changes))
	}
}

func TestTreesFormattingOnlyChangeIsEmpty(t *testing.T) {
	a := map[core.ObjectRef]string{
		tableRef("users"): "CREATE TABLE users (id int)",
	}
	b := map[core.ObjectRef]string{
		tableRef("users"): "create   TABLE users ( id INT ) -- reformatted",
	}

	changes, err := Trees(a, b)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("Expected formatting change to be invisible, got %d changes", len(changes))
	}
}

func TestTreesAddedAndRemoved(t *testing.T) {
	a := map[core.ObjectRef]string{
		tableRef("old"): "CREATE TABLE old (id int)",
	}
	b := map[core.ObjectRef]string{
		tableRef("new"): "CREATE TABLE new (id int)",
	}

	changes, err := Trees(a, b)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}

	// Ordered by identity: "new" sorts before "old".
	if changes[0].Type != Added || changes[0].Ref.Name != "new" {
		t.Errorf("Expected added 'new' first, got %s %s", changes[0].Type, changes[0].Ref.Name)
	}
	if changes[0].Severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for addition, got %s", changes[0].Severity)
	}
	if changes[1].Type != Removed || changes[1].Ref.Name != "old" {
		t.Errorf("Expected removed 'old' second, got %s %s", changes[1].Type, changes[1].Ref.Name)
	}
	if changes[1].Severity != core.MajorSeverity {
		t.Errorf("Expected MAJOR for removal, got %s", changes[1].Severity)
	}
}

func TestTreesDeterministicOrdering(t *testing.T) {
	a := map[core.ObjectRef]string{}
	b := map[core.ObjectRef]string{
		{Type: core.TableObject, Schema: "b", Name: "t"}:  "CREATE TABLE b.t (id int)",
		{Type: core.TableObject, Schema: "a", Name: "z"}:  "CREATE TABLE a.z (id int)",
		{Type: core.ViewObject, Schema: "a", Name: "z"}:   "CREATE VIEW a.z AS SELECT 1",
		{Type: core.TableObject, Schema: "a", Name: "m"}:  "CREATE TABLE a.m (id int)",
		{Type: core.IndexObject, Schema: "b", Name: "ix"}: "CREATE INDEX b.ix ON t (id)",
	}

	first, err := Trees(a, b)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	second, err := Trees(a, b)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Expected equal lengths, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Ref != second[i].Ref {
			t.Errorf("Position %d differs between runs: %s vs %s", i, first[i].Ref, second[i].Ref)
		}
	}
	for i := 1; i < len(first); i++ {
		if !first[i-1].Ref.Less(first[i].Ref) {
			t.Errorf("Output not ordered at position %d: %s before %s", i, first[i-1].Ref, first[i].Ref)
		}
	}
}

func TestTreesModifiedCarriesFields(t *testing.T) {
	a := map[core.ObjectRef]string{
		tableRef("users"): "CREATE TABLE users (id int NOT NULL)",
	}
	b := map[core.ObjectRef]string{
		tableRef("users"): "CREATE TABLE users (id int NOT NULL, email varchar(255))",
	}

	changes, err := Trees(a, b)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(changes))
	}

	change := changes[0]
	if change.Type != Modified {
		t.Fatalf("Expected modified, got %s", change.Type)
	}
	if change.Severity != core.MinorSeverity {
		t.Errorf("Expected MINOR for nullable column addition, got %s", change.Severity)
	}
	if len(change.Fields) != 1 || change.Fields[0].Kind != ColumnAdded {
		t.Errorf("Expected one ColumnAdded field, got %+v", change.Fields)
	}
}
