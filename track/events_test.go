package track

import (
	"context"
	"testing"
	"time"

	"github.com/avendley/schemavc/core"
)

func TestApplyDispatchesByKind(t *testing.T) {
	tracker := setupTestTracker(t)
	when := time.Now()

	if err := tracker.Apply(ChangeEvent{
		Ref:        usersRef(),
		Kind:       core.CreateChange,
		Definition: "CREATE TABLE users (id int)",
		Actor:      testActor,
		When:       when,
	}); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}

	if err := tracker.Apply(ChangeEvent{
		Ref:        usersRef(),
		Kind:       core.AlterChange,
		Definition: "CREATE TABLE users (id int, email varchar(255))",
		Actor:      testActor,
		When:       when.Add(time.Minute),
	}); err != nil {
		t.Fatalf("Failed to apply alter: %v", err)
	}

	id, ok := tracker.Lookup(usersRef())
	if !ok {
		t.Fatal("Expected users tracked")
	}
	object, _ := tracker.Get(id)
	if object.Version.String() != "1.1.0" {
		t.Errorf("Expected 1.1.0, got %s", object.Version)
	}

	if err := tracker.Apply(ChangeEvent{
		Ref:   usersRef(),
		Kind:  core.DropChange,
		Actor: testActor,
		When:  when.Add(2 * time.Minute),
	}); err != nil {
		t.Fatalf("Failed to apply drop: %v", err)
	}
	object, _ = tracker.Get(id)
	if object.Active {
		t.Error("Expected object dropped")
	}
}

func TestApplyRenameRequiresNewName(t *testing.T) {
	tracker := setupTestTracker(t)

	if err := tracker.Apply(ChangeEvent{
		Ref:   usersRef(),
		Kind:  core.RenameChange,
		Actor: testActor,
		When:  time.Now(),
	}); err == nil {
		t.Error("Expected error for rename without new name")
	}
}

func TestConsumeDrainsChannel(t *testing.T) {
	tracker := setupTestTracker(t)
	when := time.Now()

	events := make(chan ChangeEvent, 2)
	events <- ChangeEvent{
		Ref:        usersRef(),
		Kind:       core.CreateChange,
		Definition: "CREATE TABLE users (id int)",
		Actor:      testActor,
		When:       when,
	}
	events <- ChangeEvent{
		Ref:        usersRef(),
		Kind:       core.AlterChange,
		Definition: "CREATE TABLE users (id int, email varchar(255))",
		Actor:      testActor,
		When:       when.Add(time.Minute),
	}
	close(events)

	if err := tracker.Consume(context.Background(), events); err != nil {
		t.Fatalf("Failed to consume: %v", err)
	}

	id, _ := tracker.Lookup(usersRef())
	object, _ := tracker.Get(id)
	if object.Version.String() != "1.1.0" {
		t.Errorf("Expected 1.1.0 after consuming, got %s", object.Version)
	}
}

func TestConsumeStopsOnCancel(t *testing.T) {
	tracker := setupTestTracker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan ChangeEvent)
	if err := tracker.Consume(ctx, events); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestEventLogReplayRebuildsTracker(t *testing.T) {
	original := setupTestTracker(t)
	log := NewEventLog()
	when := time.Unix(1700000000, 0)

	events := []ChangeEvent{
		{Ref: usersRef(), Kind: core.CreateChange, Definition: "CREATE TABLE users (id int)", Actor: testActor, When: when},
		{Ref: usersRef(), Kind: core.AlterChange, Definition: "CREATE TABLE users (id int, email varchar(255))", Actor: testActor, When: when.Add(time.Minute)},
		{Ref: usersRef(), Kind: core.RenameChange, NewName: "accounts", Actor: testActor, When: when.Add(2 * time.Minute)},
	}
	for _, event := range events {
		if err := original.Apply(event); err != nil {
			t.Fatalf("Failed to apply event: %v", err)
		}
		log.Record(event)
	}

	rebuilt := setupTestTracker(t)
	if err := log.Replay(rebuilt); err != nil {
		t.Fatalf("Failed to replay: %v", err)
	}

	renamed := core.ObjectRef{Type: core.TableObject, Schema: "public", Name: "accounts"}
	originalID, ok := original.Lookup(renamed)
	if !ok {
		t.Fatal("Expected renamed object in original tracker")
	}
	rebuiltID, ok := rebuilt.Lookup(renamed)
	if !ok {
		t.Fatal("Expected renamed object in rebuilt tracker")
	}

	originalObject, _ := original.Get(originalID)
	rebuiltObject, _ := rebuilt.Get(rebuiltID)
	if originalObject.Version != rebuiltObject.Version {
		t.Errorf("Expected version %s after replay, got %s", originalObject.Version, rebuiltObject.Version)
	}
	if originalObject.Hash != rebuiltObject.Hash {
		t.Errorf("Expected content hash preserved across replay")
	}
}
