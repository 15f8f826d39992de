package schemavc

import (
	"os"
	"strings"
	"testing"

	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/engine"
	"github.com/avendley/schemavc/track"
	"github.com/avendley/schemavc/vcs"
)

// TestFunc is the signature for test functions that work with any persistence
type TestFunc func(t *testing.T, eng *engine.Engine)

// runWithBothPersistence runs a test function with both memory and file persistence
func runWithBothPersistence(t *testing.T, testFunc TestFunc) {
	t.Run("Memory", func(t *testing.T) {
		persistence, err := vcs.NewMemoryPersistence()
		if err != nil {
			t.Fatalf("Failed to initialize memory persistence: %v", err)
		}
		instance := Open(&persistence)
		testFunc(t, instance.Engine(core.Identity{Name: "test", Email: "test@test.com"}))
	})

	t.Run("File", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "schemavc-test-*")
		if err != nil {
			t.Fatalf("Failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(tmpDir)

		persistence, err := vcs.NewFilePersistence(tmpDir)
		if err != nil {
			t.Fatalf("Failed to initialize file persistence: %v", err)
		}
		instance := Open(&persistence)
		testFunc(t, instance.Engine(core.Identity{Name: "test", Email: "test@test.com"}))
	})
}

func tableChange(name, definition string) track.ChangeEvent {
	return track.ChangeEvent{
		Ref:        core.ObjectRef{Type: core.TableObject, Schema: "public", Name: name},
		Kind:       core.AlterChange,
		Definition: definition,
	}
}

// TestIntegrationWorkflow tests a complete schema lifecycle: track,
// commit, evolve, tag, diff, and migrate.
func TestIntegrationWorkflow(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, eng *engine.Engine) {
		usersRef := core.ObjectRef{Type: core.TableObject, Schema: "public", Name: "users"}

		if err := eng.Apply(track.ChangeEvent{
			Ref:        usersRef,
			Kind:       core.CreateChange,
			Definition: "CREATE TABLE users (id int, name varchar(100))",
		}); err != nil {
			t.Fatalf("Failed to create users: %v", err)
		}
		if err := eng.Apply(tableChange("orders", "CREATE TABLE orders (id int, user_id int)")); err != nil {
			t.Fatalf("Failed to create orders: %v", err)
		}

		if _, err := eng.CommitSnapshot(vcs.DefaultBranch, "initial schema"); err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
		if err := eng.Tag("v1", vcs.DefaultBranch); err != nil {
			t.Fatalf("Failed to tag: %v", err)
		}

		// Evolve users additively and drop orders.
		if err := eng.Apply(tableChange("users", "CREATE TABLE users (id int, name varchar(100), email varchar(255))")); err != nil {
			t.Fatalf("Failed to alter users: %v", err)
		}
		if err := eng.Apply(track.ChangeEvent{
			Ref:  core.ObjectRef{Type: core.TableObject, Schema: "public", Name: "orders"},
			Kind: core.DropChange,
		}); err != nil {
			t.Fatalf("Failed to drop orders: %v", err)
		}
		if _, err := eng.CommitSnapshot(vcs.DefaultBranch, "second iteration"); err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}

		users, err := eng.Object(usersRef)
		if err != nil {
			t.Fatalf("Failed to read users: %v", err)
		}
		if users.Version.String() != "1.1.0" {
			t.Errorf("Expected users at 1.1.0, got %s", users.Version)
		}

		changes, err := eng.Diff("v1", vcs.DefaultBranch)
		if err != nil {
			t.Fatalf("Failed to diff: %v", err)
		}
		if len(changes) != 2 {
			t.Fatalf("Expected 2 changes (users modified, orders removed), got %d", len(changes))
		}

		forward, backward, err := eng.GenerateMigration("v1", vcs.DefaultBranch)
		if err != nil {
			t.Fatalf("Failed to generate migration: %v", err)
		}
		if !strings.Contains(forward.Render(), "ADD COLUMN email") ||
			!strings.Contains(forward.Render(), "DROP TABLE public.orders;") {
			t.Errorf("Unexpected forward script: %q", forward.Render())
		}
		if !strings.Contains(backward.Render(), "CREATE TABLE orders") {
			t.Errorf("Unexpected backward script: %q", backward.Render())
		}
	})
}

// TestIntegrationBranchingAndMerge exercises divergent branches whose
// edits touch different columns of the same table.
func TestIntegrationBranchingAndMerge(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, eng *engine.Engine) {
		if err := eng.Apply(tableChange("users", "CREATE TABLE users (id int)")); err != nil {
			t.Fatalf("Failed to create users: %v", err)
		}
		if _, err := eng.CommitSnapshot(vcs.DefaultBranch, "base"); err != nil {
			t.Fatalf("Failed to commit base: %v", err)
		}
		if err := eng.CreateBranch("feature", vcs.DefaultBranch); err != nil {
			t.Fatalf("Failed to branch: %v", err)
		}

		// master gains column x.
		if err := eng.Apply(tableChange("users", "CREATE TABLE users (id int, x int)")); err != nil {
			t.Fatalf("Failed to alter on master: %v", err)
		}
		if _, err := eng.CommitSnapshot(vcs.DefaultBranch, "add x"); err != nil {
			t.Fatalf("Failed to commit on master: %v", err)
		}

		// feature gains column y instead.
		if err := eng.Apply(tableChange("users", "CREATE TABLE users (id int, y int)")); err != nil {
			t.Fatalf("Failed to alter for feature: %v", err)
		}
		if _, err := eng.CommitSnapshot("feature", "add y"); err != nil {
			t.Fatalf("Failed to commit on feature: %v", err)
		}

		result, err := eng.Merge(vcs.DefaultBranch, "feature", "merge feature")
		if err != nil {
			t.Fatalf("Failed to merge: %v", err)
		}
		if result.Clean {
			t.Fatal("Expected a conflict: both branches changed the same object")
		}
		if len(result.Conflicts) != 1 {
			t.Fatalf("Expected exactly 1 conflict, got %d", len(result.Conflicts))
		}
		conflict := result.Conflicts[0]
		if conflict.Ref.Name != "users" {
			t.Errorf("Expected conflict on users, got %s", conflict.Ref)
		}
		if conflict.Base == "" || conflict.Ours == "" || conflict.Theirs == "" {
			t.Errorf("Conflict missing a side: %+v", conflict)
		}
	})
}

// TestIntegrationPersistenceReload verifies that commits survive closing
// and reopening a file-backed store.
func TestIntegrationPersistenceReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "schemavc-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	persistence, err := vcs.NewFilePersistence(tmpDir)
	if err != nil {
		t.Fatalf("Failed to initialize file persistence: %v", err)
	}
	identity := core.Identity{Name: "test", Email: "test@test.com"}
	eng := Open(&persistence).Engine(identity)

	if err := eng.Apply(tableChange("users", "CREATE TABLE users (id int)")); err != nil {
		t.Fatalf("Failed to create users: %v", err)
	}
	commit, err := eng.CommitSnapshot(vcs.DefaultBranch, "initial schema")
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	reopened, err := vcs.NewFilePersistence(tmpDir)
	if err != nil {
		t.Fatalf("Failed to reopen persistence: %v", err)
	}
	eng = Open(&reopened).Engine(identity)

	log, err := eng.Log(vcs.DefaultBranch)
	if err != nil {
		t.Fatalf("Failed to read log after reload: %v", err)
	}
	if len(log) != 1 || log[0].ID != commit {
		t.Errorf("Expected commit %s to survive reload, got %+v", commit, log)
	}
}
