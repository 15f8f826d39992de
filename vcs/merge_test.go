package vcs

import (
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v6/plumbing"

	"github.com/avendley/schemavc/core"
)

// setupDivergedBranches builds:
//
//	base (master) -- ours on master
//	          \---- theirs on feature
func setupDivergedBranches(t *testing.T, p *Persistence, base, ours, theirs map[core.ObjectRef]string) (baseCommit plumbing.Hash) {
	t.Helper()

	when := time.Unix(1700000000, 0)
	baseCommit = commitObjects(t, p, base, nil, "base", when)
	if err := p.CreateBranch(DefaultBranch, baseCommit); err != nil {
		t.Fatalf("Failed to create master: %v", err)
	}
	if err := p.CreateBranch("feature", baseCommit); err != nil {
		t.Fatalf("Failed to create feature: %v", err)
	}

	oursCommit := commitObjects(t, p, ours, []plumbing.Hash{baseCommit}, "ours", when.Add(time.Minute))
	if err := p.Advance(DefaultBranch, baseCommit, oursCommit); err != nil {
		t.Fatalf("Failed to advance master: %v", err)
	}

	theirsCommit := commitObjects(t, p, theirs, []plumbing.Hash{baseCommit}, "theirs", when.Add(2*time.Minute))
	if err := p.Advance("feature", baseCommit, theirsCommit); err != nil {
		t.Fatalf("Failed to advance feature: %v", err)
	}

	return baseCommit
}

func TestMergeBaseLinearHistory(t *testing.T) {
	p := setupTestPersistence(t)

	when := time.Unix(1700000000, 0)
	first := commitObjects(t, p, map[core.ObjectRef]string{testRef("t"): "CREATE TABLE t ( id int )"}, nil, "first", when)
	second := commitObjects(t, p, map[core.ObjectRef]string{testRef("t"): "CREATE TABLE t ( id bigint )"}, []plumbing.Hash{first}, "second", when.Add(time.Minute))

	base, err := p.MergeBase(first, second)
	if err != nil {
		t.Fatalf("Failed to find merge base: %v", err)
	}
	if base != first {
		t.Errorf("Expected merge base %s, got %s", first, base)
	}
}

func TestMergeBaseDisjointHistories(t *testing.T) {
	p := setupTestPersistence(t)

	when := time.Now()
	a := commitObjects(t, p, map[core.ObjectRef]string{testRef("a"): "CREATE TABLE a ( id int )"}, nil, "a", when)
	b := commitObjects(t, p, map[core.ObjectRef]string{testRef("b"): "CREATE TABLE b ( id int )"}, nil, "b", when)

	_, err := p.MergeBase(a, b)
	if !errors.Is(err, ErrNoCommonAncestor) {
		t.Errorf("Expected ErrNoCommonAncestor, got %v", err)
	}
}

func TestMergeBranchWithItself(t *testing.T) {
	p := setupTestPersistence(t)

	commit := commitObjects(t, p, map[core.ObjectRef]string{testRef("t"): "CREATE TABLE t ( id int )"}, nil, "initial", time.Now())
	if err := p.CreateBranch(DefaultBranch, commit); err != nil {
		t.Fatalf("Failed to create branch: %v", err)
	}

	result, err := p.Merge(DefaultBranch, DefaultBranch, "merge", testIdentity, time.Now())
	if err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	if !result.Clean || !result.UpToDate {
		t.Errorf("Expected clean up-to-date merge, got %+v", result)
	}
	if result.Commit != commit {
		t.Errorf("Expected head unchanged at %s, got %s", commit, result.Commit)
	}
}

func TestMergeCleanDisjointEdits(t *testing.T) {
	p := setupTestPersistence(t)

	users := "CREATE TABLE users ( id int )"
	usersWithEmail := "CREATE TABLE users ( id int, email varchar ( 255 ) )"
	ordersRef := testRef("orders")
	orders := "CREATE TABLE orders ( id int )"

	setupDivergedBranches(t, p,
		map[core.ObjectRef]string{testRef("users"): users},
		map[core.ObjectRef]string{testRef("users"): usersWithEmail},
		map[core.ObjectRef]string{testRef("users"): users, ordersRef: orders},
	)

	result, err := p.Merge(DefaultBranch, "feature", "merge feature", testIdentity, time.Now())
	if err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	if !result.Clean {
		t.Fatalf("Expected clean merge, got conflicts: %+v", result.Conflicts)
	}
	if result.Changes != 2 {
		t.Errorf("Expected 2 changes, got %d", result.Changes)
	}

	info, err := p.GetCommit(result.Commit)
	if err != nil {
		t.Fatalf("Failed to read merge commit: %v", err)
	}
	if len(info.Parents) != 2 {
		t.Fatalf("Expected 2 parents, got %d", len(info.Parents))
	}

	merged, err := p.TreeObjects(info.Tree)
	if err != nil {
		t.Fatalf("Failed to load merged tree: %v", err)
	}
	if merged[testRef("users")] != usersWithEmail {
		t.Errorf("Expected our users change in merged tree, got %q", merged[testRef("users")])
	}
	if merged[ordersRef] != orders {
		t.Errorf("Expected their orders table in merged tree, got %q", merged[ordersRef])
	}

	head, _ := p.Resolve(DefaultBranch)
	if head != result.Commit {
		t.Errorf("Expected master advanced to merge commit")
	}
}

func TestMergeConflictLeavesRefsAlone(t *testing.T) {
	p := setupTestPersistence(t)

	base := "CREATE TABLE users ( id int, status varchar ( 10 ) )"
	oursEdit := "CREATE TABLE users ( id int, status varchar ( 20 ) )"
	theirsEdit := "CREATE TABLE users ( id int, status text )"

	setupDivergedBranches(t, p,
		map[core.ObjectRef]string{testRef("users"): base},
		map[core.ObjectRef]string{testRef("users"): oursEdit},
		map[core.ObjectRef]string{testRef("users"): theirsEdit},
	)

	headBefore, _ := p.Resolve(DefaultBranch)

	result, err := p.Merge(DefaultBranch, "feature", "merge feature", testIdentity, time.Now())
	if err != nil {
		t.Fatalf("Merge failed unexpectedly: %v", err)
	}
	if result.Clean {
		t.Fatal("Expected conflicts")
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("Expected exactly 1 conflict, got %d", len(result.Conflicts))
	}

	conflict := result.Conflicts[0]
	if conflict.Ref != testRef("users") {
		t.Errorf("Expected conflict on users, got %s", conflict.Ref)
	}
	if conflict.Base != base || conflict.Ours != oursEdit || conflict.Theirs != theirsEdit {
		t.Errorf("Conflict does not carry all three definitions: %+v", conflict)
	}

	headAfter, _ := p.Resolve(DefaultBranch)
	if headAfter != headBefore {
		t.Error("Expected no ref movement on conflict")
	}
}

func TestMergeIdenticalEditsCollapse(t *testing.T) {
	p := setupTestPersistence(t)

	base := "CREATE TABLE users ( id int )"
	sameEdit := "CREATE TABLE users ( id int, email varchar ( 255 ) )"

	setupDivergedBranches(t, p,
		map[core.ObjectRef]string{testRef("users"): base},
		map[core.ObjectRef]string{testRef("users"): sameEdit},
		map[core.ObjectRef]string{testRef("users"): sameEdit},
	)

	result, err := p.Merge(DefaultBranch, "feature", "merge feature", testIdentity, time.Now())
	if err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	if !result.Clean {
		t.Fatalf("Expected clean merge for identical edits, got %+v", result.Conflicts)
	}

	info, _ := p.GetCommit(result.Commit)
	merged, err := p.TreeObjects(info.Tree)
	if err != nil {
		t.Fatalf("Failed to load merged tree: %v", err)
	}
	if merged[testRef("users")] != sameEdit {
		t.Errorf("Expected collapsed edit, got %q", merged[testRef("users")])
	}
}

func TestMergeAlreadyContained(t *testing.T) {
	p := setupTestPersistence(t)

	when := time.Unix(1700000000, 0)
	first := commitObjects(t, p, map[core.ObjectRef]string{testRef("t"): "CREATE TABLE t ( id int )"}, nil, "first", when)
	if err := p.CreateBranch(DefaultBranch, first); err != nil {
		t.Fatalf("Failed to create master: %v", err)
	}
	if err := p.CreateBranch("feature", first); err != nil {
		t.Fatalf("Failed to create feature: %v", err)
	}

	second := commitObjects(t, p, map[core.ObjectRef]string{testRef("t"): "CREATE TABLE t ( id bigint )"}, []plumbing.Hash{first}, "second", when.Add(time.Minute))
	if err := p.Advance(DefaultBranch, first, second); err != nil {
		t.Fatalf("Failed to advance: %v", err)
	}

	// feature is an ancestor of master; nothing to do.
	result, err := p.Merge(DefaultBranch, "feature", "merge", testIdentity, time.Now())
	if err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	if !result.UpToDate || result.Commit != second {
		t.Errorf("Expected up-to-date result at %s, got %+v", second, result)
	}
}

func TestMergeBothDropSameObject(t *testing.T) {
	p := setupTestPersistence(t)

	users := "CREATE TABLE users ( id int )"
	legacy := "CREATE TABLE legacy ( id int )"
	legacyRef := testRef("legacy")

	setupDivergedBranches(t, p,
		map[core.ObjectRef]string{testRef("users"): users, legacyRef: legacy},
		map[core.ObjectRef]string{testRef("users"): users},
		map[core.ObjectRef]string{testRef("users"): users},
	)

	result, err := p.Merge(DefaultBranch, "feature", "merge feature", testIdentity, time.Now())
	if err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	if !result.Clean {
		t.Fatalf("Expected clean merge, got %+v", result.Conflicts)
	}

	info, _ := p.GetCommit(result.Commit)
	merged, err := p.TreeObjects(info.Tree)
	if err != nil {
		t.Fatalf("Failed to load merged tree: %v", err)
	}
	if _, present := merged[legacyRef]; present {
		t.Error("Expected dropped object absent from merged tree")
	}
}
