package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"

	"github.com/avendley/schemavc/catalog"
	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/ddl"
	"github.com/avendley/schemavc/diff"
	"github.com/avendley/schemavc/migrate"
	"github.com/avendley/schemavc/track"
	"github.com/avendley/schemavc/vcs"
)

// Engine ties the tracker, the commit store, and the catalog provider
// together behind one API. One Engine serves one actor identity; the
// underlying stores are shared and safe for concurrent engines.
type Engine struct {
	store    *vcs.Persistence
	tracker  *track.Tracker
	provider catalog.Provider
	log      *track.EventLog
	identity core.Identity
	now      func() time.Time
}

func NewEngine(store *vcs.Persistence, tracker *track.Tracker, provider catalog.Provider, identity core.Identity) *Engine {
	return &Engine{
		store:    store,
		tracker:  tracker,
		provider: provider,
		log:      track.NewEventLog(),
		identity: identity,
		now:      time.Now,
	}
}

// Apply records a change event in the replay log and feeds it to the
// tracker.
func (e *Engine) Apply(event track.ChangeEvent) error {
	if event.Actor == (core.Identity{}) {
		event.Actor = e.identity
	}
	if event.When.IsZero() {
		event.When = e.now()
	}
	if err := e.tracker.Apply(event); err != nil {
		return err
	}
	e.log.Record(event)
	return nil
}

// Consume applies events from a channel until it closes or the context
// ends.
func (e *Engine) Consume(ctx context.Context, events <-chan track.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.Apply(event); err != nil {
				return err
			}
		}
	}
}

// EventLog exposes the recorded events for replay into a fresh tracker.
func (e *Engine) EventLog() *track.EventLog {
	return e.log
}

// Snapshot stores the current active object set as a tree and returns
// its id without committing it.
func (e *Engine) Snapshot() (plumbing.Hash, error) {
	return e.store.Snapshot(e.tracker.ActiveObjects())
}

// CommitSnapshot snapshots the active object set and commits it onto a
// branch, creating the branch at the new commit if it does not exist
// yet. Committing an unchanged object set is a no-op returning the
// current head.
func (e *Engine) CommitSnapshot(branch, message string) (plumbing.Hash, error) {
	tree, err := e.Snapshot()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	head, err := e.store.Resolve(branch)
	switch {
	case errors.Is(err, vcs.ErrNotFound):
		commit, err := e.store.Commit(tree, nil, message, e.identity, e.now())
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if err := e.store.CreateBranch(branch, commit); err != nil {
			return plumbing.ZeroHash, err
		}
		return commit, nil

	case err != nil:
		return plumbing.ZeroHash, err
	}

	headInfo, err := e.store.GetCommit(head)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if headInfo.Tree == tree {
		return head, nil
	}

	commit, err := e.store.Commit(tree, []plumbing.Hash{head}, message, e.identity, e.now())
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := e.store.Advance(branch, head, commit); err != nil {
		return plumbing.ZeroHash, err
	}
	return commit, nil
}

// Diff compares the trees of two commit-ish names (branch, tag, or full
// commit id).
func (e *Engine) Diff(from, to string) ([]diff.ObjectChange, error) {
	fromTree, err := e.resolveTree(from)
	if err != nil {
		return nil, err
	}
	toTree, err := e.resolveTree(to)
	if err != nil {
		return nil, err
	}

	fromObjects, err := e.store.TreeObjects(fromTree)
	if err != nil {
		return nil, err
	}
	toObjects, err := e.store.TreeObjects(toTree)
	if err != nil {
		return nil, err
	}

	return diff.Trees(fromObjects, toObjects)
}

// Merge three-way merges branch theirs into branch ours.
func (e *Engine) Merge(ours, theirs, message string) (vcs.MergeResult, error) {
	return e.store.Merge(ours, theirs, message, e.identity, e.now())
}

// GenerateMigration diffs two commit-ish names and produces the forward
// and backward migration scripts.
func (e *Engine) GenerateMigration(from, to string) (migrate.Script, migrate.Script, error) {
	changes, err := e.Diff(from, to)
	if err != nil {
		return migrate.Script{}, migrate.Script{}, err
	}
	return migrate.Generate(changes)
}

// ExportMigration renders the forward script of a diff and writes it to
// a local path, file://, or s3:// destination.
func (e *Engine) ExportMigration(ctx context.Context, from, to, destination string, cfg *migrate.S3Config) error {
	forward, _, err := e.GenerateMigration(from, to)
	if err != nil {
		return err
	}
	return migrate.Export(ctx, forward, destination, cfg)
}

// History returns the tracked change history of one object.
func (e *Engine) History(ref core.ObjectRef) ([]track.HistoryEntry, error) {
	id, ok := e.tracker.Lookup(ref)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, track.ErrUnknownObject)
	}
	return e.tracker.History(id)
}

// Object returns the current tracked state of one object.
func (e *Engine) Object(ref core.ObjectRef) (track.TrackedObject, error) {
	id, ok := e.tracker.Lookup(ref)
	if !ok {
		return track.TrackedObject{}, fmt.Errorf("%s: %w", ref, track.ErrUnknownObject)
	}
	return e.tracker.Get(id)
}

// ImpactedBy returns the objects transitively depending on ref.
func (e *Engine) ImpactedBy(ref core.ObjectRef) []core.ObjectRef {
	return e.tracker.ImpactedBy(ref)
}

// Log returns the commit log reachable from a commit-ish name.
func (e *Engine) Log(name string) ([]vcs.CommitInfo, error) {
	head, err := e.resolveCommit(name)
	if err != nil {
		return nil, err
	}
	return e.store.Log(head)
}

// Branches lists all branch names.
func (e *Engine) Branches() ([]string, error) {
	return e.store.Branches()
}

// CreateBranch forks a branch from a commit-ish name.
func (e *Engine) CreateBranch(name, from string) error {
	at, err := e.resolveCommit(from)
	if err != nil {
		return err
	}
	return e.store.CreateBranch(name, at)
}

// DeleteBranch removes a branch; the default branch is protected.
func (e *Engine) DeleteBranch(name string) error {
	return e.store.DeleteBranch(name)
}

// Tag marks a commit-ish name with an immutable tag.
func (e *Engine) Tag(name, at string) error {
	commit, err := e.resolveCommit(at)
	if err != nil {
		return err
	}
	return e.store.CreateTag(name, commit)
}

// SyncCatalog reconciles the tracker with the catalog provider: every
// object the catalog reports is ensured and updated, its dependencies
// recorded, and every active tracked object the catalog no longer
// reports is marked dropped.
func (e *Engine) SyncCatalog(ctx context.Context) error {
	refs, err := e.provider.ListObjects(ctx)
	if err != nil {
		return err
	}
	when := e.now()

	present := make(map[core.ObjectRef]bool, len(refs))
	for _, ref := range refs {
		present[ref] = true

		definition, err := e.provider.FetchDefinition(ctx, ref)
		if err != nil {
			return err
		}

		kind := core.AlterChange
		if _, tracked := e.tracker.Lookup(ref); !tracked {
			kind = core.CreateChange
		}
		if err := e.Apply(track.ChangeEvent{
			Ref:        ref,
			Kind:       kind,
			Definition: definition,
			Actor:      e.identity,
			When:       when,
		}); err != nil {
			return err
		}
	}

	for _, ref := range refs {
		deps, err := e.provider.FetchDependencies(ctx, ref)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := e.tracker.AddDependency(dep); err != nil {
				return err
			}
		}
	}

	for _, object := range e.tracker.Objects() {
		if !object.Active || present[object.Ref] {
			continue
		}
		if err := e.Apply(track.ChangeEvent{
			Ref:   object.Ref,
			Kind:  core.DropChange,
			Actor: e.identity,
			When:  when,
		}); err != nil {
			return err
		}
	}

	return nil
}

// resolveCommit turns a branch name, tag name, or full hex commit id
// into a commit hash.
func (e *Engine) resolveCommit(name string) (plumbing.Hash, error) {
	head, err := e.store.Resolve(name)
	if err == nil {
		return head, nil
	}
	if !errors.Is(err, vcs.ErrNotFound) {
		return plumbing.ZeroHash, err
	}

	if len(name) != 40 {
		return plumbing.ZeroHash, err
	}
	if _, decodeErr := hex.DecodeString(name); decodeErr != nil {
		return plumbing.ZeroHash, err
	}
	id := plumbing.NewHash(name)
	if _, err := e.store.GetCommit(id); err != nil {
		return plumbing.ZeroHash, err
	}
	return id, nil
}

func (e *Engine) resolveTree(name string) (plumbing.Hash, error) {
	commit, err := e.resolveCommit(name)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	info, err := e.store.GetCommit(commit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return info.Tree, nil
}

// ParseDefinition parses definition text into its identity; cmd surfaces
// use it to address objects by their DDL alone.
func ParseDefinition(text string) (core.ObjectRef, error) {
	parsed, err := ddl.Parse(text)
	if err != nil {
		return core.ObjectRef{}, err
	}
	return parsed.Ref(), nil
}
