package track

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-git/v6/plumbing"

	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/ddl"
	"github.com/avendley/schemavc/diff"
)

var (
	ErrUnknownObject = fmt.Errorf("object is not tracked")
	ErrDroppedObject = fmt.Errorf("object has been dropped")
	ErrDuplicateRef  = fmt.Errorf("identity already tracked")
)

// ObjectID is the stable arena id of a tracked object. Ids are assigned
// once and never reused, so history entries and dependency edges can
// hold them across renames and drops.
type ObjectID int

// TrackedObject is the current state of one schema object.
type TrackedObject struct {
	ID         ObjectID       `json:"id"`
	Ref        core.ObjectRef `json:"ref"`
	Version    core.Version   `json:"version"`
	Hash       plumbing.Hash  `json:"hash"`
	Definition string         `json:"definition"`
	Active     bool           `json:"active"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// HistoryEntry is one immutable record in an object's change history.
// Entries for one object are ordered by time and the version never
// decreases from one entry to the next.
type HistoryEntry struct {
	Object      ObjectID           `json:"object"`
	Kind        core.ChangeKind    `json:"kind"`
	Severity    core.Severity      `json:"severity"`
	Before      plumbing.Hash      `json:"before"`
	After       plumbing.Hash      `json:"after"`
	Version     core.Version       `json:"version"`
	Description string             `json:"description,omitempty"`
	Fields      []diff.FieldChange `json:"fields,omitempty"`
	Actor       core.Identity      `json:"actor"`
	When        time.Time          `json:"when"`
}

// DefinitionStore persists definition text content-addressed. It is
// satisfied by vcs.Persistence.
type DefinitionStore interface {
	PutDefinition(definition string) (plumbing.Hash, error)
}

// Tracker owns the tracked-object arena, the identity index, the
// per-object histories, and the dependency edges between objects.
type Tracker struct {
	store DefinitionStore

	mu      sync.RWMutex
	objects []TrackedObject
	index   map[core.ObjectRef]ObjectID
	history map[ObjectID][]HistoryEntry
	deps    map[ObjectID][]core.Dependency
}

func NewTracker(store DefinitionStore) *Tracker {
	return &Tracker{
		store:   store,
		index:   make(map[core.ObjectRef]ObjectID),
		history: make(map[ObjectID][]HistoryEntry),
		deps:    make(map[ObjectID][]core.Dependency),
	}
}

// EnsureObject returns the id for an identity, creating the object at
// version 1.0.0 with a CREATE history entry if it is not yet tracked.
// Repeated and concurrent calls for the same identity converge on the
// id of the single creation that won.
func (t *Tracker) EnsureObject(ref core.ObjectRef, actor core.Identity, when time.Time) (ObjectID, error) {
	t.mu.RLock()
	id, ok := t.index[ref]
	t.mu.RUnlock()
	if ok {
		return id, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have created it between the two locks.
	if id, ok := t.index[ref]; ok {
		return id, nil
	}

	id = ObjectID(len(t.objects))
	t.objects = append(t.objects, TrackedObject{
		ID:        id,
		Ref:       ref,
		Version:   core.InitialVersion,
		Active:    true,
		CreatedAt: when,
		UpdatedAt: when,
	})
	t.index[ref] = id
	t.history[id] = append(t.history[id], HistoryEntry{
		Object:  id,
		Kind:    core.CreateChange,
		Version: core.InitialVersion,
		Actor:   actor,
		When:    when,
	})

	return id, nil
}

// RecordChange applies a new definition to a tracked object and returns
// the resulting version. An identical definition (after normalization)
// is a no-op, so replayed or duplicated change events converge. The
// first definition an object receives establishes its content without a
// bump; every later change is classified structurally and bumps the
// version by the maximum severity among its sub-changes.
func (t *Tracker) RecordChange(id ObjectID, kind core.ChangeKind, definition string, actor core.Identity, when time.Time) (core.Version, error) {
	normalized := ddl.Normalize(definition)
	hash, err := t.store.PutDefinition(normalized)
	if err != nil {
		return core.Version{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	object, err := t.object(id)
	if err != nil {
		return core.Version{}, err
	}
	if !object.Active {
		return core.Version{}, fmt.Errorf("%s: %w", object.Ref, ErrDroppedObject)
	}
	if hash == object.Hash {
		return object.Version, nil
	}

	entry := HistoryEntry{
		Object:      id,
		Kind:        kind,
		Before:      object.Hash,
		After:       hash,
		Description: definition,
		Actor:       actor,
		When:        when,
	}

	if object.Hash == plumbing.ZeroHash {
		// Initial definition after EnsureObject; the CREATE entry
		// already set the version.
		entry.Severity = core.PatchSeverity
		entry.Version = object.Version
	} else {
		fields, severity := diff.Definitions(object.Definition, normalized)
		entry.Fields = fields
		entry.Severity = severity
		entry.Version = object.Version.Bump(severity)
	}

	object.Hash = hash
	object.Definition = normalized
	object.Version = entry.Version
	object.UpdatedAt = when
	t.history[id] = append(t.history[id], entry)

	return entry.Version, nil
}

// MarkDropped records a MAJOR drop entry and deactivates the object.
// The object and its history remain queryable; dropping an already
// dropped object is a no-op.
func (t *Tracker) MarkDropped(id ObjectID, actor core.Identity, when time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	object, err := t.object(id)
	if err != nil {
		return err
	}
	if !object.Active {
		return nil
	}

	object.Active = false
	object.Version = object.Version.Bump(core.MajorSeverity)
	object.UpdatedAt = when
	t.history[id] = append(t.history[id], HistoryEntry{
		Object:   id,
		Kind:     core.DropChange,
		Severity: core.MajorSeverity,
		Before:   object.Hash,
		Version:  object.Version,
		Actor:    actor,
		When:     when,
	})

	return nil
}

// Rename moves an object to a new identity while keeping its id,
// version history, and content. The old identity becomes free for
// reuse by a future object. References by name break, so a rename is
// MAJOR.
func (t *Tracker) Rename(id ObjectID, to core.ObjectRef, actor core.Identity, when time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	object, err := t.object(id)
	if err != nil {
		return err
	}
	if !object.Active {
		return fmt.Errorf("%s: %w", object.Ref, ErrDroppedObject)
	}
	if object.Ref == to {
		return nil
	}
	if _, taken := t.index[to]; taken {
		return fmt.Errorf("%s: %w", to, ErrDuplicateRef)
	}

	from := object.Ref
	delete(t.index, from)
	t.index[to] = id
	object.Ref = to
	object.Version = object.Version.Bump(core.MajorSeverity)
	object.UpdatedAt = when
	t.history[id] = append(t.history[id], HistoryEntry{
		Object:      id,
		Kind:        core.RenameChange,
		Severity:    core.MajorSeverity,
		Before:      object.Hash,
		After:       object.Hash,
		Version:     object.Version,
		Description: from.String() + " -> " + to.String(),
		Actor:       actor,
		When:        when,
	})

	return nil
}

// Lookup resolves an identity to its id.
func (t *Tracker) Lookup(ref core.ObjectRef) (ObjectID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.index[ref]
	return id, ok
}

// Get returns a copy of the tracked object's current state.
func (t *Tracker) Get(id ObjectID) (TrackedObject, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	object, err := t.object(id)
	if err != nil {
		return TrackedObject{}, err
	}
	return *object, nil
}

// History returns the object's history entries in order of application.
func (t *Tracker) History(id ObjectID) ([]HistoryEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, err := t.object(id); err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, len(t.history[id]))
	copy(entries, t.history[id])
	return entries, nil
}

// ActiveObjects returns the current active set as identity -> content
// hash, the form the commit store snapshots. Objects that never
// received a definition are excluded.
func (t *Tracker) ActiveObjects() map[core.ObjectRef]plumbing.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make(map[core.ObjectRef]plumbing.Hash)
	for i := range t.objects {
		object := &t.objects[i]
		if object.Active && object.Hash != plumbing.ZeroHash {
			active[object.Ref] = object.Hash
		}
	}
	return active
}

// Objects returns copies of all tracked objects, active or not, ordered
// by identity.
func (t *Tracker) Objects() []TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	objects := make([]TrackedObject, len(t.objects))
	copy(objects, t.objects)
	sort.Slice(objects, func(i, j int) bool { return objects[i].Ref.Less(objects[j].Ref) })
	return objects
}

// AddDependency records a directed edge between two tracked objects.
// Both endpoints must be tracked. Edges are not versioned; they exist
// to answer impact queries.
func (t *Tracker) AddDependency(dep core.Dependency) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from, ok := t.index[dep.From]
	if !ok {
		return fmt.Errorf("%s: %w", dep.From, ErrUnknownObject)
	}
	if _, ok := t.index[dep.To]; !ok {
		return fmt.Errorf("%s: %w", dep.To, ErrUnknownObject)
	}

	for _, existing := range t.deps[from] {
		if existing == dep {
			return nil
		}
	}
	t.deps[from] = append(t.deps[from], dep)
	return nil
}

// ImpactedBy returns the identities transitively depending on ref,
// ordered by identity. The ref itself is not included.
func (t *Tracker) ImpactedBy(ref core.ObjectRef) []core.ObjectRef {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// deps point From -> To; impact walks the edges backwards.
	dependents := make(map[core.ObjectRef][]core.ObjectRef)
	for _, edges := range t.deps {
		for _, dep := range edges {
			dependents[dep.To] = append(dependents[dep.To], dep.From)
		}
	}

	seen := map[core.ObjectRef]bool{ref: true}
	queue := []core.ObjectRef{ref}
	var impacted []core.ObjectRef
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dependent := range dependents[current] {
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			impacted = append(impacted, dependent)
			queue = append(queue, dependent)
		}
	}

	sort.Slice(impacted, func(i, j int) bool { return impacted[i].Less(impacted[j]) })
	return impacted
}

// object returns a pointer into the arena; callers hold t.mu.
func (t *Tracker) object(id ObjectID) (*TrackedObject, error) {
	if id < 0 || int(id) >= len(t.objects) {
		return nil, fmt.Errorf("id %d: %w", id, ErrUnknownObject)
	}
	return &t.objects[id], nil
}
