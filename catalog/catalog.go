// Package catalog abstracts the system catalog of a live database.
//
// The engine treats the catalog as an external collaborator: a Provider
// answers what objects exist, their authoritative definition text, and
// the dependencies between them. Callers own cancellation; a Provider
// call blocks until it answers or its context ends.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/avendley/schemavc/core"
)

var ErrObjectUnknown = errors.New("object not present in catalog")

// Provider introspects schema state from a live system catalog.
type Provider interface {
	// ListObjects enumerates every object the catalog currently holds,
	// ordered by identity.
	ListObjects(ctx context.Context) ([]core.ObjectRef, error)

	// FetchDefinition returns the authoritative definition text of one
	// object, or ErrObjectUnknown.
	FetchDefinition(ctx context.Context, ref core.ObjectRef) (string, error)

	// FetchDependencies returns the outgoing dependency edges of one
	// object. Unknown objects fail with ErrObjectUnknown.
	FetchDependencies(ctx context.Context, ref core.ObjectRef) ([]core.Dependency, error)
}

// Memory is an in-process Provider backed by maps, used as the test
// double for a live catalog and as the staging area for definitions fed
// in by hand.
type Memory struct {
	mu          sync.RWMutex
	definitions map[core.ObjectRef]string
	deps        map[core.ObjectRef][]core.Dependency
}

func NewMemory() *Memory {
	return &Memory{
		definitions: make(map[core.ObjectRef]string),
		deps:        make(map[core.ObjectRef][]core.Dependency),
	}
}

// Put stores or replaces an object's definition.
func (m *Memory) Put(ref core.ObjectRef, definition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[ref] = definition
}

// Remove deletes an object and its outgoing edges.
func (m *Memory) Remove(ref core.ObjectRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.definitions, ref)
	delete(m.deps, ref)
}

// Link records a dependency edge from one object to another.
func (m *Memory) Link(dep core.Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.definitions[dep.From]; !ok {
		return fmt.Errorf("%s: %w", dep.From, ErrObjectUnknown)
	}
	m.deps[dep.From] = append(m.deps[dep.From], dep)
	return nil
}

func (m *Memory) ListObjects(ctx context.Context) ([]core.ObjectRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]core.ObjectRef, 0, len(m.definitions))
	for ref := range m.definitions {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs, nil
}

func (m *Memory) FetchDefinition(ctx context.Context, ref core.ObjectRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	definition, ok := m.definitions[ref]
	if !ok {
		return "", fmt.Errorf("%s: %w", ref, ErrObjectUnknown)
	}
	return definition, nil
}

func (m *Memory) FetchDependencies(ctx context.Context, ref core.ObjectRef) ([]core.Dependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.definitions[ref]; !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrObjectUnknown)
	}
	edges := make([]core.Dependency, len(m.deps[ref]))
	copy(edges, m.deps[ref])
	return edges, nil
}
