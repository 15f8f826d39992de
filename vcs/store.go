package vcs

import (
	"fmt"
	"io"
	"iter"
	"sort"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/avendley/schemavc/core"
)

// PutDefinition stores a definition blob and returns its content hash.
// Storage is content-addressed, so re-storing an identical definition is
// a no-op returning the same hash. This is the object hasher: callers
// normalize the text first (ddl.Normalize) so semantically identical
// definitions hash identically.
func (p *Persistence) PutDefinition(definition string) (plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.createBlob([]byte(definition))
}

// GetDefinition reads back a definition blob by content hash.
func (p *Persistence) GetDefinition(hash plumbing.Hash) (string, error) {
	if err := p.ensureInitialized(); err != nil {
		return "", err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	blob, err := object.GetBlob(p.repo.Storer, hash)
	if err != nil {
		return "", fmt.Errorf("definition %s: %w", hash, ErrNotFound)
	}

	reader, err := blob.Reader()
	if err != nil {
		return "", fmt.Errorf("failed to open definition blob: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read definition blob: %w", err)
	}
	return string(data), nil
}

// createBlob writes a blob directly into the object store. Caller holds
// the write lock.
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// Snapshot builds and stores a tree capturing the given object set as a
// mapping from identity path to definition blob hash. The returned tree
// id is a pure function of the mapping; identical snapshots deduplicate.
func (p *Persistence) Snapshot(objects map[core.ObjectRef]plumbing.Hash) (plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buildSnapshotTree(objects)
}

func (p *Persistence) buildSnapshotTree(objects map[core.ObjectRef]plumbing.Hash) (plumbing.Hash, error) {
	// Group blob entries by schema, then object type.
	bySchema := make(map[string]map[string][]object.TreeEntry)
	for ref, blobHash := range objects {
		byType, ok := bySchema[ref.Schema]
		if !ok {
			byType = make(map[string][]object.TreeEntry)
			bySchema[ref.Schema] = byType
		}
		byType[string(ref.Type)] = append(byType[string(ref.Type)], object.TreeEntry{
			Name: ref.Name,
			Mode: filemode.Regular,
			Hash: blobHash,
		})
	}

	var schemaEntries []object.TreeEntry
	for schema, byType := range bySchema {
		var typeEntries []object.TreeEntry
		for typeName, entries := range byType {
			subTree, err := p.buildTreeFromEntries(entries)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			typeEntries = append(typeEntries, object.TreeEntry{
				Name: typeName,
				Mode: filemode.Dir,
				Hash: subTree,
			})
		}

		schemaTree, err := p.buildTreeFromEntries(typeEntries)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		schemaEntries = append(schemaEntries, object.TreeEntry{
			Name: schema,
			Mode: filemode.Dir,
			Hash: schemaTree,
		})
	}

	return p.buildTreeFromEntries(schemaEntries)
}

// buildTreeFromEntries creates a tree object from a list of entries.
// Caller holds the write lock.
func (p *Persistence) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Sort entries by name (Git requirement); directories compare with a
	// trailing slash.
	sort.Slice(entries, func(i, j int) bool {
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	if entries == nil {
		entries = []object.TreeEntry{}
	}
	tree := &object.Tree{Entries: entries}

	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// Commit stores a commit node referencing a tree and zero, one or two
// parents. Fails with ErrInvalidParent if any parent id is unknown and
// ErrNotFound if the tree id is unknown. Identical inputs yield the same
// commit id.
func (p *Persistence) Commit(tree plumbing.Hash, parents []plumbing.Hash, message string, author core.Identity, when time.Time) (plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, err
	}
	if len(parents) > 2 {
		return plumbing.ZeroHash, fmt.Errorf("%w: at most two parents", ErrInvalidParent)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := object.GetTree(p.repo.Storer, tree); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("tree %s: %w", tree, ErrNotFound)
	}
	for _, parent := range parents {
		if _, err := object.GetCommit(p.repo.Storer, parent); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("parent %s: %w", parent, ErrInvalidParent)
		}
	}

	return p.createCommit(tree, parents, message, author, when)
}

func (p *Persistence) createCommit(tree plumbing.Hash, parents []plumbing.Hash, message string, author core.Identity, when time.Time) (plumbing.Hash, error) {
	sig := object.Signature{
		Name:  author.Name,
		Email: author.Email,
		When:  when,
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}

	return hash, nil
}

// CommitInfo is the read-side view of a commit node.
type CommitInfo struct {
	ID      plumbing.Hash
	Tree    plumbing.Hash
	Parents []plumbing.Hash
	Message string
	Author  core.Identity
	When    time.Time
}

// GetCommit looks up a commit by id.
func (p *Persistence) GetCommit(id plumbing.Hash) (CommitInfo, error) {
	if err := p.ensureInitialized(); err != nil {
		return CommitInfo{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.getCommit(id)
}

func (p *Persistence) getCommit(id plumbing.Hash) (CommitInfo, error) {
	commit, err := object.GetCommit(p.repo.Storer, id)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit %s: %w", id, ErrNotFound)
	}

	return CommitInfo{
		ID:      commit.Hash,
		Tree:    commit.TreeHash,
		Parents: commit.ParentHashes,
		Message: commit.Message,
		Author:  core.Identity{Name: commit.Author.Name, Email: commit.Author.Email},
		When:    commit.Committer.When,
	}, nil
}

// GetTree checks a tree exists and returns its id. Fails with ErrNotFound.
func (p *Persistence) GetTree(id plumbing.Hash) (plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, err := object.GetTree(p.repo.Storer, id); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("tree %s: %w", id, ErrNotFound)
	}
	return id, nil
}

// TreeObjects loads every definition in a tree, keyed by object identity.
func (p *Persistence) TreeObjects(id plumbing.Hash) (map[core.ObjectRef]string, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.treeObjects(id)
}

func (p *Persistence) treeObjects(id plumbing.Hash) (map[core.ObjectRef]string, error) {
	tree, err := object.GetTree(p.repo.Storer, id)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id, ErrNotFound)
	}

	objects := make(map[core.ObjectRef]string)
	err = tree.Files().ForEach(func(file *object.File) error {
		ref, err := core.ParseRefPath(file.Name)
		if err != nil {
			return err
		}
		contents, err := file.Contents()
		if err != nil {
			return err
		}
		objects[ref] = contents
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", id, err)
	}

	return objects, nil
}

// TreeHashes loads a tree as identity -> blob hash, without reading blob
// contents. Used by the diff engine's cheap first pass.
func (p *Persistence) TreeHashes(id plumbing.Hash) (map[core.ObjectRef]plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	tree, err := object.GetTree(p.repo.Storer, id)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id, ErrNotFound)
	}

	hashes := make(map[core.ObjectRef]plumbing.Hash)
	err = tree.Files().ForEach(func(file *object.File) error {
		ref, err := core.ParseRefPath(file.Name)
		if err != nil {
			return err
		}
		hashes[ref] = file.Hash
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", id, err)
	}

	return hashes, nil
}

// Ancestors returns the commit ids reachable from id, starting with id
// itself, following parent links first-parent-first. The traversal is a
// pure function of the input id for a fixed graph: two calls always
// yield the same finite sequence.
func (p *Persistence) Ancestors(id plumbing.Hash) (iter.Seq[plumbing.Hash], error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	start, err := p.getCommit(id)
	p.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return func(yield func(plumbing.Hash) bool) {
		visited := map[plumbing.Hash]bool{start.ID: true}
		queue := []plumbing.Hash{start.ID}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			if !yield(current) {
				return
			}

			p.mu.RLock()
			info, err := p.getCommit(current)
			p.mu.RUnlock()
			if err != nil {
				return
			}

			for _, parent := range info.Parents {
				if !visited[parent] {
					visited[parent] = true
					queue = append(queue, parent)
				}
			}
		}
	}, nil
}

// Log returns commit info for every ancestor of from, in traversal order.
func (p *Persistence) Log(from plumbing.Hash) ([]CommitInfo, error) {
	ancestors, err := p.Ancestors(from)
	if err != nil {
		return nil, err
	}

	var log []CommitInfo
	for id := range ancestors {
		info, err := p.GetCommit(id)
		if err != nil {
			return nil, err
		}
		log = append(log, info)
	}
	return log, nil
}
