package vcs

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
)

// DefaultBranch is the protected branch every repository carries. Once
// any commit exists it always resolves.
const DefaultBranch = "master"

// CreateBranch creates a branch pointing at an existing commit.
func (p *Persistence) CreateBranch(name string, from plumbing.Hash) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	branchRef := plumbing.NewBranchReferenceName(name)
	if _, err := p.repo.Reference(branchRef, true); err == nil {
		return fmt.Errorf("branch %q: %w", name, ErrDuplicateBranch)
	}

	if _, err := p.getCommit(from); err != nil {
		return err
	}

	return p.setBranch(name, from)
}

// DeleteBranch removes a branch. The default branch is protected.
func (p *Persistence) DeleteBranch(name string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	if name == DefaultBranch {
		return fmt.Errorf("branch %q: %w", name, ErrProtectedRef)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	branchRef := plumbing.NewBranchReferenceName(name)
	if _, err := p.repo.Reference(branchRef, true); err != nil {
		return fmt.Errorf("branch %q: %w", name, ErrNotFound)
	}

	return p.repo.Storer.RemoveReference(branchRef)
}

// Resolve returns the commit a branch or tag currently points at.
func (p *Persistence) Resolve(name string) (plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.resolve(name)
}

func (p *Persistence) resolve(name string) (plumbing.Hash, error) {
	if ref, err := p.repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
		return ref.Hash(), nil
	}
	if ref, err := p.repo.Reference(plumbing.NewTagReferenceName(name), true); err == nil {
		return ref.Hash(), nil
	}
	return plumbing.ZeroHash, fmt.Errorf("ref %q: %w", name, ErrNotFound)
}

// Advance moves a branch pointer from expected to next under
// compare-and-swap semantics: if the branch no longer points at expected
// the update fails with ErrNonFastForward and the caller re-reads and
// retries. The update is also rejected unless next's ancestry contains
// expected, or next is a merge commit whose first parent is expected.
func (p *Persistence) Advance(name string, expected, next plumbing.Hash) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.advance(name, expected, next)
}

func (p *Persistence) advance(name string, expected, next plumbing.Hash) error {
	branchRef := plumbing.NewBranchReferenceName(name)
	ref, err := p.repo.Reference(branchRef, true)
	if err != nil {
		return fmt.Errorf("branch %q: %w", name, ErrNotFound)
	}

	current := ref.Hash()
	if current != expected {
		return fmt.Errorf("branch %q moved from %s: %w", name, expected, ErrNonFastForward)
	}

	info, err := p.getCommit(next)
	if err != nil {
		return err
	}

	mergeWithFirstParent := len(info.Parents) == 2 && info.Parents[0] == current
	if !mergeWithFirstParent {
		if !p.isAncestor(current, next) {
			return fmt.Errorf("branch %q: %s does not descend from %s: %w",
				name, next, current, ErrNonFastForward)
		}
	}

	return p.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, next))
}

// setBranch initializes or force-sets a branch pointer. Caller holds the
// write lock.
func (p *Persistence) setBranch(name string, commit plumbing.Hash) error {
	branchRef := plumbing.NewBranchReferenceName(name)
	return p.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, commit))
}

// isAncestor reports whether ancestor is reachable from descendant.
// Caller holds at least a read lock.
func (p *Persistence) isAncestor(ancestor, descendant plumbing.Hash) bool {
	visited := map[plumbing.Hash]bool{descendant: true}
	queue := []plumbing.Hash{descendant}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == ancestor {
			return true
		}

		info, err := p.getCommit(current)
		if err != nil {
			return false
		}
		for _, parent := range info.Parents {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}

// Branches returns all branch names, sorted.
func (p *Persistence) Branches() ([]string, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	branches := []string{}

	refs, err := p.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	refs.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})

	sort.Strings(branches)
	return branches, nil
}

// CreateTag creates an immutable named pointer to a commit. Tags can be
// deleted but never re-pointed.
func (p *Persistence) CreateTag(name string, at plumbing.Hash) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tagRef := plumbing.NewTagReferenceName(name)
	if _, err := p.repo.Reference(tagRef, true); err == nil {
		return fmt.Errorf("tag %q: %w", name, ErrDuplicateBranch)
	}

	if _, err := p.getCommit(at); err != nil {
		return err
	}

	return p.repo.Storer.SetReference(plumbing.NewHashReference(tagRef, at))
}

// DeleteTag removes a tag.
func (p *Persistence) DeleteTag(name string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tagRef := plumbing.NewTagReferenceName(name)
	if _, err := p.repo.Reference(tagRef, true); err != nil {
		return fmt.Errorf("tag %q: %w", name, ErrNotFound)
	}

	return p.repo.Storer.RemoveReference(tagRef)
}
