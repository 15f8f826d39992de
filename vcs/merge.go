package vcs

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v6/plumbing"

	"github.com/avendley/schemavc/core"
)

// Conflict records one identity both branches changed in different ways.
// Definitions are reported as stored; an empty string means the object
// was absent on that side.
type Conflict struct {
	Ref    core.ObjectRef `json:"ref"`
	Base   string         `json:"base"`
	Ours   string         `json:"ours"`
	Theirs string         `json:"theirs"`
}

// MergeResult is the outcome of a three-way merge. Either Clean is true
// and Commit is set, or Conflicts is non-empty and no ref was touched.
type MergeResult struct {
	Clean     bool          `json:"clean"`
	UpToDate  bool          `json:"upToDate"`
	Commit    plumbing.Hash `json:"commit"`
	Base      plumbing.Hash `json:"base"`
	Changes   int           `json:"changes"`
	Conflicts []Conflict    `json:"conflicts,omitempty"`
}

// MergeBase finds the most recent common ancestor of two commits. Ties
// between equally recent ancestors break to the lowest commit id, so the
// result is deterministic for a fixed graph. Disjoint histories fail
// with ErrNoCommonAncestor.
func (p *Persistence) MergeBase(a, b plumbing.Hash) (plumbing.Hash, error) {
	if err := p.ensureInitialized(); err != nil {
		return plumbing.ZeroHash, err
	}

	aAncestors, err := p.Ancestors(a)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	reachable := make(map[plumbing.Hash]bool)
	for id := range aAncestors {
		reachable[id] = true
	}

	bAncestors, err := p.Ancestors(b)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	var (
		best     plumbing.Hash
		bestWhen time.Time
		found    bool
	)
	for id := range bAncestors {
		if !reachable[id] {
			continue
		}
		info, err := p.GetCommit(id)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		switch {
		case !found:
			best, bestWhen, found = id, info.When, true
		case info.When.After(bestWhen):
			best, bestWhen = id, info.When
		case info.When.Equal(bestWhen) && id.String() < best.String():
			best = id
		}
	}

	if !found {
		return plumbing.ZeroHash, fmt.Errorf("%s and %s: %w", a, b, ErrNoCommonAncestor)
	}
	return best, nil
}

// Merge performs a three-way merge of branch theirs into branch ours.
//
// The merge is all-or-nothing: if any identity was changed differently
// on both sides the conflicts are returned and no ref moves. A clean
// merge synthesizes the merged tree, writes a two-parent merge commit
// whose first parent is ours, and advances ours to it.
func (p *Persistence) Merge(ours, theirs, message string, author core.Identity, when time.Time) (MergeResult, error) {
	if err := p.ensureInitialized(); err != nil {
		return MergeResult{}, err
	}

	oursHead, err := p.Resolve(ours)
	if err != nil {
		return MergeResult{}, err
	}
	theirsHead, err := p.Resolve(theirs)
	if err != nil {
		return MergeResult{}, err
	}

	// Merging a branch with itself, or one already contained in ours,
	// is clean with zero changes.
	if oursHead == theirsHead || p.containsCommit(oursHead, theirsHead) {
		return MergeResult{Clean: true, UpToDate: true, Commit: oursHead}, nil
	}

	base, err := p.MergeBase(oursHead, theirsHead)
	if err != nil {
		return MergeResult{}, err
	}

	baseInfo, err := p.GetCommit(base)
	if err != nil {
		return MergeResult{}, err
	}
	oursInfo, err := p.GetCommit(oursHead)
	if err != nil {
		return MergeResult{}, err
	}
	theirsInfo, err := p.GetCommit(theirsHead)
	if err != nil {
		return MergeResult{}, err
	}

	baseObjects, err := p.TreeObjects(baseInfo.Tree)
	if err != nil {
		return MergeResult{}, err
	}
	ourObjects, err := p.TreeObjects(oursInfo.Tree)
	if err != nil {
		return MergeResult{}, err
	}
	theirObjects, err := p.TreeObjects(theirsInfo.Tree)
	if err != nil {
		return MergeResult{}, err
	}

	merged, changes, conflicts := mergeObjectMaps(baseObjects, ourObjects, theirObjects)

	if len(conflicts) > 0 {
		return MergeResult{Base: base, Conflicts: conflicts}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	blobs := make(map[core.ObjectRef]plumbing.Hash, len(merged))
	for ref, definition := range merged {
		blobHash, err := p.createBlob([]byte(definition))
		if err != nil {
			return MergeResult{}, err
		}
		blobs[ref] = blobHash
	}

	tree, err := p.buildSnapshotTree(blobs)
	if err != nil {
		return MergeResult{}, err
	}

	commit, err := p.createCommit(tree, []plumbing.Hash{oursHead, theirsHead}, message, author, when)
	if err != nil {
		return MergeResult{}, err
	}

	if err := p.advance(ours, oursHead, commit); err != nil {
		return MergeResult{}, err
	}

	return MergeResult{Clean: true, Commit: commit, Base: base, Changes: changes}, nil
}

// containsCommit reports whether target is reachable from head.
func (p *Persistence) containsCommit(head, target plumbing.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isAncestor(target, head)
}

// mergeObjectMaps performs the per-identity three-way resolution: a change
// on one side wins, identical changes on both sides collapse, different
// changes on both sides conflict. Conflicts are never auto-resolved.
func mergeObjectMaps(base, ours, theirs map[core.ObjectRef]string) (map[core.ObjectRef]string, int, []Conflict) {
	merged := make(map[core.ObjectRef]string)
	var changes int
	var conflicts []Conflict

	refs := make(map[core.ObjectRef]bool)
	for ref := range base {
		refs[ref] = true
	}
	for ref := range ours {
		refs[ref] = true
	}
	for ref := range theirs {
		refs[ref] = true
	}

	ordered := make([]core.ObjectRef, 0, len(refs))
	for ref := range refs {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	for _, ref := range ordered {
		baseDef, inBase := base[ref]
		ourDef, inOurs := ours[ref]
		theirDef, inTheirs := theirs[ref]

		ourChanged := inOurs != inBase || (inOurs && ourDef != baseDef)
		theirChanged := inTheirs != inBase || (inTheirs && theirDef != baseDef)

		switch {
		case !ourChanged && !theirChanged:
			if inBase {
				merged[ref] = baseDef
			}
		case ourChanged && !theirChanged:
			if inOurs {
				merged[ref] = ourDef
			}
			changes++
		case theirChanged && !ourChanged:
			if inTheirs {
				merged[ref] = theirDef
			}
			changes++
		case inOurs == inTheirs && (!inOurs || ourDef == theirDef):
			// Both sides made the same change (including both dropping it).
			if inOurs {
				merged[ref] = ourDef
			}
			changes++
		default:
			conflicts = append(conflicts, Conflict{
				Ref:    ref,
				Base:   baseDef,
				Ours:   ourDef,
				Theirs: theirDef,
			})
		}
	}

	return merged, changes, conflicts
}
