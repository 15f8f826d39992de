package vcs

import (
	"errors"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

var (
	ErrNotInitialized   = errors.New("persistence layer not initialized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidParent    = errors.New("invalid parent commit")
	ErrDuplicateBranch  = errors.New("branch already exists")
	ErrProtectedRef     = errors.New("ref is protected")
	ErrNonFastForward   = errors.New("non-fast-forward ref update")
	ErrNoCommonAncestor = errors.New("no common ancestor")
)

// Persistence owns the Git object store holding blobs, trees, commits and
// refs. All exported methods are safe for concurrent use; writes are
// serialized, reads may proceed in parallel.
type Persistence struct {
	repo *git.Repository
	mu   sync.RWMutex
}

// IsInitialized returns true if the persistence layer has a valid repository.
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// NewMemoryPersistence creates a store backed entirely by memory. Used by
// tests and by callers that replay a recorded event log.
func NewMemoryPersistence() (Persistence, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return Persistence{}, err
	}

	return Persistence{repo: repo}, nil
}

// NewFilePersistence creates or opens a store rooted at baseDir.
func NewFilePersistence(baseDir string) (Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return Persistence{}, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return Persistence{}, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository

	if _, statErr := os.Stat(fs.Root()); statErr != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
	} else {
		repo, err = git.Open(storer, wt)
	}
	if err != nil {
		return Persistence{}, err
	}

	return Persistence{repo: repo}, nil
}
