// Package gittest builds small git repositories for tests.
package gittest

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// Epoch is the committer time of the first commit created by a Repo.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// Repo is a repository under construction. Each commit adds a new file and
// advances the clock by one minute.
type Repo struct {
	*git.Repository

	t     testing.TB
	fs    billy.Filesystem
	clock time.Time
	files int
}

// NewMemory creates a repository backed by in-memory storage.
func NewMemory(t testing.TB) *Repo {
	t.Helper()

	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	require.NoError(t, err)

	return &Repo{
		Repository: repo,
		t:          t,
		fs:         fs,
		clock:      Epoch,
	}
}

// NewOnDisk creates a non-bare repository in dir.
func NewOnDisk(t testing.TB, dir string) *Repo {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	return &Repo{
		Repository: repo,
		t:          t,
		fs:         wt.Filesystem,
		clock:      Epoch,
	}
}

// Signature returns a signature at the given time.
func Signature(name, email string, when time.Time) *object.Signature {
	return &object.Signature{
		Name:  name,
		Email: email,
		When:  when,
	}
}

// Commit commits a new file with the default author.
func (r *Repo) Commit(message string) plumbing.Hash {
	r.t.Helper()

	return r.CommitAs(message, "Test User", "test@example.com")
}

// CommitAs commits a new file with the given identity as author and committer.
func (r *Repo) CommitAs(message, name, email string) plumbing.Hash {
	r.t.Helper()

	r.clock = r.clock.Add(time.Minute)
	sig := Signature(name, email, r.clock)
	return r.CommitWith(message, sig, sig)
}

// CommitWith commits a new file with explicit signatures.
func (r *Repo) CommitWith(message string, author, committer *object.Signature) plumbing.Hash {
	r.t.Helper()

	r.files++
	name := fmt.Sprintf("file-%d.txt", r.files)
	f, err := r.fs.Create(name)
	require.NoError(r.t, err)
	_, err = f.Write([]byte(name + "\n"))
	require.NoError(r.t, err)
	require.NoError(r.t, f.Close())

	wt, err := r.Worktree()
	require.NoError(r.t, err)
	_, err = wt.Add(name)
	require.NoError(r.t, err)

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:    author,
		Committer: committer,
	})
	require.NoError(r.t, err)
	return hash
}

// CommitOnto stores a commit with an empty tree on top of parents, which do
// not have to exist, and moves the current branch to it.
func (r *Repo) CommitOnto(message string, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()

	obj := r.Storer.NewEncodedObject()
	require.NoError(r.t, (&object.Tree{}).Encode(obj))
	tree, err := r.Storer.SetEncodedObject(obj)
	require.NoError(r.t, err)

	r.clock = r.clock.Add(time.Minute)
	sig := Signature("Test User", "test@example.com", r.clock)
	c := &object.Commit{
		Author:       *sig,
		Committer:    *sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj = r.Storer.NewEncodedObject()
	require.NoError(r.t, c.Encode(obj))
	hash, err := r.Storer.SetEncodedObject(obj)
	require.NoError(r.t, err)

	head, err := r.Storer.Reference(plumbing.HEAD)
	require.NoError(r.t, err)
	require.NoError(r.t, r.Storer.SetReference(plumbing.NewHashReference(head.Target(), hash)))
	return hash
}

// AnnotatedTag creates a tag object pointing at target.
func (r *Repo) AnnotatedTag(name string, target plumbing.Hash, message string, tagger *object.Signature) {
	r.t.Helper()

	_, err := r.CreateTag(name, target, &git.CreateTagOptions{
		Tagger:  tagger,
		Message: message,
	})
	require.NoError(r.t, err)
}

// LightweightTag creates a tag reference pointing at target.
func (r *Repo) LightweightTag(name string, target plumbing.Hash) {
	r.t.Helper()

	_, err := r.CreateTag(name, target, nil)
	require.NoError(r.t, err)
}

// Branch points a local branch at target, creating it if needed.
func (r *Repo) Branch(name string, target plumbing.Hash) {
	r.t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), target)
	require.NoError(r.t, r.Storer.SetReference(ref))
}

// DeleteBranch removes a local branch.
func (r *Repo) DeleteBranch(name string) {
	r.t.Helper()

	require.NoError(r.t, r.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)))
}

// SetOrigin adds an origin remote with a single URL.
func (r *Repo) SetOrigin(url string) {
	r.t.Helper()

	_, err := r.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	require.NoError(r.t, err)
}

// TreeOf returns the root tree of a commit.
func (r *Repo) TreeOf(commit plumbing.Hash) plumbing.Hash {
	r.t.Helper()

	c, err := r.CommitObject(commit)
	require.NoError(r.t, err)
	return c.TreeHash
}
