package repository

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"
)

const (
	originRemote = "origin"
	unknownName  = "unknown"
	tagPrefix    = "refs/tags/"
)

var (
	errEmptyPath       = errors.New("repository path can not be empty")
	errNoBranchTarget  = errors.New("branch does not point at an object")
	errNoRepositoryArg = errors.New("repository can not be nil")
	errNotCommitTag    = errors.New("tag does not point at a commit")
)

// Repository is a read-only view of a git repository. Everything it returns
// borrows from the underlying handle, which must stay open while results are
// in use.
type Repository struct {
	log  logrus.FieldLogger
	repo *git.Repository
}

// Open opens the repository containing path, searching parent directories
// for the .git directory.
func Open(log logrus.FieldLogger, path string) (*Repository, error) {
	if path == "" {
		return nil, errEmptyPath
	}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		return nil, fmt.Errorf("no git repository found at %q: %w", path, err)
	case err != nil:
		return nil, fmt.Errorf("can not open repository at %q: %w", path, err)
	default:
	}
	log.Debugf("Opened repository at %s", path)

	return New(log, repo)
}

// New wraps an already opened repository.
func New(log logrus.FieldLogger, repo *git.Repository) (*Repository, error) {
	if repo == nil {
		return nil, errNoRepositoryArg
	}

	return &Repository{
		log:  log,
		repo: repo,
	}, nil
}

// Name derives a display name: the last path segment of the origin URL, else
// the directory containing the repository metadata, else "unknown".
func (r *Repository) Name() string {
	if name, ok := r.originName(); ok {
		return name
	}

	if name, ok := r.directoryName(); ok {
		return name
	}

	return unknownName
}

func (r *Repository) originName() (string, bool) {
	remote, err := r.repo.Remote(originRemote)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
		return "", false
	case err != nil:
		r.log.Debugf("Can not look up remote %q: %s", originRemote, err)
		return "", false
	default:
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", false
	}

	return nameFromURL(urls[0])
}

func nameFromURL(url string) (string, bool) {
	for strings.HasSuffix(url, ".git") {
		url = strings.TrimSuffix(url, ".git")
	}

	name := url[strings.LastIndex(url, "/")+1:]
	if name == "" {
		return "", false
	}
	return name, true
}

type filesystemStorer interface {
	Filesystem() billy.Filesystem
}

func (r *Repository) directoryName() (string, bool) {
	storer, ok := r.repo.Storer.(filesystemStorer)
	if !ok {
		return "", false
	}

	metadata, err := filepath.Abs(storer.Filesystem().Root())
	if err != nil {
		r.log.Debugf("Can not resolve repository path: %s", err)
		return "", false
	}

	name := filepath.Base(filepath.Dir(metadata))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", false
	}
	return name, true
}

// History walks the commits reachable from HEAD, newest committer time
// first. A commit is yielded before its parents are read, and parents that
// can not be read are skipped, so shallow or damaged histories still produce
// every commit that is present. A repository without a resolvable HEAD has
// no history.
func (r *Repository) History() iter.Seq[*object.Commit] {
	return func(yield func(*object.Commit) bool) {
		head, err := r.repo.Head()
		if err != nil {
			r.log.Debugf("Can not resolve HEAD: %s", err)
			return
		}

		start, err := r.repo.CommitObject(head.Hash())
		if err != nil {
			r.log.Debugf("Can not read HEAD commit %s: %s", head.Hash(), err)
			return
		}

		queue := binaryheap.NewWith(newerFirst)
		queue.Push(start)
		seen := map[plumbing.Hash]bool{start.Hash: true}
		for {
			item, ok := queue.Pop()
			if !ok {
				return
			}

			c := item.(*object.Commit)
			if !yield(c) {
				return
			}

			for _, parent := range c.ParentHashes {
				if seen[parent] {
					continue
				}
				seen[parent] = true

				p, err := r.repo.CommitObject(parent)
				if err != nil {
					r.log.Debugf("Skipping parent %s of %s: %s", parent, c.Hash, err)
					continue
				}
				queue.Push(p)
			}
		}
	}
}

func newerFirst(a, b interface{}) int {
	x, y := a.(*object.Commit).Committer.When, b.(*object.Commit).Committer.When
	switch {
	case x.After(y):
		return -1
	case x.Before(y):
		return 1
	default:
		return 0
	}
}

// LocalBranches lists the references under refs/heads.
func (r *Repository) LocalBranches() iter.Seq[*plumbing.Reference] {
	return func(yield func(*plumbing.Reference) bool) {
		refs, err := r.repo.Branches()
		if err != nil {
			r.log.Debugf("Failed to list branches: %s", err)
			return
		}
		defer refs.Close()

		for {
			ref, err := refs.Next()
			switch {
			case err == io.EOF:
				return
			case err != nil:
				r.log.Debugf("Error iterating branches: %s", err)
				return
			default:
			}

			if !yield(ref) {
				return
			}
		}
	}
}

// BranchTarget reads the object a local branch currently points at.
func (r *Repository) BranchTarget(name string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("can not find branch %q: %w", name, err)
	}

	if ref.Type() != plumbing.HashReference {
		return plumbing.ZeroHash, fmt.Errorf("branch %q: %w", name, errNoBranchTarget)
	}

	return ref.Hash(), nil
}

// TagNames lists the names of all tags, sorted.
func (r *Repository) TagNames() ([]string, error) {
	refs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	names := []string{}
	if err := refs.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, strings.TrimPrefix(ref.Name().String(), tagPrefix))
		return nil
	}); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// TagReference looks up refs/tags/<name>.
func (r *Repository) TagReference(name string) (*plumbing.Reference, error) {
	ref, err := r.repo.Reference(plumbing.ReferenceName(tagPrefix+name), true)
	if err != nil {
		return nil, fmt.Errorf("can not find tag %q: %w", name, err)
	}
	return ref, nil
}

// AnnotatedTag reads the tag object with the given hash. It fails for
// lightweight tags, whose references point at the tagged object directly.
func (r *Repository) AnnotatedTag(hash plumbing.Hash) (*object.Tag, error) {
	tag, err := r.repo.TagObject(hash)
	if err != nil {
		return nil, fmt.Errorf("can not read tag object %s: %w", hash, err)
	}
	return tag, nil
}

// PeelTag resolves the commit an annotated tag points at. Tags pointing at
// other tags or at non-commit objects are not peeled.
func (r *Repository) PeelTag(tag *object.Tag) (*object.Commit, error) {
	if tag.TargetType != plumbing.CommitObject {
		return nil, fmt.Errorf("tag %q points at a %s: %w", tag.Name, tag.TargetType, errNotCommitTag)
	}

	c, err := tag.Commit()
	if err != nil {
		return nil, fmt.Errorf("can not read commit of tag %q: %w", tag.Name, err)
	}
	return c, nil
}

// Commit reads the commit with the given hash.
func (r *Repository) Commit(hash plumbing.Hash) (*object.Commit, error) {
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("can not read commit %s: %w", hash, err)
	}
	return c, nil
}
