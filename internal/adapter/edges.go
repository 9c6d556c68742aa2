package adapter

import (
	"fmt"
	"iter"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/xperimental/git-seek/internal/data"
	"github.com/xperimental/git-seek/internal/engine"
)

type neighborFunc func(data.Vertex) iter.Seq[data.Vertex]

func (a *Adapter) ResolveNeighbors(contexts iter.Seq[*engine.DataContext[data.Vertex]], typeName, edgeName string, parameters engine.EdgeParameters) iter.Seq2[*engine.DataContext[data.Vertex], iter.Seq[data.Vertex]] {
	var resolve neighborFunc
	switch typeName {
	case data.TypeRepository:
		resolve = a.repositoryEdge(edgeName, parameters)
	case data.TypeBranch:
		resolve = a.branchEdge(edgeName)
	case data.TypeTag:
		resolve = a.tagEdge(edgeName)
	default:
		panic(fmt.Sprintf("unexpected edge %s.%s", typeName, edgeName))
	}

	return engine.ResolveNeighborsWith(contexts, resolve)
}

func unknownEdge(typeName, edgeName string) string {
	return fmt.Sprintf("unexpected edge %s.%s", typeName, edgeName)
}

func (a *Adapter) repositoryEdge(name string, parameters engine.EdgeParameters) neighborFunc {
	switch name {
	case "commits":
		limit := commitLimit(parameters)
		return func(data.Vertex) iter.Seq[data.Vertex] {
			return a.commits(limit)
		}
	case "branches":
		return func(data.Vertex) iter.Seq[data.Vertex] {
			return a.branches()
		}
	case "tags":
		return func(data.Vertex) iter.Seq[data.Vertex] {
			return a.tags()
		}
	default:
		panic(unknownEdge(data.TypeRepository, name))
	}
}

func (a *Adapter) branchEdge(name string) neighborFunc {
	switch name {
	case "commit":
		return func(v data.Vertex) iter.Seq[data.Vertex] {
			return a.branchCommit(v.(*data.Branch))
		}
	default:
		panic(unknownEdge(data.TypeBranch, name))
	}
}

func (a *Adapter) tagEdge(name string) neighborFunc {
	switch name {
	case "commit":
		return func(v data.Vertex) iter.Seq[data.Vertex] {
			return a.commitByHash(v.(*data.Tag).Target)
		}
	default:
		panic(unknownEdge(data.TypeTag, name))
	}
}

// commitLimit returns the limit parameter, or -1 when the walk is unbounded.
func commitLimit(parameters engine.EdgeParameters) int64 {
	value, ok := parameters.Get("limit")
	if !ok || value.IsNull() {
		return -1
	}

	limit, ok := value.AsInt64()
	if !ok || limit < 0 {
		return -1
	}
	return limit
}

func (a *Adapter) commits(limit int64) iter.Seq[data.Vertex] {
	return func(yield func(data.Vertex) bool) {
		if limit == 0 {
			return
		}

		var count int64
		for c := range a.repo.History() {
			if !yield(data.NewCommit(c)) {
				return
			}

			count++
			if limit > 0 && count >= limit {
				return
			}
		}
	}
}

func (a *Adapter) branches() iter.Seq[data.Vertex] {
	return func(yield func(data.Vertex) bool) {
		for ref := range a.repo.LocalBranches() {
			if ref.Type() == plumbing.InvalidReference {
				a.log.Debugf("Dropping invalid branch reference %s", ref.Name())
				continue
			}

			if !yield(data.NewBranch(ref)) {
				return
			}
		}
	}
}

func (a *Adapter) branchCommit(b *data.Branch) iter.Seq[data.Vertex] {
	return func(yield func(data.Vertex) bool) {
		name, ok := b.Name()
		if !ok {
			return
		}

		target, err := a.repo.BranchTarget(name)
		if err != nil {
			a.log.Debugf("Branch has no commit: %s", err)
			return
		}

		c, err := a.repo.Commit(target)
		if err != nil {
			a.log.Debugf("Branch %q: %s", name, err)
			return
		}
		yield(data.NewCommit(c))
	}
}

func (a *Adapter) tags() iter.Seq[data.Vertex] {
	return func(yield func(data.Vertex) bool) {
		names, err := a.repo.TagNames()
		if err != nil {
			a.log.Debugf("Can not enumerate tags: %s", err)
			return
		}

		for _, name := range names {
			tag, ok := a.resolveTag(name)
			if !ok {
				continue
			}

			if !yield(tag) {
				return
			}
		}
	}
}

func (a *Adapter) resolveTag(name string) (*data.Tag, bool) {
	ref, err := a.repo.TagReference(name)
	if err != nil {
		a.log.Debugf("Skipping tag: %s", err)
		return nil, false
	}

	if annotated, err := a.repo.AnnotatedTag(ref.Hash()); err == nil {
		c, err := a.repo.PeelTag(annotated)
		if err != nil {
			a.log.Debugf("Skipping tag: %s", err)
			return nil, false
		}
		return data.NewAnnotatedTag(name, annotated, c.Hash), true
	}

	c, err := a.repo.Commit(ref.Hash())
	if err != nil {
		a.log.Debugf("Skipping tag %q: %s", name, err)
		return nil, false
	}
	return data.NewLightweightTag(name, c.Hash), true
}

func (a *Adapter) commitByHash(hash plumbing.Hash) iter.Seq[data.Vertex] {
	return func(yield func(data.Vertex) bool) {
		c, err := a.repo.Commit(hash)
		if err != nil {
			a.log.Debugf("Tag target missing: %s", err)
			return
		}
		yield(data.NewCommit(c))
	}
}
