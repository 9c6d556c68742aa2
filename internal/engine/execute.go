package engine

import (
	"iter"

	"github.com/xperimental/git-seek/internal/schema"
)

// Execute compiles query against s and returns its result rows. Nothing is
// resolved until the returned sequence is ranged over, and every range over it
// runs the query again.
func Execute[V any](s *schema.Schema, adapter Adapter[V], query string, variables map[string]FieldValue) (iter.Seq[Row], error) {
	p, err := compile(s, query, variables)
	if err != nil {
		return nil, err
	}

	ex := &executor[V]{adapter: adapter}
	return func(yield func(Row) bool) {
		starts := adapter.ResolveStartingVertices(p.rootEdge, p.rootParams)
		contexts := func(yield func(*DataContext[V]) bool) {
			for v := range starts {
				if !yield(NewDataContext(v)) {
					return
				}
			}
		}

		for ctx := range ex.component(p.root, contexts) {
			if !yield(ctx.Outputs()) {
				return
			}
		}
	}, nil
}

// Outputs lists the output names the query produces.
func Outputs(s *schema.Schema, query string, variables map[string]FieldValue) ([]string, error) {
	p, err := compile(s, query, variables)
	if err != nil {
		return nil, err
	}
	return p.outputs, nil
}

type executor[V any] struct {
	adapter Adapter[V]
}

func (e *executor[V]) component(c *component, contexts iter.Seq[*DataContext[V]]) iter.Seq[*DataContext[V]] {
	if c.coerceFrom != "" {
		contexts = e.coerce(contexts, c.coerceFrom, c.typeName)
	}
	for _, p := range c.properties {
		contexts = e.property(contexts, c.typeName, p)
	}
	for _, edge := range c.edges {
		contexts = e.expand(contexts, c.typeName, edge)
	}
	return contexts
}

func (e *executor[V]) coerce(contexts iter.Seq[*DataContext[V]], typeName, coerceTo string) iter.Seq[*DataContext[V]] {
	resolved := e.adapter.ResolveCoercion(contexts, typeName, coerceTo)
	return func(yield func(*DataContext[V]) bool) {
		for ctx, ok := range resolved {
			// an absent optional edge keeps its row with null outputs
			if _, active := ctx.ActiveVertex(); active && !ok {
				continue
			}
			if !yield(ctx) {
				return
			}
		}
	}
}

func (e *executor[V]) property(contexts iter.Seq[*DataContext[V]], typeName string, p *property) iter.Seq[*DataContext[V]] {
	resolved := e.adapter.ResolveProperty(contexts, typeName, p.name)
	return func(yield func(*DataContext[V]) bool) {
	rows:
		for ctx, value := range resolved {
			// filters inside an absent optional edge do not apply
			if _, active := ctx.ActiveVertex(); active {
				for _, f := range p.filters {
					if !f.matches(value) {
						continue rows
					}
				}
			}

			if p.output != "" {
				ctx = ctx.withOutput(p.output, value)
			}
			if !yield(ctx) {
				return
			}
		}
	}
}

func (e *executor[V]) expand(contexts iter.Seq[*DataContext[V]], typeName string, edge *edge) iter.Seq[*DataContext[V]] {
	resolved := e.adapter.ResolveNeighbors(contexts, typeName, edge.name, edge.params)
	return func(yield func(*DataContext[V]) bool) {
		for ctx, neighbors := range resolved {
			_, active := ctx.ActiveVertex()
			children := func(yield func(*DataContext[V]) bool) {
				found := false
				for neighbor := range neighbors {
					found = true
					if !yield(ctx.descend(neighbor, true)) {
						return
					}
				}
				if !found && (edge.optional || !active) {
					var zero V
					yield(ctx.descend(zero, false))
				}
			}

			for child := range e.component(edge.child, children) {
				if !yield(child.ascend()) {
					return
				}
			}
		}
	}
}
