// Package engine defines the contract between the query executor and a data
// source adapter, and a small executor that drives any such adapter.
//
// All resolver results are lazily pulled sequences. The executor decides how
// many elements it pulls and in which order it interleaves pulls from
// different resolver calls; adapters must tolerate partial consumption.
package engine

import "iter"

// Row is one query result, keyed by output name.
type Row map[string]FieldValue

// EdgeParameters holds the arguments given to an edge in a query.
type EdgeParameters map[string]FieldValue

// Get returns the named parameter if it was supplied.
func (p EdgeParameters) Get(name string) (FieldValue, bool) {
	v, ok := p[name]
	return v, ok
}

// Adapter resolves starting vertices, properties, neighbors and type
// coercions for vertices of type V.
//
// For ResolveProperty, ResolveNeighbors and ResolveCoercion the i-th element
// of the returned sequence must belong to the i-th input context.
type Adapter[V any] interface {
	ResolveStartingVertices(edgeName string, parameters EdgeParameters) iter.Seq[V]
	ResolveProperty(contexts iter.Seq[*DataContext[V]], typeName, propertyName string) iter.Seq2[*DataContext[V], FieldValue]
	ResolveNeighbors(contexts iter.Seq[*DataContext[V]], typeName, edgeName string, parameters EdgeParameters) iter.Seq2[*DataContext[V], iter.Seq[V]]
	ResolveCoercion(contexts iter.Seq[*DataContext[V]], typeName, coerceToType string) iter.Seq2[*DataContext[V], bool]
}

// ResolvePropertyWith maps each context's active vertex through f. Contexts
// without an active vertex resolve to Null.
func ResolvePropertyWith[V any](contexts iter.Seq[*DataContext[V]], f func(V) FieldValue) iter.Seq2[*DataContext[V], FieldValue] {
	return func(yield func(*DataContext[V], FieldValue) bool) {
		for ctx := range contexts {
			value := Null
			if v, ok := ctx.ActiveVertex(); ok {
				value = f(v)
			}
			if !yield(ctx, value) {
				return
			}
		}
	}
}

// ResolveNeighborsWith maps each context's active vertex to its neighbors.
// Contexts without an active vertex have no neighbors.
func ResolveNeighborsWith[V any](contexts iter.Seq[*DataContext[V]], f func(V) iter.Seq[V]) iter.Seq2[*DataContext[V], iter.Seq[V]] {
	return func(yield func(*DataContext[V], iter.Seq[V]) bool) {
		for ctx := range contexts {
			neighbors := Empty[V]()
			if v, ok := ctx.ActiveVertex(); ok {
				neighbors = f(v)
			}
			if !yield(ctx, neighbors) {
				return
			}
		}
	}
}

// ResolveCoercionWith reports for each context whether its active vertex
// satisfies f. Contexts without an active vertex never coerce.
func ResolveCoercionWith[V any](contexts iter.Seq[*DataContext[V]], f func(V) bool) iter.Seq2[*DataContext[V], bool] {
	return func(yield func(*DataContext[V], bool) bool) {
		for ctx := range contexts {
			ok := false
			if v, active := ctx.ActiveVertex(); active {
				ok = f(v)
			}
			if !yield(ctx, ok) {
				return
			}
		}
	}
}

// Empty returns a sequence without elements.
func Empty[V any]() iter.Seq[V] {
	return func(func(V) bool) {}
}
