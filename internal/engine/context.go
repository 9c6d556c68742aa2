package engine

// DataContext is one in-flight query row: the vertex currently being
// resolved, the vertices it was reached from, and the outputs collected so
// far. Contexts are never modified after they are handed to an adapter.
type DataContext[V any] struct {
	active    V
	hasActive bool
	suspended []frame[V]
	outputs   map[string]FieldValue
}

type frame[V any] struct {
	vertex    V
	hasActive bool
}

// NewDataContext starts a row at a starting vertex.
func NewDataContext[V any](vertex V) *DataContext[V] {
	return &DataContext[V]{
		active:    vertex,
		hasActive: true,
		outputs:   map[string]FieldValue{},
	}
}

// ActiveVertex returns the vertex this context currently points at. The
// second result is false inside an optional edge that had no neighbors.
func (c *DataContext[V]) ActiveVertex() (V, bool) {
	return c.active, c.hasActive
}

// Outputs returns a copy of the collected outputs.
func (c *DataContext[V]) Outputs() Row {
	row := make(Row, len(c.outputs))
	for k, v := range c.outputs {
		row[k] = v
	}
	return row
}

// descend moves the row onto a neighbor, remembering the current vertex.
func (c *DataContext[V]) descend(vertex V, hasActive bool) *DataContext[V] {
	suspended := make([]frame[V], len(c.suspended), len(c.suspended)+1)
	copy(suspended, c.suspended)
	suspended = append(suspended, frame[V]{vertex: c.active, hasActive: c.hasActive})

	return &DataContext[V]{
		active:    vertex,
		hasActive: hasActive,
		suspended: suspended,
		outputs:   c.outputs,
	}
}

// ascend returns to the vertex the last descend started from.
func (c *DataContext[V]) ascend() *DataContext[V] {
	n := len(c.suspended)
	if n == 0 {
		panic("engine: ascend without matching descend")
	}
	top := c.suspended[n-1]

	return &DataContext[V]{
		active:    top.vertex,
		hasActive: top.hasActive,
		suspended: c.suspended[:n-1],
		outputs:   c.outputs,
	}
}

func (c *DataContext[V]) withOutput(name string, value FieldValue) *DataContext[V] {
	outputs := make(map[string]FieldValue, len(c.outputs)+1)
	for k, v := range c.outputs {
		outputs[k] = v
	}
	outputs[name] = value

	return &DataContext[V]{
		active:    c.active,
		hasActive: c.hasActive,
		suspended: c.suspended,
		outputs:   outputs,
	}
}
