// Package adapter exposes a git repository as a queryable graph.
//
// The root edge "repository" yields a single Repository vertex. From there
// queries can follow the commits, branches and tags edges. Lookups that fail
// while enumerating are logged at debug level and the affected item is
// dropped; they never fail the query.
package adapter

import (
	_ "embed"
	"fmt"
	"iter"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/xperimental/git-seek/internal/data"
	"github.com/xperimental/git-seek/internal/engine"
	"github.com/xperimental/git-seek/internal/repository"
	"github.com/xperimental/git-seek/internal/schema"
)

//go:embed schema.graphql
var schemaSDL string

// SDL returns the schema served by the adapter.
func SDL() string {
	return schemaSDL
}

// Adapter resolves graph queries against one repository.
type Adapter struct {
	log    logrus.FieldLogger
	repo   *repository.Repository
	schema *schema.Schema
}

var _ engine.Adapter[data.Vertex] = (*Adapter)(nil)

// New parses the schema and creates an adapter reading from repo.
func New(log logrus.FieldLogger, repo *repository.Repository) (*Adapter, error) {
	s, err := schema.Parse(schemaSDL)
	if err != nil {
		return nil, fmt.Errorf("can not load schema: %w", err)
	}
	log.Debugf("Loaded schema rooted at %s with types %s", s.QueryType(), strings.Join(s.Types(), ", "))

	return &Adapter{
		log:    log,
		repo:   repo,
		schema: s,
	}, nil
}

// Schema returns the parsed schema.
func (a *Adapter) Schema() *schema.Schema {
	return a.schema
}

// Query runs a query against the repository. Rows are produced while the
// returned sequence is ranged over.
func (a *Adapter) Query(query string, variables map[string]engine.FieldValue) (iter.Seq[engine.Row], error) {
	return engine.Execute[data.Vertex](a.schema, a, query, variables)
}

func (a *Adapter) ResolveStartingVertices(edgeName string, _ engine.EdgeParameters) iter.Seq[data.Vertex] {
	switch edgeName {
	case "repository":
		return func(yield func(data.Vertex) bool) {
			yield(&data.Repository{Name: a.repo.Name()})
		}
	default:
		panic(fmt.Sprintf("unexpected starting edge %q", edgeName))
	}
}

func (a *Adapter) ResolveCoercion(contexts iter.Seq[*engine.DataContext[data.Vertex]], typeName, coerceToType string) iter.Seq2[*engine.DataContext[data.Vertex], bool] {
	if !a.schema.HasType(coerceToType) {
		panic(fmt.Sprintf("unexpected coercion of %s to %s", typeName, coerceToType))
	}

	return engine.ResolveCoercionWith(contexts, func(v data.Vertex) bool {
		return a.schema.IsSubtype(v.TypeName(), coerceToType)
	})
}
