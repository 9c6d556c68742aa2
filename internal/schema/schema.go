// Package schema wraps a GraphQL SDL document describing the vertex types,
// properties and edges of a queryable graph.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var errNoQueryType = errors.New("schema does not declare a query root type")

// Schema is a parsed, immutable schema.
type Schema struct {
	sdl string
	doc *ast.Schema
}

// Field is a property or an edge of a vertex type.
type Field struct {
	Owner string
	Name  string
	Type  *ast.Type

	def  *ast.FieldDefinition
	edge bool
}

// Parse parses and validates SDL. Every field must resolve to a declared type.
func Parse(sdl string) (*Schema, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if doc.Query == nil {
		return nil, errNoQueryType
	}

	for _, def := range doc.Types {
		if def.BuiltIn {
			continue
		}
		for _, field := range def.Fields {
			if _, ok := doc.Types[field.Type.Name()]; !ok {
				return nil, fmt.Errorf("field %s.%s has unknown type %s", def.Name, field.Name, field.Type.Name())
			}
		}
	}

	return &Schema{
		sdl: sdl,
		doc: doc,
	}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(sdl string) *Schema {
	s, err := Parse(sdl)
	if err != nil {
		panic(err)
	}
	return s
}

// SDL returns the source the schema was parsed from.
func (s *Schema) SDL() string {
	return s.sdl
}

// QueryType is the name of the root type.
func (s *Schema) QueryType() string {
	return s.doc.Query.Name
}

// Types lists the declared vertex types, sorted by name.
func (s *Schema) Types() []string {
	var names []string
	for name, def := range s.doc.Types {
		if def.BuiltIn || name == s.doc.Query.Name {
			continue
		}
		switch def.Kind {
		case ast.Object, ast.Interface, ast.Union:
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HasType reports whether name is a declared vertex type.
func (s *Schema) HasType(name string) bool {
	def, ok := s.doc.Types[name]
	if !ok {
		return false
	}
	return isVertexKind(def.Kind)
}

// RootEdge looks up a starting edge on the query root type.
func (s *Schema) RootEdge(name string) (*Field, bool) {
	f, ok := s.Field(s.doc.Query.Name, name)
	if !ok || !f.IsEdge() {
		return nil, false
	}
	return f, true
}

// Field looks up a property or edge declared on typeName.
func (s *Schema) Field(typeName, fieldName string) (*Field, bool) {
	def, ok := s.doc.Types[typeName]
	if !ok {
		return nil, false
	}
	fd := def.Fields.ForName(fieldName)
	if fd == nil {
		return nil, false
	}

	target := s.doc.Types[fd.Type.Name()]
	return &Field{
		Owner: typeName,
		Name:  fd.Name,
		Type:  fd.Type,
		def:   fd,
		edge:  target != nil && isVertexKind(target.Kind),
	}, true
}

// IsSubtype reports whether values of typeName are also values of superType.
func (s *Schema) IsSubtype(typeName, superType string) bool {
	if typeName == superType {
		return true
	}
	for _, def := range s.doc.Implements[typeName] {
		if def.Name == superType {
			return true
		}
	}
	return false
}

// IsEdge reports whether the field points at other vertices.
func (f *Field) IsEdge() bool {
	return f.edge
}

// TargetType is the named type of the field, without list or non-null wrappers.
func (f *Field) TargetType() string {
	return f.Type.Name()
}

// Argument looks up a declared edge argument.
func (f *Field) Argument(name string) (*ast.ArgumentDefinition, bool) {
	arg := f.def.Arguments.ForName(name)
	return arg, arg != nil
}

// Arguments lists the declared edge arguments.
func (f *Field) Arguments() ast.ArgumentDefinitionList {
	return f.def.Arguments
}

func isVertexKind(kind ast.DefinitionKind) bool {
	return kind == ast.Object || kind == ast.Interface || kind == ast.Union
}
