package adapter

import (
	"fmt"
	"iter"

	"github.com/xperimental/git-seek/internal/data"
	"github.com/xperimental/git-seek/internal/engine"
)

// dateLayout is RFC 3339 with a numeric offset even for UTC.
const dateLayout = "2006-01-02T15:04:05-07:00"

type propertyFunc func(data.Vertex) engine.FieldValue

func (a *Adapter) ResolveProperty(contexts iter.Seq[*engine.DataContext[data.Vertex]], typeName, propertyName string) iter.Seq2[*engine.DataContext[data.Vertex], engine.FieldValue] {
	var resolve propertyFunc
	switch typeName {
	case data.TypeRepository:
		resolve = repositoryProperty(propertyName)
	case data.TypeCommit:
		resolve = commitProperty(propertyName)
	case data.TypeBranch:
		resolve = branchProperty(propertyName)
	case data.TypeTag:
		resolve = tagProperty(propertyName)
	default:
		panic(fmt.Sprintf("unexpected type %q", typeName))
	}

	return engine.ResolvePropertyWith(contexts, resolve)
}

func unknownProperty(typeName, propertyName string) string {
	return fmt.Sprintf("unexpected property %s.%s", typeName, propertyName)
}

func repositoryProperty(name string) propertyFunc {
	switch name {
	case "name":
		return func(v data.Vertex) engine.FieldValue {
			return engine.String(v.(*data.Repository).Name)
		}
	default:
		panic(unknownProperty(data.TypeRepository, name))
	}
}

func commitProperty(name string) propertyFunc {
	var f func(*data.Commit) engine.FieldValue
	switch name {
	case "hash":
		f = func(c *data.Commit) engine.FieldValue { return engine.String(c.Hash()) }
	case "message":
		f = func(c *data.Commit) engine.FieldValue { return engine.OptionalString(c.Message()) }
	case "author":
		f = func(c *data.Commit) engine.FieldValue { return engine.String(c.Author().Name) }
	case "author_email":
		f = func(c *data.Commit) engine.FieldValue { return engine.String(c.Author().Email) }
	case "committer":
		f = func(c *data.Commit) engine.FieldValue { return engine.String(c.Committer().Name) }
	case "committer_email":
		f = func(c *data.Commit) engine.FieldValue { return engine.String(c.Committer().Email) }
	case "date":
		f = func(c *data.Commit) engine.FieldValue {
			return engine.String(c.Date().Local().Format(dateLayout))
		}
	default:
		panic(unknownProperty(data.TypeCommit, name))
	}

	return func(v data.Vertex) engine.FieldValue {
		return f(v.(*data.Commit))
	}
}

func branchProperty(name string) propertyFunc {
	switch name {
	case "name":
		return func(v data.Vertex) engine.FieldValue {
			name, ok := v.(*data.Branch).Name()
			if !ok {
				return engine.Null
			}
			return engine.String(name)
		}
	default:
		panic(unknownProperty(data.TypeBranch, name))
	}
}

func tagProperty(name string) propertyFunc {
	var f func(*data.Tag) engine.FieldValue
	switch name {
	case "name":
		f = func(t *data.Tag) engine.FieldValue { return engine.String(t.Name) }
	case "message":
		f = func(t *data.Tag) engine.FieldValue { return engine.OptionalString(t.Message) }
	case "tagger_name":
		f = func(t *data.Tag) engine.FieldValue { return engine.OptionalString(t.TaggerName) }
	case "tagger_email":
		f = func(t *data.Tag) engine.FieldValue { return engine.OptionalString(t.TaggerEmail) }
	default:
		panic(unknownProperty(data.TypeTag, name))
	}

	return func(v data.Vertex) engine.FieldValue {
		return f(v.(*data.Tag))
	}
}
