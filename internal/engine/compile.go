package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/xperimental/git-seek/internal/schema"
)

// QueryError reports a problem with a query or its variables.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

func queryErrorf(format string, args ...interface{}) error {
	return &QueryError{Message: fmt.Sprintf(format, args...)}
}

type plan struct {
	rootEdge   string
	rootParams EdgeParameters
	root       *component
	outputs    []string
}

// component is the selection made on one vertex type.
type component struct {
	typeName   string
	coerceFrom string
	properties []*property
	edges      []*edge
}

type property struct {
	name    string
	output  string
	filters []*filter
}

type edge struct {
	name     string
	params   EdgeParameters
	optional bool
	child    *component
}

type compiler struct {
	schema    *schema.Schema
	variables map[string]FieldValue
	outputs   map[string]bool
	order     []string
}

func compile(s *schema.Schema, query string, variables map[string]FieldValue) (*plan, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: query})
	if err != nil {
		return nil, queryErrorf("can not parse query: %s", err)
	}

	if len(doc.Fragments) > 0 {
		return nil, queryErrorf("named fragments are not supported")
	}
	if len(doc.Operations) != 1 {
		return nil, queryErrorf("query must contain exactly one operation, found %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if op.Operation != ast.Query {
		return nil, queryErrorf("only query operations are supported, got %s", op.Operation)
	}
	if len(op.SelectionSet) != 1 {
		return nil, queryErrorf("query must select exactly one starting edge, found %d", len(op.SelectionSet))
	}
	field, ok := op.SelectionSet[0].(*ast.Field)
	if !ok {
		return nil, queryErrorf("query must start with a field")
	}

	root, ok := s.RootEdge(field.Name)
	if !ok {
		return nil, queryErrorf("unknown starting edge %q", field.Name)
	}
	if len(field.Directives) > 0 {
		return nil, queryErrorf("starting edge %q can not have directives", field.Name)
	}

	c := &compiler{
		schema:    s,
		variables: variables,
		outputs:   map[string]bool{},
	}

	params, err := c.edgeParameters(root, field.Arguments)
	if err != nil {
		return nil, err
	}

	comp, err := c.component(root.TargetType(), field.SelectionSet)
	if err != nil {
		return nil, err
	}

	if len(c.order) == 0 {
		return nil, queryErrorf("query does not have any @output")
	}

	return &plan{
		rootEdge:   root.Name,
		rootParams: params,
		root:       comp,
		outputs:    c.order,
	}, nil
}

func (c *compiler) component(typeName string, selections ast.SelectionSet) (*component, error) {
	if len(selections) == 0 {
		return nil, queryErrorf("selection on type %s is empty", typeName)
	}

	comp := &component{typeName: typeName}
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.InlineFragment:
			if len(selections) != 1 {
				return nil, queryErrorf("type coercion to %s must be the only selection on %s", sel.TypeCondition, typeName)
			}
			if len(sel.Directives) > 0 {
				return nil, queryErrorf("type coercion to %s can not have directives", sel.TypeCondition)
			}
			if !c.schema.HasType(sel.TypeCondition) {
				return nil, queryErrorf("unknown type %q in type coercion", sel.TypeCondition)
			}

			inner, err := c.component(sel.TypeCondition, sel.SelectionSet)
			if err != nil {
				return nil, err
			}
			inner.coerceFrom = typeName
			return inner, nil
		case *ast.FragmentSpread:
			return nil, queryErrorf("fragment spreads are not supported")
		case *ast.Field:
			fd, ok := c.schema.Field(typeName, sel.Name)
			if !ok {
				return nil, queryErrorf("type %s has no field %q", typeName, sel.Name)
			}

			if fd.IsEdge() {
				e, err := c.edge(fd, sel)
				if err != nil {
					return nil, err
				}
				comp.edges = append(comp.edges, e)
				continue
			}

			p, err := c.property(fd, sel)
			if err != nil {
				return nil, err
			}
			comp.properties = append(comp.properties, p)
		default:
			return nil, queryErrorf("unsupported selection %T", selection)
		}
	}

	return comp, nil
}

func (c *compiler) property(fd *schema.Field, field *ast.Field) (*property, error) {
	if len(field.SelectionSet) > 0 {
		return nil, queryErrorf("property %s.%s can not have a selection", fd.Owner, fd.Name)
	}
	if len(field.Arguments) > 0 {
		return nil, queryErrorf("property %s.%s does not take arguments", fd.Owner, fd.Name)
	}

	p := &property{name: fd.Name}
	for _, d := range field.Directives {
		switch d.Name {
		case "output":
			name := field.Alias
			if name == "" {
				name = field.Name
			}
			if custom, ok, err := stringArgument(d, "name"); err != nil {
				return nil, err
			} else if ok {
				name = custom
			}

			if c.outputs[name] {
				return nil, queryErrorf("output name %q is used more than once", name)
			}
			c.outputs[name] = true
			c.order = append(c.order, name)
			p.output = name
		case "filter":
			f, err := c.filter(fd, d)
			if err != nil {
				return nil, err
			}
			p.filters = append(p.filters, f)
		case "tag", "transform", "fold", "recurse", "optional":
			return nil, queryErrorf("@%s is not supported on property %s.%s", d.Name, fd.Owner, fd.Name)
		default:
			return nil, queryErrorf("unknown directive @%s", d.Name)
		}
	}

	return p, nil
}

func (c *compiler) edge(fd *schema.Field, field *ast.Field) (*edge, error) {
	params, err := c.edgeParameters(fd, field.Arguments)
	if err != nil {
		return nil, err
	}

	e := &edge{
		name:   fd.Name,
		params: params,
	}
	for _, d := range field.Directives {
		switch d.Name {
		case "optional":
			e.optional = true
		case "output", "filter", "tag", "transform":
			return nil, queryErrorf("@%s can not be used on edge %s.%s", d.Name, fd.Owner, fd.Name)
		case "fold", "recurse":
			return nil, queryErrorf("@%s is not supported", d.Name)
		default:
			return nil, queryErrorf("unknown directive @%s", d.Name)
		}
	}

	child, err := c.component(fd.TargetType(), field.SelectionSet)
	if err != nil {
		return nil, err
	}
	e.child = child

	return e, nil
}

func (c *compiler) edgeParameters(fd *schema.Field, args ast.ArgumentList) (EdgeParameters, error) {
	params := EdgeParameters{}
	for _, arg := range args {
		def, ok := fd.Argument(arg.Name)
		if !ok {
			return nil, queryErrorf("edge %s.%s has no parameter %q", fd.Owner, fd.Name, arg.Name)
		}

		value, err := literalValue(arg.Value)
		if err != nil {
			return nil, queryErrorf("parameter %q of edge %s.%s: %s", arg.Name, fd.Owner, fd.Name, err)
		}
		if err := checkScalarOperand(def.Type, value); err != nil {
			return nil, queryErrorf("parameter %q of edge %s.%s: %s", arg.Name, fd.Owner, fd.Name, err)
		}
		if value.IsNull() && def.Type.NonNull {
			return nil, queryErrorf("parameter %q of edge %s.%s can not be null", arg.Name, fd.Owner, fd.Name)
		}
		params[arg.Name] = value
	}

	for _, def := range fd.Arguments() {
		if _, ok := params[def.Name]; ok {
			continue
		}
		if def.DefaultValue != nil {
			value, err := literalValue(def.DefaultValue)
			if err != nil {
				return nil, queryErrorf("default of parameter %q of edge %s.%s: %s", def.Name, fd.Owner, fd.Name, err)
			}
			params[def.Name] = value
			continue
		}
		if def.Type.NonNull {
			return nil, queryErrorf("edge %s.%s requires parameter %q", fd.Owner, fd.Name, def.Name)
		}
	}

	return params, nil
}

func (c *compiler) filter(fd *schema.Field, d *ast.Directive) (*filter, error) {
	op, ok, err := stringArgument(d, "op")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, queryErrorf("@filter on %s.%s is missing \"op\"", fd.Owner, fd.Name)
	}

	var operands []FieldValue
	if arg := d.Arguments.ForName("value"); arg != nil {
		refs, err := literalValue(arg.Value)
		if err != nil {
			return nil, queryErrorf("@filter value on %s.%s: %s", fd.Owner, fd.Name, err)
		}

		items, isList := refs.AsList()
		if !isList {
			items = []FieldValue{refs}
		}
		for _, item := range items {
			ref, ok := item.AsString()
			if !ok || !strings.HasPrefix(ref, "$") || len(ref) < 2 {
				return nil, queryErrorf("@filter values must name variables like \"$name\", got %s", item.Literal())
			}

			value, found := c.variables[ref[1:]]
			if !found {
				return nil, queryErrorf("missing value for variable %q", ref[1:])
			}
			operands = append(operands, value)
		}
	}

	f, err := newFilter(op, operands, fd.Type)
	if err != nil {
		return nil, queryErrorf("@filter on %s.%s: %s", fd.Owner, fd.Name, err)
	}
	return f, nil
}

func stringArgument(d *ast.Directive, name string) (string, bool, error) {
	arg := d.Arguments.ForName(name)
	if arg == nil {
		return "", false, nil
	}
	if arg.Value.Kind != ast.StringValue && arg.Value.Kind != ast.BlockValue {
		return "", false, queryErrorf("argument %q of @%s must be a string", name, d.Name)
	}
	return arg.Value.Raw, true, nil
}

func literalValue(v *ast.Value) (FieldValue, error) {
	switch v.Kind {
	case ast.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return Int64(n), nil
		}
		n, err := strconv.ParseUint(v.Raw, 10, 64)
		if err != nil {
			return Null, fmt.Errorf("invalid integer %s", v.Raw)
		}
		return Uint64(n), nil
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return Null, fmt.Errorf("invalid float %s", v.Raw)
		}
		return Float64(f), nil
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return String(v.Raw), nil
	case ast.BooleanValue:
		return Bool(v.Raw == "true"), nil
	case ast.NullValue:
		return Null, nil
	case ast.ListValue:
		items := make([]FieldValue, 0, len(v.Children))
		for _, child := range v.Children {
			item, err := literalValue(child.Value)
			if err != nil {
				return Null, err
			}
			items = append(items, item)
		}
		return List(items...), nil
	case ast.Variable:
		return Null, fmt.Errorf("variables can not be used here, use a literal value")
	default:
		return Null, fmt.Errorf("unsupported value %s", v.String())
	}
}
