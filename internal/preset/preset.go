// Package preset contains named, parameterized queries.
package preset

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xperimental/git-seek/internal/engine"
)

// ErrUnknown is returned for a preset name that is not registered.
var ErrUnknown = errors.New("unknown preset")

var (
	errNoName  = errors.New("preset name can not be empty")
	errNoQuery = errors.New("preset query can not be empty")
)

// Param describes one preset parameter. Inline parameters are integers
// substituted into the query text as $name, which allows them to be used as
// edge arguments. All other parameters are passed as query variables.
type Param struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Required    bool    `yaml:"required" json:"required"`
	Default     *string `yaml:"default" json:"default,omitempty"`
	Inline      bool    `yaml:"inline" json:"inline"`
}

// Preset is a named query.
type Preset struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Query       string  `yaml:"query" json:"query"`
	Params      []Param `yaml:"params" json:"params"`
}

// Validate checks that the preset can be run.
func (p Preset) Validate() error {
	if p.Name == "" {
		return errNoName
	}

	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("preset %q: %w", p.Name, errNoQuery)
	}

	seen := map[string]bool{}
	for _, param := range p.Params {
		if param.Name == "" {
			return fmt.Errorf("preset %q has a parameter without name", p.Name)
		}
		if seen[param.Name] {
			return fmt.Errorf("preset %q declares parameter %q twice", p.Name, param.Name)
		}
		seen[param.Name] = true
	}
	return nil
}

// Usage describes the parameters for a listing.
func (p Preset) Usage() string {
	if len(p.Params) == 0 {
		return "(none)"
	}

	parts := make([]string, 0, len(p.Params))
	for _, param := range p.Params {
		switch {
		case param.Default != nil:
			parts = append(parts, fmt.Sprintf("--%s: %s (default: %s)", param.Name, param.Description, *param.Default))
		case param.Required:
			parts = append(parts, fmt.Sprintf("--%s: %s (required)", param.Name, param.Description))
		default:
			parts = append(parts, fmt.Sprintf("--%s: %s (optional)", param.Name, param.Description))
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve builds the query text and variables from user supplied values.
// Values for parameters the preset does not declare are ignored.
func (p Preset) Resolve(values map[string]string) (string, map[string]engine.FieldValue, error) {
	query := p.Query
	variables := map[string]string{}
	for _, param := range p.Params {
		value, ok := values[param.Name]
		switch {
		case ok:
		case param.Default != nil:
			value = *param.Default
		case param.Required:
			return "", nil, fmt.Errorf("missing required parameter '--param %s=<value>' for preset %q", param.Name, p.Name)
		default:
			continue
		}

		if !param.Inline {
			variables[param.Name] = value
			continue
		}

		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return "", nil, fmt.Errorf("parameter %q must be an integer, got %q", param.Name, value)
		}
		query = strings.ReplaceAll(query, "$"+param.Name, value)
	}

	return query, TypedVariables(variables), nil
}

// ParseAssignments parses name=value pairs as given to --param.
func ParseAssignments(assignments []string) (map[string]string, error) {
	result := map[string]string{}
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid parameter format %q: expected '--param name=value'", a)
		}
		result[name] = value
	}
	return result, nil
}

// TypedVariables converts string values to integers or floats where they
// parse as such, keeping everything else as strings.
func TypedVariables(values map[string]string) map[string]engine.FieldValue {
	result := make(map[string]engine.FieldValue, len(values))
	for name, value := range values {
		result[name] = typedValue(value)
	}
	return result
}

func typedValue(value string) engine.FieldValue {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return engine.Int64(n)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return engine.Float64(f)
	}
	return engine.String(value)
}

// Registry holds the built-in presets followed by configured ones.
type Registry struct {
	presets []Preset
}

// NewRegistry creates a registry of the built-in presets plus extra. A preset
// in extra may not reuse a name.
func NewRegistry(extra []Preset) (*Registry, error) {
	presets := Builtin()
	names := map[string]bool{}
	for _, p := range presets {
		names[p.Name] = true
	}

	for _, p := range extra {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if names[p.Name] {
			return nil, fmt.Errorf("preset %q is defined more than once", p.Name)
		}
		names[p.Name] = true
		presets = append(presets, p)
	}

	return &Registry{
		presets: presets,
	}, nil
}

// All lists the presets in registration order.
func (r *Registry) All() []Preset {
	return append([]Preset(nil), r.presets...)
}

// Names lists the preset names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for _, p := range r.presets {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Find looks up a preset by name.
func (r *Registry) Find(name string) (Preset, bool) {
	for _, p := range r.presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Resolve looks up a preset and resolves its query with values.
func (r *Registry) Resolve(name string, values map[string]string) (string, map[string]engine.FieldValue, error) {
	p, ok := r.Find(name)
	if !ok {
		return "", nil, fmt.Errorf("%w %q: run 'git-seek preset list' to see available presets", ErrUnknown, name)
	}
	return p.Resolve(values)
}
