// Package tools declares the fixed set of operations the agent may invoke
// and the execution contract behind them. Specs are immutable after process
// start; mutating tools are flagged so the executor can gate them behind
// user confirmation.
package tools

import (
	"fmt"
	"sort"
)

// Param value types, matching JSON schema primitives.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeStrings = "array" // array of strings
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Spec describes one callable tool.
type Spec struct {
	Name        string
	Description string
	Mutating    bool
	Params      []Param
}

// ValidateArgs checks a decoded argument object against the spec: every
// required parameter present, every provided parameter known and of the
// right type. Numbers arrive as float64 from JSON decoding.
func (s Spec) ValidateArgs(args map[string]any) error {
	byName := make(map[string]Param, len(s.Params))
	for _, p := range s.Params {
		byName[p.Name] = p
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return fmt.Errorf("tools: %s: missing required parameter %q", s.Name, p.Name)
		}
	}
	for name, value := range args {
		p, ok := byName[name]
		if !ok {
			return fmt.Errorf("tools: %s: unknown parameter %q", s.Name, name)
		}
		if err := checkType(p, value); err != nil {
			return fmt.Errorf("tools: %s: %w", s.Name, err)
		}
	}
	return nil
}

func checkType(p Param, value any) error {
	if value == nil {
		return nil
	}
	switch p.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %q must be a string", p.Name)
		}
	case TypeInteger:
		switch v := value.(type) {
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("parameter %q must be an integer", p.Name)
			}
		case int:
		default:
			return fmt.Errorf("parameter %q must be an integer", p.Name)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean", p.Name)
		}
	case TypeStrings:
		items, ok := value.([]any)
		if !ok {
			if _, ok := value.([]string); ok {
				return nil
			}
			return fmt.Errorf("parameter %q must be an array of strings", p.Name)
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("parameter %q must be an array of strings", p.Name)
			}
		}
	default:
		return fmt.Errorf("parameter %q has unsupported type %q", p.Name, p.Type)
	}
	return nil
}

// Properties returns the spec's parameters as a JSON-schema properties
// object for the model's tool declaration.
func (s Spec) Properties() map[string]any {
	props := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		entry := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Type == TypeStrings {
			entry["items"] = map[string]any{"type": "string"}
		}
		props[p.Name] = entry
	}
	return props
}

// RequiredParams returns the names of required parameters, sorted.
func (s Spec) RequiredParams() []string {
	var required []string
	for _, p := range s.Params {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	return required
}

// Registry is the immutable tool catalog handed to executors.
type Registry struct {
	specs  []Spec
	byName map[string]Spec
}

// NewRegistry builds a registry from specs, rejecting duplicate names.
func NewRegistry(specs []Spec) (*Registry, error) {
	byName := make(map[string]Spec, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("tools: spec with empty name")
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", spec.Name)
		}
		byName[spec.Name] = spec
	}
	return &Registry{specs: append([]Spec(nil), specs...), byName: byName}, nil
}

// Specs returns the catalog in declaration order.
func (r *Registry) Specs() []Spec {
	return append([]Spec(nil), r.specs...)
}

// Lookup returns the named spec.
func (r *Registry) Lookup(name string) (Spec, bool) {
	spec, ok := r.byName[name]
	return spec, ok
}

// Subset returns a registry restricted to the named tools, preserving
// declaration order. Unknown names are an error: a specialist wired to a
// tool that does not exist is a configuration bug.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("tools: subset: unknown tool %q", name)
		}
		want[name] = true
	}
	var specs []Spec
	for _, spec := range r.specs {
		if want[spec.Name] {
			specs = append(specs, spec)
		}
	}
	return NewRegistry(specs)
}
