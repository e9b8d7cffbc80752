// Package capability declares the callable capabilities: named units of
// behavior with typed input contracts, invocable directly, by the goal
// planner, and over MCP. One registry entry carries both the contract and
// the executor; every external listing is a projection of it.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknown is returned when no capability is registered under a name.
var ErrUnknown = errors.New("unknown capability")

// FieldType is the declared type of one input field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldObject FieldType = "object"
)

// Field is one entry in a capability's input contract.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Enum        []string // for string fields only
}

// ValidationError lists the contract violations found in a raw input.
type ValidationError struct {
	Capability string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Capability, strings.Join(e.Violations, "; "))
}

// Capability is a named, contract-typed unit of executable behavior.
type Capability struct {
	Name        string
	Description string
	Input       []Field
	Run         func(ctx context.Context, input map[string]any) (any, error)
}

// Listing is the external projection of a capability: what planner prompts,
// the HTTP listing, and MCP tool registration see.
type Listing struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// InputSchema renders the contract as a JSON-schema-shaped object.
func (c Capability) InputSchema() json.RawMessage {
	properties := make(map[string]any, len(c.Input))
	var required []string
	for _, f := range c.Input {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}

// validate checks raw against the contract and returns every violation at
// once rather than stopping at the first.
func (c Capability) validate(raw map[string]any) *ValidationError {
	var violations []string
	for _, f := range c.Input {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if f.Required {
				violations = append(violations, fmt.Sprintf("%s: required", f.Name))
			}
			continue
		}
		switch f.Type {
		case FieldString:
			s, isString := v.(string)
			if !isString {
				violations = append(violations, fmt.Sprintf("%s: expected string", f.Name))
				continue
			}
			if f.Required && s == "" {
				violations = append(violations, fmt.Sprintf("%s: must not be empty", f.Name))
				continue
			}
			if len(f.Enum) > 0 && !enumContains(f.Enum, s) {
				violations = append(violations, fmt.Sprintf("%s: must be one of %s", f.Name, strings.Join(f.Enum, "|")))
			}
		case FieldObject:
			if _, isMap := v.(map[string]any); !isMap {
				violations = append(violations, fmt.Sprintf("%s: expected object", f.Name))
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Capability: c.Name, Violations: violations}
}

func enumContains(enum []string, s string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

// Registry holds the fixed capability table.
type Registry struct {
	ordered []Capability
	byName  map[string]Capability
}

// New builds a registry from the given capabilities. Duplicate names are a
// programming error.
func New(caps ...Capability) (*Registry, error) {
	r := &Registry{byName: make(map[string]Capability, len(caps))}
	for _, c := range caps {
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate capability %q", c.Name)
		}
		r.byName[c.Name] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// List projects every capability for prompts and external introspection, in
// registration order.
func (r *Registry) List() []Listing {
	out := make([]Listing, len(r.ordered))
	for i, c := range r.ordered {
		out[i] = Listing{
			Name:        c.Name,
			Description: c.Description,
			InputSchema: c.InputSchema(),
		}
	}
	return out
}

// Contract returns the input contract for name, or false if unregistered.
func (r *Registry) Contract(name string) ([]Field, bool) {
	c, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return c.Input, true
}

// Validate checks raw input against name's contract without executing.
// Returns ErrUnknown for unregistered names.
func (r *Registry) Validate(name string, raw map[string]any) error {
	c, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	if verr := c.validate(raw); verr != nil {
		return verr
	}
	return nil
}

// Invoke validates raw input against name's contract and runs the executor.
func (r *Registry) Invoke(ctx context.Context, name string, raw map[string]any) (any, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if verr := c.validate(raw); verr != nil {
		return nil, verr
	}
	return c.Run(ctx, raw)
}
