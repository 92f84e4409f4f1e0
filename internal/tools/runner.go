package tools

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when a tool exists in the catalog but no
// backing service was wired up for it.
var ErrNotConfigured = errors.New("tools: not configured")

const retryBackoff = 500 * time.Millisecond

// Runner executes a named tool. The executor validates arguments against
// the spec before calling Run.
type Runner interface {
	Run(ctx context.Context, name string, args map[string]any) (string, error)
}

// Handler executes one tool.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Mux routes tool names to handlers. Read-only tools get one retry after a
// short backoff on failure; mutating tools never retry.
type Mux struct {
	registry *Registry
	handlers map[string]Handler
}

// NewMux builds an empty mux over the registry.
func NewMux(registry *Registry) (*Mux, error) {
	if registry == nil {
		return nil, errors.New("tools: registry is required")
	}
	return &Mux{registry: registry, handlers: make(map[string]Handler)}, nil
}

// Register wires a handler to a catalog tool.
func (m *Mux) Register(name string, h Handler) error {
	if _, ok := m.registry.Lookup(name); !ok {
		return fmt.Errorf("tools: register: unknown tool %q", name)
	}
	if h == nil {
		return fmt.Errorf("tools: register: nil handler for %q", name)
	}
	m.handlers[name] = h
	return nil
}

// Run executes the named tool.
func (m *Mux) Run(ctx context.Context, name string, args map[string]any) (string, error) {
	spec, ok := m.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("tools: unknown tool %q", name)
	}
	h, ok := m.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}

	out, err := h(ctx, args)
	if err == nil || spec.Mutating || errors.Is(err, context.Canceled) {
		return out, err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(retryBackoff):
	}
	return h(ctx, args)
}

// Argument accessors for handlers. Missing or mistyped values fall back to
// the default; validation against the spec already ran upstream.

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
