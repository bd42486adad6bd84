package tools

import (
	"fmt"
)

// Registry maps tool names to implementations. It is built once and read-only afterwards.
type Registry struct {
	byName map[string]Tool
	order  []string
}

// NewRegistry creates a registry from the given tools. Names must be unique and
// every tool must declare a known kind.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if t.Kind() == KindUnresolved {
			return nil, fmt.Errorf("tool %q has no kind", t.Name())
		}
		if _, dup := r.byName[t.Name()]; dup {
			return nil, fmt.Errorf("tool %q registered twice", t.Name())
		}
		r.byName[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// GetTools returns all tools in registration order.
func (r *Registry) GetTools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Resolve looks a tool up by exact name.
func (r *Registry) Resolve(name string) Resolution {
	t, ok := r.byName[name]
	if !ok {
		return Resolution{Kind: KindUnresolved, Name: name}
	}
	return Resolution{Kind: t.Kind(), Name: name, Tool: t}
}

// GetTool retrieves a tool by name from the registry
func (r *Registry) GetTool(name string) (Tool, error) {
	res := r.Resolve(name)
	if !res.Resolved() {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return res.Tool, nil
}
