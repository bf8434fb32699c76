package tool

import (
	"fmt"
	"strings"
)

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError is returned when a lookup names a tool that is not registered.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", e.Name, strings.Join(e.Available, ", "))
}

// Catalog is the prompt-visible projection of a Registry.
type Catalog struct {
	// Descriptions holds one "<name>: <description>" line per tool.
	Descriptions string
	// Names is the comma separated list of tool names.
	Names string
}

// Registry holds a fixed, ordered set of tools. Registration order is the
// order tools are listed in prompts. Lookups are exact and case-sensitive.
//
// A Registry is meant to be populated during setup and read afterwards;
// concurrent reads need no locking, but Register must not race with readers.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding tools in the given order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for static setup.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a tool. Names must be non-empty and unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return NewToolError("", "tool must not be nil", CodeInvalidTool)
	}

	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return NewToolError(name, "tool name must not be empty", CodeInvalidTool)
	}

	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}

	r.tools[name] = t
	r.order = append(r.order, name)

	return nil
}

// Get returns the tool registered under name or an *UnknownToolError.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name, Available: r.Names()}
	}
	return t, nil
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Describe renders the tool catalog shown to the model.
func (r *Registry) Describe() Catalog {
	lines := make([]string, 0, len(r.order))
	for _, name := range r.order {
		lines = append(lines, fmt.Sprintf("%s: %s", name, r.tools[name].Description()))
	}
	return Catalog{
		Descriptions: strings.Join(lines, "\n"),
		Names:        strings.Join(r.order, ", "),
	}
}
