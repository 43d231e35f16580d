package agent

import (
	"sync"

	"github.com/zainabsaad99/EECE798S-Project/models"
)

// Registry holds the catalog of callable tools. Registration happens during
// warm-up; once sealed the catalog is immutable and safe for concurrent
// lookups from any number of runs.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registration
	order  []string
	sealed bool
}

type registration struct {
	spec ToolSpec
	fn   ToolFunc
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register adds a tool under its spec name. Duplicate names and registration
// after Seal are rejected.
func (r *Registry) Register(spec ToolSpec, fn ToolFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if spec.Name == "" {
		return &ValidationError{Tool: spec.Name, Param: "name", Reason: "empty tool name"}
	}
	if fn == nil {
		return &ValidationError{Tool: spec.Name, Param: "fn", Reason: "nil tool func"}
	}
	if _, exists := r.tools[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}
	r.tools[spec.Name] = registration{spec: spec, fn: fn}
	r.order = append(r.order, spec.Name)
	return nil
}

// MustRegister is Register that panics; for wiring done at startup where a
// failure means a programming error.
func (r *Registry) MustRegister(spec ToolSpec, fn ToolFunc) {
	if err := r.Register(spec, fn); err != nil {
		panic(err)
	}
}

// Seal freezes the catalog. Idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (ToolSpec, ToolFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return ToolSpec{}, nil, &UnknownToolError{Name: name}
	}
	return reg.spec, reg.fn, nil
}

// DescribeAll renders every registered tool in registration order, as the
// schema list handed to the model. The order is stable so identical catalogs
// produce identical prompts.
func (r *Registry) DescribeAll() []models.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].spec.Def())
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
