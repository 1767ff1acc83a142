package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/zclconf/go-cty/cty"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredExecutor holds the compiled Go parts of an executor type.
type RegisteredExecutor struct {
	// NewInput returns a pointer to the input struct, defaults applied.
	NewInput func() any
	// Kinds lists the pass kinds the executor can record; empty means any.
	Kinds []graph.PassKind
	// Build returns the pass executor for a decoded input.
	Build func(input any) (graph.Executor, error)
}

// Registry holds the executors registered for one application instance.
type Registry struct {
	executors map[string]*RegisteredExecutor
}

// New creates a Registry and registers every given module.
func New(modules ...Module) *Registry {
	r := &Registry{executors: make(map[string]*RegisteredExecutor)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterExecutor registers an executor type under name.
func (r *Registry) RegisterExecutor(name string, e *RegisteredExecutor) {
	if _, exists := r.executors[name]; exists {
		panic(fmt.Sprintf("executor with name '%s' already registered", name))
	}
	r.executors[name] = e
}

// Executor returns the executor type registered under name.
func (r *Registry) Executor(name string) (*RegisteredExecutor, bool) {
	e, ok := r.executors[name]
	return e, ok
}

// Names returns the registered executor names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate decodes args into the input of the named executor and builds
// a pass executor for a pass of the given kind.
func (r *Registry) Instantiate(ctx context.Context, conv config.Converter, name string, kind graph.PassKind, args map[string]cty.Value) (graph.Executor, error) {
	e, ok := r.executors[name]
	if !ok {
		return nil, errors.Newf("unknown executor %q (registered: %v)", name, r.Names())
	}
	if len(e.Kinds) > 0 && !slices.Contains(e.Kinds, kind) {
		return nil, errors.Newf("executor %q cannot record %s passes", name, kind)
	}
	input := e.NewInput()
	if err := conv.DecodeArguments(ctx, input, args); err != nil {
		return nil, errors.Wrapf(err, "executor %q", name)
	}
	fn, err := e.Build(input)
	if err != nil {
		return nil, errors.Wrapf(err, "executor %q", name)
	}
	return fn, nil
}
