package integration_tests

import (
	"context"
	"testing"

	"github.com/specialistvlad/rendergraph/internal/compiler"
	"github.com/specialistvlad/rendergraph/internal/executor"
	"github.com/specialistvlad/rendergraph/internal/hcl"
	"github.com/specialistvlad/rendergraph/internal/nullgpu"
	"github.com/specialistvlad/rendergraph/internal/producer"
	"github.com/specialistvlad/rendergraph/internal/profiler"
	"github.com/specialistvlad/rendergraph/internal/registry"
	"github.com/specialistvlad/rendergraph/internal/testutil"
	"github.com/specialistvlad/rendergraph/modules/clear_pass"
	"github.com/specialistvlad/rendergraph/modules/copy_pass"
	"github.com/specialistvlad/rendergraph/modules/dispatch"
	"github.com/specialistvlad/rendergraph/modules/draw_list"
	"github.com/specialistvlad/rendergraph/modules/fullscreen"
	"github.com/stretchr/testify/require"
)

// CoreModules are the executor modules shipped with the binary.
var CoreModules = []registry.Module{
	&fullscreen.Module{},
	&draw_list.Module{},
	&dispatch.Module{},
	&copy_pass.Module{},
	&clear_pass.Module{},
}

// Stack is a loaded frame description wired to an in-memory device.
type Stack struct {
	Ctx         context.Context
	Logs        *testutil.SafeBuffer
	Device      *nullgpu.Device
	Surface     *nullgpu.Surface
	Descriptors *nullgpu.Registry
	Reclaimer   *nullgpu.Reclaimer
	Profiler    *profiler.Profiler
	Producer    *producer.Producer
	Compiler    *compiler.Compiler
	Coordinator *executor.Coordinator
}

// StackOption adjusts the compiler settings taken from the description.
type StackOption func(*compiler.Settings)

// NewStack loads files and wires the stack. Without modules the core
// modules are registered.
func NewStack(t *testing.T, files map[string]string, modules []registry.Module, opts ...StackOption) (*Stack, error) {
	t.Helper()
	ctx, logs := testutil.Context(t)
	if modules == nil {
		modules = CoreModules
	}
	reg := registry.New(modules...)
	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}

	model, conv, err := hcl.NewLoader().Load(ctx, testutil.WriteFiles(t, files))
	if err != nil {
		return nil, err
	}
	prod, err := producer.New(ctx, model, reg, conv)
	if err != nil {
		return nil, err
	}
	settings, err := prod.Settings()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&settings)
	}

	s := &Stack{
		Ctx:         ctx,
		Logs:        logs,
		Device:      nullgpu.NewDevice(),
		Surface:     nullgpu.NewSurface(true, 1<<20),
		Descriptors: nullgpu.NewRegistry(1),
		Profiler:    profiler.New(),
		Producer:    prod,
	}
	s.Reclaimer = nullgpu.NewReclaimer(s.Device, s.Descriptors)
	s.Compiler, err = compiler.New(compiler.Options{
		Settings:        settings,
		Registry:        s.Descriptors,
		Reclaimer:       s.Reclaimer,
		Costs:           s.Profiler,
		ExplicitPresent: s.Surface.ExplicitPresentTransition(),
	})
	require.NoError(t, err)
	s.Coordinator, err = executor.New(executor.Options{Device: s.Device, Surface: s.Surface, Profiler: s.Profiler, Workers: 4})
	require.NoError(t, err)
	return s, nil
}

// MustStack is NewStack failing the test on error.
func MustStack(t *testing.T, files map[string]string, modules []registry.Module, opts ...StackOption) *Stack {
	t.Helper()
	s, err := NewStack(t, files, modules, opts...)
	require.NoError(t, err)
	return s
}

// Render compiles and executes frame index.
func (s *Stack) Render(index uint64) (*compiler.Plan, *executor.FrameResult, error) {
	frame := s.Producer.Frame(index)
	plan, err := s.Compiler.Compile(s.Ctx, s.Producer.Request(frame))
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Coordinator.Execute(s.Ctx, plan, frame)
	if err != nil {
		return plan, nil, err
	}
	s.Reclaimer.Collect()
	return plan, res, nil
}

// PassNames returns the executed instance names in execution order.
func PassNames(res *executor.FrameResult) []string {
	names := make([]string, len(res.Timings))
	for i, pt := range res.Timings {
		names[i] = pt.Name
	}
	return names
}
