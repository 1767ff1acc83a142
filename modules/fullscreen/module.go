package fullscreen

import (
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the fullscreen executor.
type Input struct {
	Vertices  uint32 `cty:"vertices"`
	Instances uint32 `cty:"instances"`
}

// Record draws a single fullscreen primitive.
func Record(input *Input) graph.Executor {
	return func(tc *graph.TaskExecutionContext) error {
		tc.Recorder().Draw(input.Vertices, input.Instances)
		return nil
	}
}

// Register registers the executor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterExecutor("fullscreen", &registry.RegisteredExecutor{
		NewInput: func() any { return &Input{Vertices: 3, Instances: 1} },
		Kinds:    []graph.PassKind{graph.KindRaster},
		Build: func(input any) (graph.Executor, error) {
			in := input.(*Input)
			if in.Vertices == 0 || in.Instances == 0 {
				return nil, fmt.Errorf("vertices and instances must be positive")
			}
			return Record(in), nil
		},
	})
}
