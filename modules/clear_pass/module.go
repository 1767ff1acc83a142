package clear_pass

import (
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the clear executor.
type Input struct {
	Color []float32 `cty:"color"`
}

// Record clears every slot the pass writes.
func Record(input *Input) graph.Executor {
	value := [4]float32(input.Color)
	return func(tc *graph.TaskExecutionContext) error {
		rec := tc.Recorder()
		for i := range tc.NumWrites() {
			for _, slot := range tc.WriteAll(i) {
				rec.Clear(slot, value)
			}
		}
		return nil
	}
}

// Register registers the executor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterExecutor("clear", &registry.RegisteredExecutor{
		NewInput: func() any { return &Input{Color: []float32{0, 0, 0, 1}} },
		Build: func(input any) (graph.Executor, error) {
			in := input.(*Input)
			if len(in.Color) != 4 {
				return nil, fmt.Errorf("color must have 4 components, got %d", len(in.Color))
			}
			return Record(in), nil
		},
	})
}
