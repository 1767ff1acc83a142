package dispatch

import (
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the dispatch executor. When Tile is set
// the group count covers the bound view's viewport in Tile x Tile groups
// and Groups is ignored.
type Input struct {
	Groups []uint32 `cty:"groups"`
	Tile   uint32   `cty:"tile"`
}

// Record dispatches the configured thread groups.
func Record(input *Input) graph.Executor {
	return func(tc *graph.TaskExecutionContext) error {
		x, y, z := input.Groups[0], input.Groups[1], input.Groups[2]
		if input.Tile > 0 {
			v := tc.View()
			if v == nil {
				return fmt.Errorf("tiled dispatch needs a view")
			}
			x = ceilDiv(uint32(v.Viewport.Width), input.Tile)
			y = ceilDiv(uint32(v.Viewport.Height), input.Tile)
			z = 1
		}
		tc.Recorder().Dispatch(x, y, z)
		return nil
	}
}

func ceilDiv(n, d uint32) uint32 {
	return max((n+d-1)/d, 1)
}

// Register registers the executor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterExecutor("dispatch", &registry.RegisteredExecutor{
		NewInput: func() any { return &Input{Groups: []uint32{1, 1, 1}} },
		Kinds:    []graph.PassKind{graph.KindCompute},
		Build: func(input any) (graph.Executor, error) {
			in := input.(*Input)
			if len(in.Groups) != 3 {
				return nil, fmt.Errorf("groups must have 3 components, got %d", len(in.Groups))
			}
			return Record(in), nil
		},
	})
}
