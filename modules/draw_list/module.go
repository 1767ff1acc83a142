package draw_list

import (
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the draw_list executor.
type Input struct {
	List string `cty:"list,required"`
}

// Record issues one draw per item of the named draw list. Items with
// indices are drawn indexed. A missing list records nothing.
func Record(input *Input) graph.Executor {
	return func(tc *graph.TaskExecutionContext) error {
		items := tc.DrawList(input.List)
		rec := tc.Recorder()
		for _, item := range items {
			if item.IndexCount > 0 {
				rec.DrawIndexed(item.IndexCount, item.InstanceCount)
			} else {
				rec.Draw(item.VertexCount, item.InstanceCount)
			}
		}
		tc.Logger().Debug("Recorded draw list.", "list", input.List, "draws", len(items))
		return nil
	}
}

// Register registers the executor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterExecutor("draw_list", &registry.RegisteredExecutor{
		NewInput: func() any { return new(Input) },
		Kinds:    []graph.PassKind{graph.KindRaster},
		Build: func(input any) (graph.Executor, error) {
			return Record(input.(*Input)), nil
		},
	})
}
