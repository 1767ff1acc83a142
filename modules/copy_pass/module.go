package copy_pass

import (
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the copy executor. Source and Destination
// index the pass's declared reads and writes.
type Input struct {
	Source      int `cty:"source"`
	Destination int `cty:"destination"`
}

// Record copies the source read into the destination write.
func Record(input *Input) graph.Executor {
	return func(tc *graph.TaskExecutionContext) error {
		if input.Source >= tc.NumReads() || input.Destination >= tc.NumWrites() {
			return fmt.Errorf("copy needs read %d and write %d, pass declares %d reads and %d writes",
				input.Source, input.Destination, tc.NumReads(), tc.NumWrites())
		}
		tc.Recorder().Copy(tc.Write(input.Destination), tc.Read(input.Source))
		return nil
	}
}

// Register registers the executor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterExecutor("copy", &registry.RegisteredExecutor{
		NewInput: func() any { return new(Input) },
		Build: func(input any) (graph.Executor, error) {
			in := input.(*Input)
			if in.Source < 0 || in.Destination < 0 {
				return nil, fmt.Errorf("source and destination must not be negative")
			}
			return Record(in), nil
		},
	})
}
