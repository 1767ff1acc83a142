package testutil

import (
	"testing"

	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/nullgpu"
	"github.com/stretchr/testify/require"
)

// Record runs exec on a fresh null-device recorder and returns the closed
// command list along with the executor's error. A binding without an
// instance records a viewless pass named "test".
func Record(t *testing.T, exec graph.Executor, b graph.TaskBinding) (*nullgpu.List, error) {
	t.Helper()
	if b.Instance == nil {
		b.Instance = &graph.PassInstance{Decl: &graph.PassDecl{Name: "test", Scope: graph.ScopeViewless}, ViewIndex: -1}
	}
	rec, err := nullgpu.NewDevice().NewRecorder(gpu.QueueGraphics, b.Instance.Name())
	require.NoError(t, err)
	b.Recorder = rec

	execErr := exec(graph.NewTaskExecutionContext(b))
	list, err := rec.Close()
	require.NoError(t, err)
	return list.(*nullgpu.List), execErr
}

// PerViewInstance returns a per-view pass instance bound to view.
func PerViewInstance(name string, view int) *graph.PassInstance {
	return &graph.PassInstance{Decl: &graph.PassDecl{Name: name, Scope: graph.ScopePerView}, ViewIndex: view}
}
