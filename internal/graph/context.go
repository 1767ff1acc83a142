package graph

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// TaskBinding is everything the execution coordinator resolves for one
// pass instance before calling its executor.
type TaskBinding struct {
	Recorder gpu.CommandRecorder
	Instance *PassInstance
	Frame    *FrameContext
	// Reads and Writes hold the physical slots for each declared access,
	// in declaration order.
	Reads  [][]gpu.DescriptorSlot
	Writes [][]gpu.DescriptorSlot
	Logger *slog.Logger
}

// TaskExecutionContext is handed to an Executor. It is only valid for the
// duration of the call.
type TaskExecutionContext struct {
	b    TaskBinding
	view *ViewInfo
}

// NewTaskExecutionContext binds an executor call. Per-view instances see
// their own view; shared instances see the primary view; viewless
// instances see none.
func NewTaskExecutionContext(b TaskBinding) *TaskExecutionContext {
	if b.Logger == nil {
		b.Logger = ctxlog.FromContext(context.Background())
	}
	tc := &TaskExecutionContext{b: b}
	if b.Frame != nil && len(b.Frame.Views) > 0 && b.Instance.Decl.Scope != ScopeViewless {
		idx := max(b.Instance.ViewIndex, 0)
		tc.view = &b.Frame.Views[idx]
	}
	return tc
}

// Recorder returns the command recorder owned by this call.
func (tc *TaskExecutionContext) Recorder() gpu.CommandRecorder { return tc.b.Recorder }

// Pass returns the handle of the logical pass being recorded.
func (tc *TaskExecutionContext) Pass() PassHandle { return tc.b.Instance.Decl.Handle }

// PassName returns the instance name, e.g. "gbuffer[1]".
func (tc *TaskExecutionContext) PassName() string { return tc.b.Instance.Name() }

// View returns the bound view, or nil.
func (tc *TaskExecutionContext) View() *ViewInfo { return tc.view }

// ViewIndex returns the bound view index, or -1 for non per-view passes.
func (tc *TaskExecutionContext) ViewIndex() int { return tc.b.Instance.ViewIndex }

// Views returns every active view of the frame.
func (tc *TaskExecutionContext) Views() []ViewInfo {
	if tc.b.Frame == nil {
		return nil
	}
	return tc.b.Frame.Views
}

// Frame returns the frame being recorded.
func (tc *TaskExecutionContext) Frame() *FrameContext { return tc.b.Frame }

// FrameIndex returns the frame counter, or 0 without a frame.
func (tc *TaskExecutionContext) FrameIndex() uint64 {
	if tc.b.Frame == nil {
		return 0
	}
	return tc.b.Frame.FrameIndex
}

// NumReads returns the number of declared reads.
func (tc *TaskExecutionContext) NumReads() int { return len(tc.b.Reads) }

// NumWrites returns the number of declared writes.
func (tc *TaskExecutionContext) NumWrites() int { return len(tc.b.Writes) }

// Read returns the slot of the i-th declared read. When the access binds
// several instances the first one is returned; see ReadAll.
func (tc *TaskExecutionContext) Read(i int) gpu.DescriptorSlot { return first(tc.b.Reads, i) }

// ReadAll returns every slot bound to the i-th declared read.
func (tc *TaskExecutionContext) ReadAll(i int) []gpu.DescriptorSlot { return tc.b.Reads[i] }

// Write returns the slot of the i-th declared write.
func (tc *TaskExecutionContext) Write(i int) gpu.DescriptorSlot { return first(tc.b.Writes, i) }

// WriteAll returns every slot bound to the i-th declared write.
func (tc *TaskExecutionContext) WriteAll(i int) []gpu.DescriptorSlot { return tc.b.Writes[i] }

// DrawList returns the named draw list of the bound view, falling back to
// the frame-wide list.
func (tc *TaskExecutionContext) DrawList(name string) []DrawItem {
	if tc.view != nil {
		if items, ok := tc.view.DrawLists[name]; ok {
			return items
		}
	}
	if tc.b.Frame != nil {
		return tc.b.Frame.DrawLists[name]
	}
	return nil
}

// Logger returns a logger annotated with the pass instance.
func (tc *TaskExecutionContext) Logger() *slog.Logger { return tc.b.Logger }

func first(slots [][]gpu.DescriptorSlot, i int) gpu.DescriptorSlot {
	if i < 0 || i >= len(slots) || len(slots[i]) == 0 {
		return gpu.InvalidSlot
	}
	return slots[i][0]
}
