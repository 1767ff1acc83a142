package nullgpu

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, d *Device, q gpu.QueueType, name string) gpu.CommandList {
	t.Helper()
	rec, err := d.NewRecorder(q, name)
	require.NoError(t, err)
	rec.BeginMarker(name)
	rec.Dispatch(8, 8, 1)
	rec.EndMarker()
	list, err := rec.Close()
	require.NoError(t, err)
	return list
}

func TestRecorder_CapturesCommands(t *testing.T) {
	d := NewDevice()
	rec, err := d.NewRecorder(gpu.QueueGraphics, "draw")
	require.NoError(t, err)
	rec.Barrier(4, gpu.StateUndefined, gpu.StateRenderTarget)
	rec.Draw(3, 1)
	rec.DrawIndexed(36, 2)

	list, err := rec.Close()
	require.NoError(t, err)
	l := list.(*List)
	assert.Equal(t, 1, l.Count(OpBarrier))
	assert.Equal(t, 1, l.Count(OpDraw))
	assert.Equal(t, [3]uint32{36, 2, 0}, l.Commands[2].Args)

	_, err = rec.Close()
	assert.Error(t, err, "double close")

	gpuTime, ok := d.GPUTime(list)
	assert.True(t, ok)
	assert.Equal(t, 3*d.CommandCost, gpuTime)
}

func TestDevice_SubmitChecksFences(t *testing.T) {
	ctx := context.Background()
	d := NewDevice()

	err := d.Submit(ctx, gpu.Submission{
		Queue:  gpu.QueueGraphics,
		Lists:  []gpu.CommandList{record(t, d, gpu.QueueGraphics, "a")},
		Waits:  []gpu.Fence{{Queue: gpu.QueueCompute, Value: 1}},
		Signal: gpu.Fence{Queue: gpu.QueueGraphics, Value: 1},
	})
	assert.ErrorContains(t, err, "never submitted")

	require.NoError(t, d.Submit(ctx, gpu.Submission{
		Queue:  gpu.QueueCompute,
		Lists:  []gpu.CommandList{record(t, d, gpu.QueueCompute, "cull")},
		Signal: gpu.Fence{Queue: gpu.QueueCompute, Value: 1},
	}))
	require.NoError(t, d.Submit(ctx, gpu.Submission{
		Queue:  gpu.QueueGraphics,
		Lists:  []gpu.CommandList{record(t, d, gpu.QueueGraphics, "draw")},
		Waits:  []gpu.Fence{{Queue: gpu.QueueCompute, Value: 1}},
		Signal: gpu.Fence{Queue: gpu.QueueGraphics, Value: 1},
	}))

	err = d.Submit(ctx, gpu.Submission{Queue: gpu.QueueGraphics, Signal: gpu.Fence{Queue: gpu.QueueGraphics, Value: 1}})
	assert.ErrorContains(t, err, "does not advance")

	err = d.Submit(ctx, gpu.Submission{
		Queue:  gpu.QueueGraphics,
		Lists:  []gpu.CommandList{record(t, d, gpu.QueueCopy, "upload")},
		Signal: gpu.Fence{Queue: gpu.QueueGraphics, Value: 2},
	})
	assert.ErrorContains(t, err, "recorded for copy")

	assert.Len(t, d.Submissions(), 2)
	assert.Equal(t, uint64(1), d.CompletedValue(gpu.QueueGraphics))
}

func TestReclaimer_WaitsForGPUCompletion(t *testing.T) {
	ctx := context.Background()
	d := NewDevice()
	d.SetManualCompletion(true)
	reg := NewRegistry(100)
	rc := NewReclaimer(d, reg)

	mem, err := reg.AllocateMemory(gpu.HeapTextures, 4096)
	require.NoError(t, err)
	slot, err := reg.RegisterTexture("history", gpu.TextureDesc{}, mem)
	require.NoError(t, err)
	assert.Equal(t, gpu.DescriptorSlot(100), slot)

	require.NoError(t, d.Submit(ctx, gpu.Submission{Queue: gpu.QueueGraphics, Signal: gpu.Fence{Queue: gpu.QueueGraphics, Value: 1}}))
	rc.DeferRelease(gpu.Retirement{Memory: mem, Slots: []gpu.DescriptorSlot{slot}, Fences: []gpu.Fence{{Queue: gpu.QueueGraphics, Value: 1}}})

	assert.Equal(t, 0, rc.Collect(), "submitted is not completed")
	assert.Equal(t, 1, reg.LiveMemory())

	d.Complete(gpu.QueueGraphics, 1)
	assert.Equal(t, 1, rc.Collect())
	assert.Equal(t, 0, rc.Pending())
	assert.Equal(t, 0, reg.LiveMemory())
	assert.Equal(t, 0, reg.LiveSlots())
	assert.Equal(t, uint64(4096), reg.PeakBytes())
}

func TestRegistry_Capacity(t *testing.T) {
	reg := NewRegistry(0)
	reg.Capacity = map[gpu.HeapType]uint64{gpu.HeapBuffers: 1000}

	_, err := reg.AllocateMemory(gpu.HeapBuffers, 600)
	require.NoError(t, err)
	_, err = reg.AllocateMemory(gpu.HeapBuffers, 600)
	assert.True(t, errors.Is(err, ErrOutOfMemory))
	_, err = reg.AllocateMemory(gpu.HeapTextures, 600)
	assert.NoError(t, err, "other heaps are unbounded")

	_, err = reg.RegisterBuffer("orphan", gpu.BufferDesc{}, 999)
	assert.Error(t, err)
}

func TestSurface(t *testing.T) {
	s := NewSurface(true, 1<<20)
	a, err := s.Acquire("main")
	require.NoError(t, err)
	again, err := s.Acquire("main")
	require.NoError(t, err)
	b, err := s.Acquire("mirror")
	require.NoError(t, err)

	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
	assert.True(t, s.ExplicitPresentTransition())

	require.NoError(t, s.Present(context.Background(), "main"))
	assert.Equal(t, []string{"main"}, s.Presented())

	s.Lose("mirror")
	_, err = s.Acquire("mirror")
	assert.Error(t, err)
}
