package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*graph.TaskExecutionContext) error { return nil }

func views(n int) *graph.FrameContext {
	f := &graph.FrameContext{}
	for range n {
		f.Views = append(f.Views, graph.ViewInfo{})
	}
	return f
}

func rt() gpu.TextureDesc {
	return gpu.Texture2D(64, 64, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageRenderAttachment)
}

func us(n int) time.Duration { return time.Duration(n) * time.Microsecond }

func TestSchedule_SharedShadowBeforePerViewLighting(t *testing.T) {
	b := graph.NewBuilder()
	shadow := b.CreateTexture("ShadowMap", rt(), graph.LifetimeTransient, graph.ScopeShared)
	color := b.CreateTexture("Color", rt(), graph.LifetimeTransient, graph.ScopePerView)
	a := b.AddRasterPass("A").Write(shadow, gpu.StateDepthWrite).SetExecutor(noop)
	lighting := b.AddRasterPass("B").SetScope(graph.ScopePerView).IterateAllViews().
		Read(shadow, gpu.StateShaderResource).Write(color, gpu.StateRenderTarget).SetExecutor(noop)

	g, err := b.Build(context.Background(), views(2))
	require.NoError(t, err)
	res, err := Schedule(context.Background(), g, Options{})
	require.NoError(t, err)

	require.Len(t, g.InstancesOf(a.Handle()), 1)
	require.Len(t, g.InstancesOf(lighting.Handle()), 2)
	aBatch := res.BatchOf[g.InstancesOf(a.Handle())[0]]
	for _, id := range g.InstancesOf(lighting.Handle()) {
		assert.Less(t, aBatch, res.BatchOf[id])
	}
	assert.Len(t, res.Batches, 2)
	assert.Empty(t, res.SyncPoints, "single queue needs no sync points")
}

func TestSchedule_ZeroViewsDropsPerViewPasses(t *testing.T) {
	b := graph.NewBuilder()
	b.AddRasterPass("per_view").SetScope(graph.ScopePerView).IterateAllViews().SetExecutor(noop)
	shared := b.AddComputePass("shared").SetExecutor(noop)
	viewless := b.AddCopyPass("viewless").SetScope(graph.ScopeViewless).SetExecutor(noop)

	g, err := b.Build(context.Background(), views(0))
	require.NoError(t, err)
	res, err := Schedule(context.Background(), g, Options{})
	require.NoError(t, err)

	require.Len(t, res.Order, 2)
	assert.ElementsMatch(t, []graph.InstanceID{
		g.InstancesOf(shared.Handle())[0],
		g.InstancesOf(viewless.Handle())[0],
	}, res.Order)
}

func TestSchedule_TieBreak(t *testing.T) {
	b := graph.NewBuilder()
	cheap := b.AddComputePass("cheap").SetEstimatedCost(graph.Cost{GPU: us(10)}).SetExecutor(noop)
	expensive := b.AddComputePass("expensive").SetEstimatedCost(graph.Cost{GPU: us(500)}).SetExecutor(noop)
	urgent := b.AddComputePass("urgent").SetPriority(5).SetEstimatedCost(graph.Cost{GPU: us(1)}).SetExecutor(noop)
	tiedA := b.AddComputePass("tied_a").SetEstimatedCost(graph.Cost{GPU: us(10)}).SetExecutor(noop)

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	res, err := Schedule(context.Background(), g, Options{Threads: 1})
	require.NoError(t, err)

	id := func(pb *graph.PassBuilder) graph.InstanceID { return g.InstancesOf(pb.Handle())[0] }
	assert.Equal(t, []graph.InstanceID{id(urgent), id(expensive), id(cheap), id(tiedA)}, res.Order)
	assert.Len(t, res.Batches, 4, "one thread means one instance per batch")

	res, err = Schedule(context.Background(), g, Options{Threads: 3})
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	assert.Len(t, res.Batches[0].Instances, 3)
}

type doubling struct{}

func (doubling) GetRefinedCost(_ string, c graph.Cost) graph.Cost {
	return graph.Cost{CPU: 2 * c.CPU, GPU: 2 * c.GPU, Memory: c.Memory}
}

func TestSchedule_UsesCostSource(t *testing.T) {
	b := graph.NewBuilder()
	b.AddComputePass("p").SetEstimatedCost(graph.Cost{CPU: us(5), GPU: us(7)}).SetExecutor(noop)
	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	res, err := Schedule(context.Background(), g, Options{Costs: doubling{}})
	require.NoError(t, err)
	assert.Equal(t, us(14), res.Costs[0].GPU)
	assert.Equal(t, us(14), res.CriticalPathGPU)
}

func TestSchedule_CrossQueueSyncPoints(t *testing.T) {
	b := graph.NewBuilder()
	staging := b.ImportBuffer("staging", gpu.BufferDesc{Size: 4096}, 3)
	vertices := b.CreateBuffer("vertices", gpu.BufferDesc{Size: 4096}, graph.LifetimeTransient, graph.ScopeShared)
	culled := b.CreateBuffer("culled", gpu.BufferDesc{Size: 4096}, graph.LifetimeTransient, graph.ScopeShared)
	upload := b.AddCopyPass("upload").SetQueue(gpu.QueueCopy).
		Read(staging, gpu.StateCopySource).Write(vertices, gpu.StateCopyDest).SetExecutor(noop)
	cull := b.AddComputePass("cull").SetQueue(gpu.QueueCompute).
		Read(vertices, gpu.StateShaderResource).Write(culled, gpu.StateUnorderedAccess).SetExecutor(noop)
	draw := b.AddRasterPass("draw").Read(culled, gpu.StateIndirectArgument).SetExecutor(noop)
	hud := b.AddRasterPass("hud").DependsOn(upload.Handle()).SetExecutor(noop)

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	res, err := Schedule(context.Background(), g, Options{})
	require.NoError(t, err)

	id := func(pb *graph.PassBuilder) graph.InstanceID { return g.InstancesOf(pb.Handle())[0] }
	require.Len(t, res.SyncPoints, 3)

	byConsumer := map[graph.InstanceID]SyncPoint{}
	for _, sp := range res.SyncPoints {
		byConsumer[sp.Consumer] = sp
	}

	sp := byConsumer[id(cull)]
	assert.Equal(t, gpu.QueueCopy, sp.Source)
	assert.Equal(t, gpu.QueueCompute, sp.Dest)
	assert.Equal(t, g.ResourceInstancesOf(vertices)[0], sp.Resource)
	assert.Equal(t, res.Fence(id(upload)), sp.Fence)

	sp = byConsumer[id(draw)]
	assert.Equal(t, gpu.QueueCompute, sp.Source)
	assert.Equal(t, gpu.QueueGraphics, sp.Dest)
	assert.Equal(t, gpu.Fence{Queue: gpu.QueueCompute, Value: 1}, sp.Fence)

	sp = byConsumer[id(hud)]
	assert.Equal(t, graph.ResourceInstanceID(-1), sp.Resource, "explicit dependency has no resource")

	assert.Equal(t, uint64(1), res.FenceCount[gpu.QueueCopy])
	assert.Equal(t, uint64(1), res.FenceCount[gpu.QueueCompute])
	assert.Len(t, res.SyncPointsFor(res.BatchOf[id(draw)], gpu.QueueGraphics), 1)
}

func TestSchedule_CriticalPathAndUtilization(t *testing.T) {
	b := graph.NewBuilder()
	x := b.CreateTexture("x", rt(), graph.LifetimeTransient, graph.ScopeShared)
	y := b.CreateTexture("y", rt(), graph.LifetimeTransient, graph.ScopeShared)
	heavy := b.AddRasterPass("heavy").Write(x, gpu.StateRenderTarget).
		SetEstimatedCost(graph.Cost{CPU: us(10), GPU: us(400)}).SetExecutor(noop)
	light := b.AddRasterPass("light").Write(y, gpu.StateRenderTarget).
		SetEstimatedCost(graph.Cost{CPU: us(30), GPU: us(50)}).SetExecutor(noop)
	combine := b.AddRasterPass("combine").
		Read(x, gpu.StateShaderResource).Read(y, gpu.StateShaderResource).
		SetEstimatedCost(graph.Cost{CPU: us(10), GPU: us(100)}).SetExecutor(noop)

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	res, err := Schedule(context.Background(), g, Options{Threads: 2})
	require.NoError(t, err)

	id := func(pb *graph.PassBuilder) graph.InstanceID { return g.InstancesOf(pb.Handle())[0] }
	assert.Equal(t, []graph.InstanceID{id(heavy), id(combine)}, res.CriticalPath)
	assert.Equal(t, us(500), res.CriticalPathGPU)

	// CPU: 50us of work over (30 + 10) span * 2 threads.
	assert.InDelta(t, 50.0/80.0, res.CPUUtilization, 1e-9)
	// GPU: 550us of work over a 500us critical path on one queue, capped.
	assert.InDelta(t, 1.0, res.GPUUtilization, 1e-9)
	assert.Equal(t, []graph.InstanceID{id(heavy), id(light)}, res.Batches[0].Instances)
}
