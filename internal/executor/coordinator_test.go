package executor

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/compiler"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/nullgpu"
	"github.com/specialistvlad/rendergraph/internal/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*graph.TaskExecutionContext) error { return nil }

type harness struct {
	device   *nullgpu.Device
	surface  *nullgpu.Surface
	registry *nullgpu.Registry
	profiler *profiler.Profiler
	compiler *compiler.Compiler
	coord    *Coordinator
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()
	h := &harness{
		device:   nullgpu.NewDevice(),
		surface:  nullgpu.NewSurface(true, 1000),
		registry: nullgpu.NewRegistry(100),
		profiler: profiler.New(),
	}
	var err error
	h.compiler, err = compiler.New(compiler.Options{
		Registry:        h.registry,
		Reclaimer:       nullgpu.NewReclaimer(h.device, h.registry),
		Costs:           h.profiler,
		ExplicitPresent: h.surface.ExplicitPresentTransition(),
	})
	require.NoError(t, err)
	h.coord, err = New(Options{Device: h.device, Surface: h.surface, Profiler: h.profiler, Workers: workers})
	require.NoError(t, err)
	return h
}

func (h *harness) run(t *testing.T, frame *graph.FrameContext, declare func(*graph.Builder) error) (*FrameResult, error) {
	t.Helper()
	plan, err := h.compiler.Compile(context.Background(), compiler.Request{Frame: frame, Declare: declare})
	require.NoError(t, err)
	return h.coord.Execute(context.Background(), plan, frame)
}

func twoViews() *graph.FrameContext {
	return &graph.FrameContext{
		FrameIndex: 1,
		Views: []graph.ViewInfo{
			{Name: "main", Target: "main", Viewport: graph.Viewport{Width: 1280, Height: 720}},
			{Name: "mirror", Viewport: graph.Viewport{Width: 640, Height: 360}},
		},
	}
}

func color() gpu.TextureDesc {
	return gpu.Texture2D(128, 128, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
}

// sceneDeclarations is a shadow pass, a compute simulation, a per-view
// scene pass and a per-view compose into the back buffer.
func sceneDeclarations(seen *sync.Map) func(b *graph.Builder) error {
	return func(b *graph.Builder) error {
		shadow := b.CreateTexture("shadow_map",
			gpu.Texture2D(256, 256, gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding),
			graph.LifetimeTransient, graph.ScopeShared)
		particles := b.CreateBuffer("particles",
			gpu.BufferDesc{Size: 4096, Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
			graph.LifetimeTransient, graph.ScopeShared)
		sceneColor := b.CreateTexture("scene_color", color(), graph.LifetimeTransient, graph.ScopePerView)
		back := b.ImportBackBuffer("backbuffer")

		b.AddRasterPass("shadow").Write(shadow, gpu.StateDepthWrite).
			SetExecutor(func(tc *graph.TaskExecutionContext) error {
				tc.Recorder().Draw(3, 1)
				return nil
			})
		b.AddComputePass("simulate").SetQueue(gpu.QueueCompute).Write(particles, gpu.StateUnorderedAccess).
			SetExecutor(func(tc *graph.TaskExecutionContext) error {
				tc.Recorder().Dispatch(64, 1, 1)
				return nil
			})
		b.AddRasterPass("scene").SetScope(graph.ScopePerView).IterateAllViews().
			Read(shadow, gpu.StateShaderResource).
			Read(particles, gpu.StateShaderResource).
			Write(sceneColor, gpu.StateRenderTarget).
			SetExecutor(func(tc *graph.TaskExecutionContext) error {
				seen.Store(tc.View().Name, tc.Write(0))
				tc.Recorder().Draw(36, 1)
				return nil
			})
		b.AddRasterPass("compose").SetScope(graph.ScopePerView).IterateAllViews().
			Read(sceneColor, gpu.StateShaderResource).
			Write(back, gpu.StateRenderTarget).
			SetExecutor(func(tc *graph.TaskExecutionContext) error {
				tc.Recorder().Copy(tc.Write(0), tc.Read(0))
				return nil
			})
		return nil
	}
}

func TestExecute_SceneFrame(t *testing.T) {
	h := newHarness(t, 4)
	var seen sync.Map

	res, err := h.run(t, twoViews(), sceneDeclarations(&seen))
	require.NoError(t, err)

	assert.Len(t, res.Timings, 6, "shadow, simulate, scene x2, compose x2")
	assert.Equal(t, []string{"main", "mirror"}, h.surface.Presented())

	mainSlot, ok := seen.Load("main")
	require.True(t, ok)
	mirrorSlot, ok := seen.Load("mirror")
	require.True(t, ok)
	assert.NotEqual(t, mainSlot, mirrorSlot, "per-view resources have distinct slots")

	subs := h.device.Submissions()
	assert.Equal(t, res.Submissions, len(subs))
	var waited bool
	for _, s := range subs {
		for _, l := range s.Lists {
			list := l.(*nullgpu.List)
			assert.Equal(t, 1, list.Count(nullgpu.OpBeginMarker))
			assert.Equal(t, 1, list.Count(nullgpu.OpEndMarker))
		}
		if s.Queue == gpu.QueueGraphics && slices.Contains(s.Waits, gpu.Fence{Queue: gpu.QueueCompute, Value: 1}) {
			waited = true
		}
	}
	assert.True(t, waited, "the scene pass must wait for the compute simulation")

	stats, ok := h.profiler.Stats("scene")
	require.True(t, ok)
	assert.Equal(t, 2, stats.Samples, "one sample per view instance")
	assert.Positive(t, stats.GPU)
}

func TestExecute_ComposeTransitionsBackBufferToPresent(t *testing.T) {
	h := newHarness(t, 2)
	var seen sync.Map
	_, err := h.run(t, twoViews(), sceneDeclarations(&seen))
	require.NoError(t, err)

	var presents int
	for _, s := range h.device.Submissions() {
		for _, l := range s.Lists {
			for _, cmd := range l.(*nullgpu.List).Commands {
				if cmd.Op == nullgpu.OpBarrier && cmd.After == gpu.StatePresent {
					presents++
					assert.GreaterOrEqual(t, cmd.Slot, gpu.DescriptorSlot(1000), "back buffer slots come from the surface")
				}
			}
		}
	}
	assert.Equal(t, 2, presents)
}

func TestExecute_FailedExecutorSubmitsNothing(t *testing.T) {
	h := newHarness(t, 4)
	declare := func(b *graph.Builder) error {
		tex := b.CreateTexture("t", color(), graph.LifetimeTransient, graph.ScopeShared)
		b.AddRasterPass("producer").Write(tex, gpu.StateRenderTarget).SetExecutor(noop)
		b.AddRasterPass("consumer").Read(tex, gpu.StateShaderResource).
			SetExecutor(func(*graph.TaskExecutionContext) error { return errors.New("shader missing") })
		return nil
	}

	_, err := h.run(t, twoViews(), declare)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutor))
	assert.ErrorContains(t, err, "shader missing")
	assert.Empty(t, h.device.Submissions())
	assert.Empty(t, h.surface.Presented())
}

func TestExecute_PanicIsRecovered(t *testing.T) {
	h := newHarness(t, 4)
	declare := func(b *graph.Builder) error {
		buf := b.CreateBuffer("b", gpu.BufferDesc{Size: 64, Usage: gputypes.BufferUsageUniform}, graph.LifetimeTransient, graph.ScopeShared)
		b.AddComputePass("explode").Write(buf, gpu.StateUnorderedAccess).
			SetExecutor(func(*graph.TaskExecutionContext) error { panic("index out of range") })
		return nil
	}

	_, err := h.run(t, nil, declare)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutor))
	assert.ErrorContains(t, err, "panicked")
	assert.Empty(t, h.device.Submissions())
}

func TestExecute_BoundsRecordingParallelism(t *testing.T) {
	h := newHarness(t, 2)
	var active, peak atomic.Int32
	exec := func(*graph.TaskExecutionContext) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	declare := func(b *graph.Builder) error {
		for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
			buf := b.CreateBuffer(name+"_out", gpu.BufferDesc{Size: 64, Usage: gputypes.BufferUsageUniform}, graph.LifetimeTransient, graph.ScopeShared)
			b.AddComputePass(name).Write(buf, gpu.StateUnorderedAccess).SetExecutor(exec)
		}
		return nil
	}

	res, err := h.run(t, nil, declare)
	require.NoError(t, err)
	assert.Len(t, res.Timings, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 1, res.Submissions, "one batch on one queue")
}

func TestExecute_FencesAdvanceAcrossFrames(t *testing.T) {
	h := newHarness(t, 4)
	declare := func(b *graph.Builder) error {
		tex := b.CreateTexture("t", color(), graph.LifetimeTransient, graph.ScopeShared)
		b.AddRasterPass("producer").Write(tex, gpu.StateRenderTarget).SetExecutor(noop)
		b.AddRasterPass("consumer").Read(tex, gpu.StateShaderResource).SetExecutor(noop)
		return nil
	}

	first, err := h.run(t, nil, declare)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), first.Fences[gpu.QueueGraphics])

	second, err := h.run(t, nil, declare)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), second.Fences[gpu.QueueGraphics])
	assert.Equal(t, first.Plan, second.Plan, "the plan comes from the cache")
}

func TestExecute_RejectsViewCountMismatch(t *testing.T) {
	h := newHarness(t, 1)
	var seen sync.Map
	plan, err := h.compiler.Compile(context.Background(), compiler.Request{Frame: twoViews(), Declare: sceneDeclarations(&seen)})
	require.NoError(t, err)

	_, err = h.coord.Execute(context.Background(), plan, &graph.FrameContext{Views: twoViews().Views[:1]})
	assert.ErrorContains(t, err, "plan was compiled for 2")
}

func TestExecute_LostSurfaceFailsBeforeRecording(t *testing.T) {
	h := newHarness(t, 1)
	h.surface.Lose("mirror")
	var seen sync.Map

	_, err := h.run(t, twoViews(), sceneDeclarations(&seen))
	require.Error(t, err)
	assert.Empty(t, h.device.Submissions())
	_, recorded := seen.Load("main")
	assert.False(t, recorded)
}

func TestNew_RequiresDevice(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	c, err := New(Options{Device: nullgpu.NewDevice()})
	require.NoError(t, err)
	assert.Positive(t, c.Workers())
}
