package alias

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*graph.TaskExecutionContext) error { return nil }

func target() gpu.TextureDesc {
	return gpu.Texture2D(512, 512, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
}

func oneView() *graph.FrameContext {
	return &graph.FrameContext{Views: []graph.ViewInfo{{Name: "main"}}}
}

// chain declares t1 -> t2 -> t3 through four passes, so t1 and t3 never
// overlap.
func chain(t *testing.T, lifetime graph.Lifetime) (*graph.RenderGraph, []graph.InstanceID) {
	t.Helper()
	b := graph.NewBuilder()
	t1 := b.CreateTexture("t1", target(), lifetime, graph.ScopeShared)
	t2 := b.CreateTexture("t2", target(), lifetime, graph.ScopeShared)
	t3 := b.CreateTexture("t3", target(), lifetime, graph.ScopeShared)
	b.AddRasterPass("p1").Write(t1, gpu.StateRenderTarget).SetExecutor(noop)
	b.AddRasterPass("p2").Read(t1, gpu.StateShaderResource).Write(t2, gpu.StateRenderTarget).SetExecutor(noop)
	b.AddRasterPass("p3").Read(t2, gpu.StateShaderResource).Write(t3, gpu.StateRenderTarget).SetExecutor(noop)
	b.AddRasterPass("p4").Read(t3, gpu.StateShaderResource).SetExecutor(noop)

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	return g, g.TopologicalOrder()
}

func TestInterval_Overlaps(t *testing.T) {
	testCases := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 1}, Interval{2, 3}, false},
		{Interval{0, 2}, Interval{2, 3}, true},
		{Interval{1, 1}, Interval{0, 5}, true},
		{Interval{4, 5}, Interval{0, 3}, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, tc.a.Overlaps(tc.b), "%v vs %v", tc.a, tc.b)
		assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "overlap must be symmetric")
	}
}

func TestLifetimes(t *testing.T) {
	g, order := chain(t, graph.LifetimeTransient)
	lts := Lifetimes(g, order)

	require.Len(t, lts, 3)
	assert.Equal(t, Interval{0, 1}, lts[0].Interval)
	assert.Equal(t, Interval{1, 2}, lts[1].Interval)
	assert.Equal(t, Interval{2, 3}, lts[2].Interval)
	assert.Equal(t, 0, lts[0].FirstWrite)
	assert.Equal(t, order[1], lts[0].LastUse)

	assert.Equal(t, 1, lts[0].LastAccess)

	g, order = chain(t, graph.LifetimeFrameLocal)
	lts = Lifetimes(g, order)
	for _, lt := range lts {
		assert.Equal(t, Interval{0, 3}, lt.Interval, "frame-local resources live for the whole frame")
	}
	assert.Equal(t, 1, lts[0].LastAccess, "the last access is kept for reclamation")
	assert.Equal(t, order[1], lts[0].LastUse)
}

func TestOptimize_AliasesDisjointLifetimes(t *testing.T) {
	g, order := chain(t, graph.LifetimeTransient)
	size := target().SizeBytes()

	plan := Optimize(context.Background(), g, order, Options{Enabled: true})
	assert.Equal(t, StrategyFull, plan.Strategy)
	assert.Len(t, plan.Pages, 2)
	assert.Equal(t, plan.PageOf[0], plan.PageOf[2], "t1 and t3 should share a page")
	assert.NotEqual(t, plan.PageOf[0], plan.PageOf[1])
	assert.Equal(t, 3*size, plan.RequestedBytes)
	assert.Equal(t, size, plan.BytesSaved())
	assert.Equal(t, 2, plan.AliasedResources())

	plan = Optimize(context.Background(), g, order, Options{})
	assert.Equal(t, StrategySeparate, plan.Strategy)
	assert.Len(t, plan.Pages, 3)
	assert.Zero(t, plan.BytesSaved())
}

func TestOptimize_BudgetLadder(t *testing.T) {
	g, order := chain(t, graph.LifetimeTransient)
	size := target().SizeBytes()

	// Aliasing is off, but the budget only fits two pages: the optimizer
	// aliases outside the (empty) critical path.
	plan := Optimize(context.Background(), g, order, Options{MemoryBudget: 2 * size})
	assert.Equal(t, StrategyOffCriticalPath, plan.Strategy)
	assert.False(t, plan.OverBudget)
	assert.Len(t, plan.Pages, 2)

	// The whole chain is critical, so nothing can be aliased.
	plan = Optimize(context.Background(), g, order, Options{MemoryBudget: 2 * size, CriticalPath: order})
	assert.True(t, plan.OverBudget)
	assert.Len(t, plan.Pages, 3)

	plan = Optimize(context.Background(), g, order, Options{Enabled: true, MemoryBudget: size})
	assert.True(t, plan.OverBudget, "over budget is accepted, never fatal")
	assert.Equal(t, StrategyFull, plan.Strategy)
}

func TestOptimize_RejectsSharedPerViewHazard(t *testing.T) {
	b := graph.NewBuilder()
	shared := b.CreateTexture("bloom", target(), graph.LifetimeTransient, graph.ScopeShared)
	perView := b.CreateTexture("color", target(), graph.LifetimeTransient, graph.ScopePerView)
	sr := b.AddRasterPass("bloom_write").Write(shared, gpu.StateRenderTarget).SetExecutor(noop)
	srd := b.AddRasterPass("bloom_read").Read(shared, gpu.StateShaderResource).SetExecutor(noop).
		DependsOn(sr.Handle())
	vw := b.AddRasterPass("color_write").SetScope(graph.ScopePerView).IterateAllViews().
		Write(perView, gpu.StateRenderTarget).DependsOn(srd.Handle()).SetExecutor(noop)
	b.AddRasterPass("color_read").SetScope(graph.ScopePerView).IterateAllViews().
		Read(perView, gpu.StateShaderResource).DependsOn(vw.Handle()).SetExecutor(noop)

	g, err := b.Build(context.Background(), oneView())
	require.NoError(t, err)
	order := g.TopologicalOrder()

	lts := Lifetimes(g, order)
	s, v := g.ResourceInstancesOf(shared)[0], g.ResourceInstancesOf(perView)[0]
	require.False(t, lts[s].Overlaps(lts[v].Interval), "lifetimes alone would allow aliasing")
	assert.True(t, ScopeHazard(g, Positions(g, order), g.ResourceInstance(s), g.ResourceInstance(v), lts))

	plan := Optimize(context.Background(), g, order, Options{Enabled: true})
	assert.NotEqual(t, plan.PageOf[s], plan.PageOf[v])
	assert.Equal(t, 1, plan.Rejected)
}

func TestPack_RequestedPairsSeededFirst(t *testing.T) {
	class := Class{Heap: gpu.HeapTextures, Format: ClassColor32}
	cands := []Candidate{
		{Resource: 0, Class: class, Size: 100, Interval: Interval{0, 1}, Aliasable: true},
		{Resource: 1, Class: class, Size: 90, Interval: Interval{2, 3}, Aliasable: true},
		{Resource: 2, Class: class, Size: 10, Interval: Interval{4, 5}, Aliasable: true},
	}

	p := Pack(cands, [][2]graph.ResourceInstanceID{{1, 2}}, nil)
	assert.Equal(t, p.PageOf[1], p.PageOf[2])
	assert.Equal(t, p.PageOf[0], p.PageOf[1], "first-fit still places the largest into the seeded page")
}

func TestPack_NeverOverlapsCoResidentIntervals(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	classes := []Class{
		{Heap: gpu.HeapTextures, Format: ClassColor32},
		{Heap: gpu.HeapRenderTargets, Format: ClassDepth},
		{Heap: gpu.HeapBuffers, Format: ClassBuffer},
	}

	for round := range 200 {
		n := 1 + rng.IntN(40)
		cands := make([]Candidate, n)
		for i := range cands {
			start := rng.IntN(50)
			cands[i] = Candidate{
				Resource:  graph.ResourceInstanceID(i),
				Class:     classes[rng.IntN(len(classes))],
				Size:      uint64(1 + rng.IntN(1<<20)),
				Interval:  Interval{Start: start, End: start + rng.IntN(10)},
				Aliasable: rng.IntN(4) != 0,
			}
		}

		p := Pack(cands, nil, nil)
		require.Len(t, p.PageOf, n, "round %d: every candidate gets a page", round)
		for _, page := range p.Pages {
			for i, a := range page.Members {
				assert.LessOrEqual(t, cands[a].Size, page.Size)
				for _, b := range page.Members[i+1:] {
					require.False(t, cands[a].Interval.Overlaps(cands[b].Interval),
						"round %d: resources %d and %d overlap in page %d", round, a, b, page.Index)
					require.Equal(t, cands[a].Class, cands[b].Class)
				}
			}
		}
		assert.LessOrEqual(t, p.AllocatedBytes, p.RequestedBytes)
	}
}

func TestFormatClassOf(t *testing.T) {
	assert.Equal(t, ClassDepth, FormatClassOf(gputypes.TextureFormatDepth24PlusStencil8))
	assert.Equal(t, ClassColor8, FormatClassOf(gputypes.TextureFormatR8Unorm))
	assert.Equal(t, ClassColor32, FormatClassOf(gputypes.TextureFormatRGBA8Unorm))
	assert.Equal(t, FormatClassOf(gputypes.TextureFormatRGBA8Unorm), FormatClassOf(gputypes.TextureFormatBGRA8Unorm))
}

func TestOptimize_SharedPositionsPreventAliasing(t *testing.T) {
	g, order := chain(t, graph.LifetimeTransient)

	// Every instance at the same position means every lifetime overlaps.
	pos := make([]int, len(order))
	plan := Optimize(context.Background(), g, order, Options{Enabled: true, Positions: pos})
	assert.Len(t, plan.Pages, 3)
	assert.Zero(t, plan.BytesSaved())
}
