package validate

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*graph.TaskExecutionContext) error { return nil }

func rt() gpu.TextureDesc {
	return gpu.Texture2D(128, 128, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
}

func build(t *testing.T, b *graph.Builder, views int) *graph.RenderGraph {
	t.Helper()
	frame := &graph.FrameContext{}
	for range views {
		frame.Views = append(frame.Views, graph.ViewInfo{})
	}
	g, err := b.Build(context.Background(), frame)
	require.NoError(t, err)
	return g
}

func ofKind(errs []Error, k Kind) []Error {
	var out []Error
	for _, e := range errs {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func TestValidate_ReadWithoutWrite(t *testing.T) {
	b := graph.NewBuilder()
	history := b.CreateTexture("history", rt(), graph.LifetimeFrameLocal, graph.ScopeShared)
	out := b.CreateTexture("resolved", rt(), graph.LifetimeTransient, graph.ScopeShared)
	taa := b.AddRasterPass("taa").
		Read(history, gpu.StateShaderResource).
		Write(out, gpu.StateRenderTarget).
		SetExecutor(noop)
	b.AddCopyPass("readback").Read(out, gpu.StateCopySource).SetExecutor(noop)

	errs := Validate(context.Background(), build(t, b, 1), Options{})

	require.Len(t, Errors(errs), 1)
	got := Errors(errs)[0]
	assert.Equal(t, ReadWithoutWrite, got.Kind)
	assert.Equal(t, []graph.PassHandle{taa.Handle()}, got.Passes)
	assert.Contains(t, got.Description, `"taa"`)
}

func TestValidate_ReadWithoutWriteReportsPerViewCloneOnce(t *testing.T) {
	b := graph.NewBuilder()
	depth := b.CreateTexture("depth", rt(), graph.LifetimeTransient, graph.ScopePerView)
	p := b.AddRasterPass("ssao").SetScope(graph.ScopePerView).IterateAllViews().
		Read(depth, gpu.StateDepthRead).SetExecutor(noop)

	errs := ofKind(Validate(context.Background(), build(t, b, 3), Options{}), ReadWithoutWrite)
	require.Len(t, errs, 1)
	assert.Equal(t, []graph.PassHandle{p.Handle()}, errs[0].Passes)
}

func TestValidate_ImportedReadsAreFine(t *testing.T) {
	b := graph.NewBuilder()
	env := b.ImportTexture("environment", rt(), 12)
	out := b.CreateTexture("sky", rt(), graph.LifetimeTransient, graph.ScopeShared)
	b.AddRasterPass("sky").Read(env, gpu.StateShaderResource).Write(out, gpu.StateRenderTarget).SetExecutor(noop)
	b.AddRasterPass("compose").Read(out, gpu.StateShaderResource).SetExecutor(noop)

	assert.Empty(t, Validate(context.Background(), build(t, b, 1), Options{}))
}

func TestValidate_ReadModifyWriteWithoutPriorWriter(t *testing.T) {
	b := graph.NewBuilder()
	buf := b.CreateBuffer("counters", gpu.BufferDesc{Size: 256}, graph.LifetimeTransient, graph.ScopeShared)
	first := b.AddComputePass("accumulate").
		Read(buf, gpu.StateUnorderedAccess).Write(buf, gpu.StateUnorderedAccess).SetExecutor(noop)
	b.AddComputePass("accumulate_again").
		Read(buf, gpu.StateUnorderedAccess).Write(buf, gpu.StateUnorderedAccess).SetExecutor(noop)

	errs := Errors(Validate(context.Background(), build(t, b, 0), Options{}))
	require.Len(t, errs, 1)
	assert.Equal(t, []graph.PassHandle{first.Handle()}, errs[0].Passes)
}

func TestValidate_WriteAfterReadInOnePass(t *testing.T) {
	b := graph.NewBuilder()
	tex := b.CreateTexture("feedback", rt(), graph.LifetimeTransient, graph.ScopeShared)
	b.AddRasterPass("init").Write(tex, gpu.StateRenderTarget).SetExecutor(noop)
	bad := b.AddRasterPass("feedback").
		Read(tex, gpu.StateShaderResource).
		Write(tex, gpu.StateRenderTarget).
		SetExecutor(noop)

	errs := ofKind(Validate(context.Background(), build(t, b, 0), Options{}), WriteAfterRead)
	require.Len(t, errs, 1)
	assert.Equal(t, []graph.PassHandle{bad.Handle()}, errs[0].Passes)
}

func TestValidate_PerViewWritesShared(t *testing.T) {
	b := graph.NewBuilder()
	lum := b.CreateBuffer("luminance", gpu.BufferDesc{Size: 4}, graph.LifetimeTransient, graph.ScopeShared)
	p := b.AddComputePass("measure").SetScope(graph.ScopePerView).IterateAllViews().
		Write(lum, gpu.StateUnorderedAccess).SetExecutor(noop)
	b.AddComputePass("adapt").Read(lum, gpu.StateShaderResource).SetExecutor(noop)

	errs := Validate(context.Background(), build(t, b, 2), Options{})
	got := ofKind(errs, PerViewWritesShared)
	require.Len(t, got, 1)
	assert.Equal(t, []graph.PassHandle{p.Handle()}, got[0].Passes)
}

func TestValidate_AliasRequests(t *testing.T) {
	testCases := []struct {
		name    string
		declare func(b *graph.Builder)
		want    []Kind
	}{
		{
			name: "disjoint transients are accepted",
			declare: func(b *graph.Builder) {
				x := b.CreateTexture("x", rt(), graph.LifetimeTransient, graph.ScopeShared)
				y := b.CreateTexture("y", rt(), graph.LifetimeTransient, graph.ScopeShared)
				w := b.AddRasterPass("wx").Write(x, gpu.StateRenderTarget).SetExecutor(noop)
				r := b.AddRasterPass("rx").Read(x, gpu.StateShaderResource).SetExecutor(noop)
				wy := b.AddRasterPass("wy").Write(y, gpu.StateRenderTarget).DependsOn(r.Handle()).SetExecutor(noop)
				b.AddRasterPass("ry").Read(y, gpu.StateShaderResource).DependsOn(wy.Handle()).SetExecutor(noop)
				_ = w
				b.RequestAlias(x, y)
			},
		},
		{
			name: "overlapping lifetimes",
			declare: func(b *graph.Builder) {
				x := b.CreateTexture("x", rt(), graph.LifetimeTransient, graph.ScopeShared)
				y := b.CreateTexture("y", rt(), graph.LifetimeTransient, graph.ScopeShared)
				b.AddRasterPass("w").Write(x, gpu.StateRenderTarget).Write(y, gpu.StateRenderTarget).SetExecutor(noop)
				b.AddRasterPass("r").Read(x, gpu.StateShaderResource).Read(y, gpu.StateShaderResource).SetExecutor(noop)
				b.RequestAlias(x, y)
			},
			want: []Kind{AliasLifetimeOverlap},
		},
		{
			name: "incompatible formats",
			declare: func(b *graph.Builder) {
				x := b.CreateTexture("x", rt(), graph.LifetimeTransient, graph.ScopeShared)
				y := b.CreateBuffer("y", gpu.BufferDesc{Size: 1024}, graph.LifetimeTransient, graph.ScopeShared)
				b.AddRasterPass("w").Write(x, gpu.StateRenderTarget).Write(y, gpu.StateCopyDest).SetExecutor(noop)
				b.AddRasterPass("r").Read(x, gpu.StateShaderResource).Read(y, gpu.StateShaderResource).SetExecutor(noop)
				b.RequestAlias(x, y)
			},
			want: []Kind{AliasIncompatible},
		},
		{
			name: "frame local cannot alias",
			declare: func(b *graph.Builder) {
				x := b.CreateTexture("x", rt(), graph.LifetimeFrameLocal, graph.ScopeShared)
				y := b.CreateTexture("y", rt(), graph.LifetimeTransient, graph.ScopeShared)
				b.AddRasterPass("w").Write(x, gpu.StateRenderTarget).Write(y, gpu.StateRenderTarget).SetExecutor(noop)
				b.AddRasterPass("r").Read(x, gpu.StateShaderResource).Read(y, gpu.StateShaderResource).SetExecutor(noop)
				b.RequestAlias(x, y)
			},
			want: []Kind{AliasIncompatible},
		},
		{
			name: "shared output with later per-view reader",
			declare: func(b *graph.Builder) {
				s := b.CreateTexture("bloom", rt(), graph.LifetimeTransient, graph.ScopeShared)
				v := b.CreateTexture("color", rt(), graph.LifetimeTransient, graph.ScopePerView)
				sw := b.AddRasterPass("bloom_w").Write(s, gpu.StateRenderTarget).SetExecutor(noop)
				sr := b.AddRasterPass("bloom_r").Read(s, gpu.StateShaderResource).DependsOn(sw.Handle()).SetExecutor(noop)
				vw := b.AddRasterPass("color_w").SetScope(graph.ScopePerView).IterateAllViews().
					Write(v, gpu.StateRenderTarget).DependsOn(sr.Handle()).SetExecutor(noop)
				b.AddRasterPass("color_r").SetScope(graph.ScopePerView).IterateAllViews().
					Read(v, gpu.StateShaderResource).DependsOn(vw.Handle()).SetExecutor(noop)
				b.RequestAlias(s, v)
			},
			want: []Kind{AliasScopeHazard},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := graph.NewBuilder()
			tc.declare(b)
			g := build(t, b, 1)

			var kinds []Kind
			for _, e := range Errors(Validate(context.Background(), g, Options{Aliasing: true})) {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, tc.want, kinds)

			assert.False(t, HasErrors(Validate(context.Background(), g, Options{})),
				"alias requests are only checked when aliasing is enabled")
		})
	}
}

func TestValidate_UnreadWriteIsWarning(t *testing.T) {
	b := graph.NewBuilder()
	dbg := b.CreateTexture("debug_overlay", rt(), graph.LifetimeTransient, graph.ScopeShared)
	p := b.AddRasterPass("overlay").Write(dbg, gpu.StateRenderTarget).SetExecutor(noop)
	bb := b.ImportBackBuffer("backbuffer")
	b.AddRasterPass("present_prep").SetScope(graph.ScopePerView).IterateAllViews().
		Write(bb, gpu.StateRenderTarget).SetExecutor(noop)

	errs := Validate(context.Background(), build(t, b, 1), Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, UnreadWrite, errs[0].Kind)
	assert.Equal(t, SeverityWarning, errs[0].Severity)
	assert.Equal(t, []graph.PassHandle{p.Handle()}, errs[0].Passes)
	assert.False(t, HasErrors(errs))
}

func TestValidate_IsDeterministic(t *testing.T) {
	b := graph.NewBuilder()
	a := b.CreateTexture("a", rt(), graph.LifetimeTransient, graph.ScopeShared)
	c := b.CreateTexture("c", rt(), graph.LifetimeTransient, graph.ScopePerView)
	s := b.CreateBuffer("s", gpu.BufferDesc{Size: 16}, graph.LifetimeTransient, graph.ScopeShared)
	b.AddRasterPass("r1").SetScope(graph.ScopePerView).IterateAllViews().
		Read(a, gpu.StateShaderResource).Read(c, gpu.StateShaderResource).
		Write(s, gpu.StateUnorderedAccess).SetExecutor(noop)
	b.AddComputePass("r2").Read(c, gpu.StateShaderResource).SetExecutor(noop)
	b.RequestAlias(a, c)
	g := build(t, b, 2)

	first := Validate(context.Background(), g, Options{Aliasing: true})
	second := Validate(context.Background(), g, Options{Aliasing: true})
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	g2 := build(t, b, 2)
	assert.Equal(t, first, Validate(context.Background(), g2, Options{Aliasing: true}))
}
