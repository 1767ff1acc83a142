package graph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/handle"
)

// Builder accumulates resource and pass declarations for one graph.
// Misuse of the declaration API is recorded and reported by Build instead
// of panicking, so a producer can declare everything before checking.
type Builder struct {
	resources handle.Arena[*ResourceDecl]
	passes    handle.Arena[*PassDecl]

	resourceOrder []ResourceHandle
	passOrder     []PassHandle
	aliases       []AliasRequest
	errs          DeclarationErrors
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(name, format string, args ...any) {
	b.errs = append(b.errs, &DeclarationError{Name: name, Reason: fmt.Sprintf(format, args...)})
}

func (b *Builder) addResource(r *ResourceDecl) ResourceHandle {
	if r.Scope == ScopeViewless {
		b.fail(r.Name, "resources cannot be viewless; use shared")
		r.Scope = ScopeShared
	}
	h := ResourceHandle{id: b.resources.Insert(r)}
	r.Handle = h
	b.resourceOrder = append(b.resourceOrder, h)
	return h
}

// CreateTexture declares a graph-owned texture.
func (b *Builder) CreateTexture(name string, desc gpu.TextureDesc, lifetime Lifetime, scope Scope) ResourceHandle {
	return b.addResource(&ResourceDecl{
		Name: name, Kind: gpu.KindTexture, Texture: desc,
		Lifetime: lifetime, Scope: scope, Slot: gpu.InvalidSlot,
	})
}

// CreateBuffer declares a graph-owned buffer.
func (b *Builder) CreateBuffer(name string, desc gpu.BufferDesc, lifetime Lifetime, scope Scope) ResourceHandle {
	return b.addResource(&ResourceDecl{
		Name: name, Kind: gpu.KindBuffer, Buffer: desc,
		Lifetime: lifetime, Scope: scope, Slot: gpu.InvalidSlot,
	})
}

// ImportTexture declares an externally owned texture bound to a fixed slot.
func (b *Builder) ImportTexture(name string, desc gpu.TextureDesc, slot gpu.DescriptorSlot) ResourceHandle {
	return b.addResource(&ResourceDecl{
		Name: name, Kind: gpu.KindTexture, Texture: desc,
		Scope: ScopeShared, Imported: true, Slot: slot,
	})
}

// ImportBuffer declares an externally owned buffer bound to a fixed slot.
func (b *Builder) ImportBuffer(name string, desc gpu.BufferDesc, slot gpu.DescriptorSlot) ResourceHandle {
	return b.addResource(&ResourceDecl{
		Name: name, Kind: gpu.KindBuffer, Buffer: desc,
		Scope: ScopeShared, Imported: true, Slot: slot,
	})
}

// ImportBackBuffer declares the per-view swapchain image. Each view's
// instance is resolved through the Surface using the view's Target.
func (b *Builder) ImportBackBuffer(name string) ResourceHandle {
	return b.addResource(&ResourceDecl{
		Name: name, Kind: gpu.KindTexture,
		Texture: gpu.TextureDesc{
			Dimension: gputypes.TextureDimension2D,
			Format:    gputypes.TextureFormatBGRA8Unorm,
			Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst,
			MipLevels: 1, SampleCount: 1,
		},
		Scope: ScopePerView, Imported: true, BackBuffer: true, Slot: gpu.InvalidSlot,
	})
}

// RequestAlias asks the memory planner to place a and b in the same memory.
// The request is checked by the validator when aliasing is enabled.
func (b *Builder) RequestAlias(first, second ResourceHandle) {
	if !b.resources.Contains(first.id) || !b.resources.Contains(second.id) {
		b.fail("", "alias request references an unknown resource")
		return
	}
	b.aliases = append(b.aliases, AliasRequest{A: first, B: second})
}

func (b *Builder) addPass(name string, kind PassKind) *PassBuilder {
	p := &PassDecl{Name: name, Kind: kind, Scope: ScopeShared, Queue: gpu.QueueGraphics, Order: len(b.passOrder)}
	h := PassHandle{id: b.passes.Insert(p)}
	p.Handle = h
	b.passOrder = append(b.passOrder, h)
	return &PassBuilder{b: b, decl: p}
}

// AddRasterPass declares a pass that draws into render targets.
func (b *Builder) AddRasterPass(name string) *PassBuilder { return b.addPass(name, KindRaster) }

// AddComputePass declares a dispatch-only pass.
func (b *Builder) AddComputePass(name string) *PassBuilder { return b.addPass(name, KindCompute) }

// AddCopyPass declares a transfer-only pass.
func (b *Builder) AddCopyPass(name string) *PassBuilder { return b.addPass(name, KindCopy) }

// Resource returns the declaration behind h.
func (b *Builder) Resource(h ResourceHandle) (*ResourceDecl, bool) {
	return b.resources.Get(h.id)
}

// Pass returns the declaration behind h.
func (b *Builder) Pass(h PassHandle) (*PassDecl, bool) {
	return b.passes.Get(h.id)
}

// Resources returns every resource declaration in declaration order.
func (b *Builder) Resources() []*ResourceDecl {
	out := make([]*ResourceDecl, 0, len(b.resourceOrder))
	for _, h := range b.resourceOrder {
		r, _ := b.resources.Get(h.id)
		out = append(out, r)
	}
	return out
}

// Passes returns every pass declaration in declaration order.
func (b *Builder) Passes() []*PassDecl {
	out := make([]*PassDecl, 0, len(b.passOrder))
	for _, h := range b.passOrder {
		p, _ := b.passes.Get(h.id)
		out = append(out, p)
	}
	return out
}

// AliasRequests returns the recorded alias requests.
func (b *Builder) AliasRequests() []AliasRequest {
	return append([]AliasRequest(nil), b.aliases...)
}

// Err returns the declaration errors recorded so far, or nil.
func (b *Builder) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs
}

// PassBuilder configures a single pass. Every method returns the receiver
// so declarations can be chained.
type PassBuilder struct {
	b    *Builder
	decl *PassDecl
}

// Handle returns the pass handle.
func (pb *PassBuilder) Handle() PassHandle { return pb.decl.Handle }

func (pb *PassBuilder) fail(format string, args ...any) {
	pb.b.errs = append(pb.b.errs, &DeclarationError{
		Pass: pb.decl.Handle, Name: pb.decl.Name, Reason: fmt.Sprintf(format, args...),
	})
}

// SetScope sets how the pass relates to views. Defaults to ScopeShared.
func (pb *PassBuilder) SetScope(s Scope) *PassBuilder {
	pb.decl.Scope = s
	return pb
}

// SetQueue pins the pass to a hardware queue. Defaults to graphics.
func (pb *PassBuilder) SetQueue(q gpu.QueueType) *PassBuilder {
	pb.decl.Queue = q
	return pb
}

// SetEstimatedCost sets the declared cost used until measurements exist.
func (pb *PassBuilder) SetEstimatedCost(c Cost) *PassBuilder {
	pb.decl.Cost = c
	return pb
}

// SetPriority raises the pass in scheduling tie-breaks.
func (pb *PassBuilder) SetPriority(p int) *PassBuilder {
	pb.decl.Priority = p
	return pb
}

func (pb *PassBuilder) access(list *[]Access, verb string, r ResourceHandle, state gpu.ResourceState) *PassBuilder {
	if !pb.b.resources.Contains(r.id) {
		pb.fail("%s of unknown or stale resource %s", verb, r)
		return pb
	}
	*list = append(*list, Access{Resource: r, State: state})
	return pb
}

// Read declares that the pass reads r in the given state.
func (pb *PassBuilder) Read(r ResourceHandle, state gpu.ResourceState) *PassBuilder {
	return pb.access(&pb.decl.Reads, "read", r, state)
}

// Write declares that the pass writes r in the given state.
func (pb *PassBuilder) Write(r ResourceHandle, state gpu.ResourceState) *PassBuilder {
	return pb.access(&pb.decl.Writes, "write", r, state)
}

// DependsOn orders the pass after other regardless of resource usage.
func (pb *PassBuilder) DependsOn(other PassHandle) *PassBuilder {
	if !pb.b.passes.Contains(other.id) {
		pb.fail("dependency on unknown or stale pass %s", other)
		return pb
	}
	if other == pb.decl.Handle {
		pb.fail("pass cannot depend on itself")
		return pb
	}
	pb.decl.Deps = append(pb.decl.Deps, other)
	return pb
}

// SetExecutor sets the command recording callback.
func (pb *PassBuilder) SetExecutor(fn Executor) *PassBuilder {
	pb.decl.Executor = fn
	return pb
}

func (pb *PassBuilder) selectViews(mode ViewMode) bool {
	cur := pb.decl.Views.Mode
	if cur != ViewsUnset && cur != mode {
		pb.fail("IterateAllViews cannot be combined with RestrictToView")
		return false
	}
	pb.decl.Views.Mode = mode
	return true
}

// IterateAllViews instantiates a per-view pass once for every active view.
func (pb *PassBuilder) IterateAllViews() *PassBuilder {
	pb.selectViews(ViewsAll)
	return pb
}

// RestrictToView instantiates a per-view pass for the view at index.
// Calls accumulate.
func (pb *PassBuilder) RestrictToView(index int) *PassBuilder {
	if index < 0 {
		pb.fail("negative view index %d", index)
		return pb
	}
	if pb.selectViews(ViewsExplicit) {
		pb.decl.Views.Indices = append(pb.decl.Views.Indices, index)
	}
	return pb
}

// RestrictToViews instantiates a per-view pass for every view accepted by
// filter.
func (pb *PassBuilder) RestrictToViews(filter func(index int, view *ViewInfo) bool) *PassBuilder {
	if filter == nil {
		pb.fail("nil view filter")
		return pb
	}
	if pb.selectViews(ViewsExplicit) {
		pb.decl.Views.Filter = filter
	}
	return pb
}

// checkPass runs the declaration checks that need the complete pass.
func checkPass(p *PassDecl) []*DeclarationError {
	var errs []*DeclarationError
	fail := func(format string, args ...any) {
		errs = append(errs, &DeclarationError{Pass: p.Handle, Name: p.Name, Reason: fmt.Sprintf(format, args...)})
	}
	switch {
	case p.Scope == ScopePerView && p.Views.Mode == ViewsUnset:
		fail("per-view pass must call IterateAllViews or RestrictToView")
	case p.Scope != ScopePerView && p.Views.Mode != ViewsUnset:
		fail("view selection on a %s pass", p.Scope)
	}
	switch {
	case p.Kind == KindRaster && p.Queue != gpu.QueueGraphics:
		fail("raster pass cannot run on the %s queue", p.Queue)
	case p.Kind == KindCompute && p.Queue == gpu.QueueCopy:
		fail("compute pass cannot run on the copy queue")
	}
	if p.Executor == nil {
		fail("pass has no executor")
	}
	return errs
}
