package alias

import (
	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

// Interval is an inclusive range of positions in the execution order.
type Interval struct {
	Start, End int
}

// Overlaps reports whether the two intervals share any position.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start <= o.End && o.Start <= i.End
}

// Lifetime is the computed interval of one resource instance.
type Lifetime struct {
	Resource graph.ResourceInstanceID
	Interval
	// FirstWrite is the position of the first writer, or -1 if none.
	FirstWrite int
	// LastUse is the instance that touches the resource last.
	LastUse graph.InstanceID
	// LastAccess is the position of LastUse. End can lie beyond it for
	// frame-local resources, which hold their memory for the whole frame.
	LastAccess int
}

// Positions maps every instance to its index in order.
func Positions(g *graph.RenderGraph, order []graph.InstanceID) []int {
	pos := make([]int, len(g.Instances()))
	for i := range pos {
		pos[i] = -1
	}
	for i, id := range order {
		pos[id] = i
	}
	return pos
}

// Lifetimes computes the lifetime of every graph-owned resource instance
// that is accessed at least once. Imported resources are skipped.
func Lifetimes(g *graph.RenderGraph, order []graph.InstanceID) map[graph.ResourceInstanceID]Lifetime {
	return LifetimesAt(g, Positions(g, order), len(order))
}

// LifetimesAt is Lifetimes over explicit positions. Several instances may
// share a position; span is one past the highest position.
func LifetimesAt(g *graph.RenderGraph, pos []int, span int) map[graph.ResourceInstanceID]Lifetime {
	out := make(map[graph.ResourceInstanceID]Lifetime)
	for _, ri := range g.ResourceInstances() {
		if ri.Decl.Imported {
			continue
		}
		lt, ok := lifetimeOf(ri, pos)
		if !ok {
			continue
		}
		lt.LastAccess = lt.End
		if ri.Decl.Lifetime == graph.LifetimeFrameLocal {
			lt.Start, lt.End = 0, max(span-1, 0)
		}
		out[ri.ID] = lt
	}
	return out
}

func lifetimeOf(ri *graph.ResourceInstance, pos []int) (Lifetime, bool) {
	lt := Lifetime{Resource: ri.ID, Interval: Interval{Start: -1, End: -1}, FirstWrite: -1, LastUse: -1}
	visit := func(id graph.InstanceID, write bool) {
		p := pos[id]
		if p < 0 {
			return
		}
		if lt.Start < 0 || p < lt.Start {
			lt.Start = p
		}
		if p > lt.End {
			lt.End = p
			lt.LastUse = id
		}
		if write && (lt.FirstWrite < 0 || p < lt.FirstWrite) {
			lt.FirstWrite = p
		}
	}
	for _, w := range ri.Writers {
		visit(w, true)
	}
	for _, r := range ri.Readers {
		visit(r, false)
	}
	return lt, lt.Start >= 0
}

// FormatClass groups texture formats whose memory can be reinterpreted.
type FormatClass uint8

const (
	ClassBuffer FormatClass = iota
	ClassColor8
	ClassColor32
	ClassDepth
)

// FormatClassOf returns the aliasing class of a texture format.
func FormatClassOf(format gputypes.TextureFormat) FormatClass {
	if gpu.IsDepthFormat(format) {
		return ClassDepth
	}
	if gpu.BytesPerTexel(format) == 1 {
		return ClassColor8
	}
	return ClassColor32
}

// Class is the pool a resource may be packed into.
type Class struct {
	Heap   gpu.HeapType
	Format FormatClass
	Usage  uint64
}

// ClassOf returns the pool class of a resource declaration.
func ClassOf(r *graph.ResourceDecl) Class {
	if r.Kind == gpu.KindBuffer {
		return Class{Heap: gpu.HeapBuffers, Format: ClassBuffer, Usage: uint64(r.Buffer.Usage)}
	}
	return Class{Heap: r.Heap(), Format: FormatClassOf(r.Texture.Format), Usage: uint64(r.Texture.Usage)}
}

// Compatible reports whether two resources may share memory at all.
func Compatible(a, b *graph.ResourceDecl) bool {
	return ClassOf(a) == ClassOf(b)
}

// ScopeHazard reports whether a and b violate the shared/per-view rule.
// It only applies to a shared resource paired with a per-view one: the
// pair is hazardous when a per-view pass reads the per-view resource at or
// after the shared resource is first written.
func ScopeHazard(g *graph.RenderGraph, pos []int, a, b *graph.ResourceInstance, lifetimes map[graph.ResourceInstanceID]Lifetime) bool {
	shared, perView := a, b
	if shared.Decl.Scope == graph.ScopePerView {
		shared, perView = b, a
	}
	if shared.Decl.Scope != graph.ScopeShared || perView.Decl.Scope != graph.ScopePerView {
		return false
	}
	lt, ok := lifetimes[shared.ID]
	if !ok {
		return false
	}
	from := lt.FirstWrite
	if from < 0 {
		from = lt.Start
	}
	for _, r := range perView.Readers {
		if g.Instance(r).Decl.Scope == graph.ScopePerView && pos[r] >= from {
			return true
		}
	}
	return false
}
