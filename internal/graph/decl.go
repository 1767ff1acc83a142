package graph

import (
	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// ResourceDecl is the declaration of a logical resource.
type ResourceDecl struct {
	Handle   ResourceHandle
	Name     string
	Kind     gpu.ResourceKind
	Texture  gpu.TextureDesc
	Buffer   gpu.BufferDesc
	Lifetime Lifetime
	Scope    Scope

	// Imported resources are owned outside the graph and are never
	// allocated or aliased. Slot is their fixed descriptor, or
	// gpu.InvalidSlot for back buffers resolved through a Surface.
	Imported   bool
	BackBuffer bool
	Slot       gpu.DescriptorSlot
}

// SizeBytes returns the memory footprint of a single instance.
func (r *ResourceDecl) SizeBytes() uint64 {
	if r.Kind == gpu.KindBuffer {
		return r.Buffer.SizeBytes()
	}
	return r.Texture.SizeBytes()
}

// Heap returns the memory heap the resource is allocated from.
func (r *ResourceDecl) Heap() gpu.HeapType {
	if r.Kind == gpu.KindBuffer {
		return gpu.HeapBuffers
	}
	return r.Texture.Heap()
}

// Access is a single declared read or write of a resource by a pass.
type Access struct {
	Resource ResourceHandle
	State    gpu.ResourceState
}

// Executor records the commands of one pass instance. It must not block on
// GPU completion or on other passes.
type Executor func(tc *TaskExecutionContext) error

// ViewMode is how a per-view pass picks its views.
type ViewMode uint8

const (
	ViewsUnset ViewMode = iota
	ViewsAll
	ViewsExplicit
)

// ViewSelection is the set of views a per-view pass is instantiated for.
type ViewSelection struct {
	Mode    ViewMode
	Indices []int
	Filter  func(index int, view *ViewInfo) bool
}

// Selects reports whether the view at index is selected.
func (s ViewSelection) Selects(index int, view *ViewInfo) bool {
	switch s.Mode {
	case ViewsAll:
		return true
	case ViewsExplicit:
		for _, i := range s.Indices {
			if i == index {
				return true
			}
		}
		return s.Filter != nil && s.Filter(index, view)
	}
	return false
}

// PassDecl is the declaration of a logical pass.
type PassDecl struct {
	Handle   PassHandle
	Name     string
	Kind     PassKind
	Scope    Scope
	Queue    gpu.QueueType
	Cost     Cost
	Priority int
	Reads    []Access
	Writes   []Access
	Deps     []PassHandle
	Executor Executor
	Views    ViewSelection
	// Order is the declaration index of the pass within its Builder.
	Order int
}

func (p *PassDecl) clone() *PassDecl {
	c := *p
	c.Reads = append([]Access(nil), p.Reads...)
	c.Writes = append([]Access(nil), p.Writes...)
	c.Deps = append([]PassHandle(nil), p.Deps...)
	c.Views.Indices = append([]int(nil), p.Views.Indices...)
	return &c
}

// AliasRequest asks for two transient resources to share memory.
type AliasRequest struct {
	A, B ResourceHandle
}
