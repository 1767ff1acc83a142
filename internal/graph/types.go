package graph

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/specialistvlad/rendergraph/internal/handle"
)

// ResourceHandle identifies a logical GPU resource declared on a Builder.
type ResourceHandle struct {
	id handle.ID
}

// IsValid reports whether the handle was issued by a Builder.
func (h ResourceHandle) IsValid() bool { return h.id.IsValid() }

// ID exposes the underlying arena identifier.
func (h ResourceHandle) ID() handle.ID { return h.id }

func (h ResourceHandle) String() string { return "resource#" + h.id.String() }

// PassHandle identifies a declared pass.
type PassHandle struct {
	id handle.ID
}

// IsValid reports whether the handle was issued by a Builder.
func (h PassHandle) IsValid() bool { return h.id.IsValid() }

// ID exposes the underlying arena identifier.
func (h PassHandle) ID() handle.ID { return h.id }

func (h PassHandle) String() string { return "pass#" + h.id.String() }

// Scope describes how a pass or resource relates to the frame's views.
type Scope uint8

const (
	// ScopeShared is computed once and consumed by every view.
	ScopeShared Scope = iota
	// ScopePerView is duplicated once per active view.
	ScopePerView
	// ScopeViewless is independent of views entirely. Passes only.
	ScopeViewless
)

func (s Scope) String() string {
	switch s {
	case ScopeShared:
		return "shared"
	case ScopePerView:
		return "per_view"
	case ScopeViewless:
		return "viewless"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// ParseScope converts a configuration string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "shared":
		return ScopeShared, nil
	case "per_view":
		return ScopePerView, nil
	case "viewless":
		return ScopeViewless, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

// Lifetime describes how long a resource's contents must survive.
type Lifetime uint8

const (
	// LifetimeFrameLocal resources persist for the whole frame.
	LifetimeFrameLocal Lifetime = iota
	// LifetimeTransient resources are dead after their last read and may
	// share memory with other transient resources.
	LifetimeTransient
)

func (l Lifetime) String() string {
	if l == LifetimeTransient {
		return "transient"
	}
	return "frame_local"
}

// ParseLifetime converts a configuration string into a Lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	switch s {
	case "", "frame_local":
		return LifetimeFrameLocal, nil
	case "transient":
		return LifetimeTransient, nil
	}
	return 0, fmt.Errorf("unknown lifetime %q", s)
}

// PassKind is the closed set of pass variants.
type PassKind uint8

const (
	KindRaster PassKind = iota
	KindCompute
	KindCopy
)

func (k PassKind) String() string {
	switch k {
	case KindRaster:
		return "raster"
	case KindCompute:
		return "compute"
	case KindCopy:
		return "copy"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParsePassKind converts a configuration string into a PassKind.
func ParsePassKind(s string) (PassKind, error) {
	switch s {
	case "", "raster":
		return KindRaster, nil
	case "compute":
		return KindCompute, nil
	case "copy":
		return KindCopy, nil
	}
	return 0, fmt.Errorf("unknown pass kind %q", s)
}

// Cost is an estimated or measured pass cost.
type Cost struct {
	CPU    time.Duration
	GPU    time.Duration
	Memory uint64
}

// Add returns the component-wise sum of two costs.
func (c Cost) Add(o Cost) Cost {
	return Cost{CPU: c.CPU + o.CPU, GPU: c.GPU + o.GPU, Memory: c.Memory + o.Memory}
}

// Viewport is a render target rectangle in pixels.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// DrawItem is one entry of a precomputed draw list.
type DrawItem struct {
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
}

// ViewInfo binds a render target, a camera and a viewport. It is immutable
// for the duration of a frame.
type ViewInfo struct {
	Name       string
	Target     string
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Viewport   Viewport
	// DrawLists holds culled draw lists prepared before recording starts.
	DrawLists map[string][]DrawItem
}

// ViewProjection returns Projection * View.
func (v *ViewInfo) ViewProjection() mgl32.Mat4 {
	return v.Projection.Mul4(v.View)
}

// FrameContext is the per-frame aggregate the graph is built and executed
// against. Views may be empty.
type FrameContext struct {
	FrameIndex uint64
	Scene      any
	Views      []ViewInfo
	// DrawLists holds view-independent draw lists.
	DrawLists map[string][]DrawItem
}

// ViewCount returns the number of active views; a nil frame has none.
func (f *FrameContext) ViewCount() int {
	if f == nil {
		return 0
	}
	return len(f.Views)
}
