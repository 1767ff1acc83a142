package gpu

import "fmt"

// QueueType identifies a hardware queue family.
type QueueType uint8

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueCopy
)

// QueueCount is the number of distinct queue types.
const QueueCount = 3

// AllQueues lists every queue type in submission preference order.
var AllQueues = [QueueCount]QueueType{QueueGraphics, QueueCompute, QueueCopy}

func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueCopy:
		return "copy"
	default:
		return fmt.Sprintf("queue(%d)", uint8(q))
	}
}

// ParseQueueType converts a configuration string into a QueueType.
func ParseQueueType(s string) (QueueType, error) {
	switch s {
	case "", "graphics":
		return QueueGraphics, nil
	case "compute":
		return QueueCompute, nil
	case "copy":
		return QueueCopy, nil
	}
	return 0, fmt.Errorf("unknown queue type %q", s)
}

// ResourceState is the GPU usage state a pass requires a resource to be in.
type ResourceState uint8

const (
	StateUndefined ResourceState = iota
	StateCommon
	StateRenderTarget
	StateDepthWrite
	StateDepthRead
	StateShaderResource
	StateUnorderedAccess
	StateCopySource
	StateCopyDest
	StateIndirectArgument
	StatePresent
)

var stateNames = map[ResourceState]string{
	StateUndefined:        "undefined",
	StateCommon:           "common",
	StateRenderTarget:     "render_target",
	StateDepthWrite:       "depth_write",
	StateDepthRead:        "depth_read",
	StateShaderResource:   "shader_resource",
	StateUnorderedAccess:  "unordered_access",
	StateCopySource:       "copy_source",
	StateCopyDest:         "copy_dest",
	StateIndirectArgument: "indirect_argument",
	StatePresent:          "present",
}

func (s ResourceState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// IsWrite reports whether the state implies the GPU writes the resource.
func (s ResourceState) IsWrite() bool {
	switch s {
	case StateRenderTarget, StateDepthWrite, StateUnorderedAccess, StateCopyDest:
		return true
	}
	return false
}

// ParseResourceState converts a configuration string into a ResourceState.
func ParseResourceState(s string) (ResourceState, error) {
	for state, name := range stateNames {
		if name == s {
			return state, nil
		}
	}
	return StateUndefined, fmt.Errorf("unknown resource state %q", s)
}

// ResourceKind distinguishes textures from buffers.
type ResourceKind uint8

const (
	KindTexture ResourceKind = iota
	KindBuffer
)

func (k ResourceKind) String() string {
	if k == KindBuffer {
		return "buffer"
	}
	return "texture"
}

// HeapType is the memory heap a resource is placed in. Aliasing is only
// possible within the same heap type.
type HeapType uint8

const (
	// HeapRenderTargets holds render-target and depth-stencil textures.
	HeapRenderTargets HeapType = iota
	// HeapTextures holds textures that are never bound as attachments.
	HeapTextures
	// HeapBuffers holds buffers.
	HeapBuffers
)

func (h HeapType) String() string {
	switch h {
	case HeapRenderTargets:
		return "rt_ds"
	case HeapTextures:
		return "textures"
	default:
		return "buffers"
	}
}

// DescriptorSlot is a bindless descriptor index assigned by the registry.
type DescriptorSlot uint32

// InvalidSlot marks an unbound descriptor.
const InvalidSlot DescriptorSlot = ^DescriptorSlot(0)

// MemoryID identifies a block of physical GPU memory.
type MemoryID uint64

// Fence is a point on a queue's timeline.
type Fence struct {
	Queue QueueType
	Value uint64
}

func (f Fence) String() string {
	return fmt.Sprintf("%s@%d", f.Queue, f.Value)
}
