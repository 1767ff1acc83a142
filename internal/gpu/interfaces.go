package gpu

import (
	"context"
	"time"
)

// CommandRecorder issues draw/dispatch/copy/barrier commands for one pass
// instance. It is owned by a single recording goroutine.
type CommandRecorder interface {
	// Queue reports the queue the recorded commands will be submitted to.
	Queue() QueueType
	// Barrier transitions a resource between usage states.
	Barrier(slot DescriptorSlot, before, after ResourceState)
	// AliasingBarrier marks that memory previously used by before is now
	// used by after. before may be InvalidSlot when the page was idle.
	AliasingBarrier(before, after DescriptorSlot)
	Draw(vertexCount, instanceCount uint32)
	DrawIndexed(indexCount, instanceCount uint32)
	Dispatch(x, y, z uint32)
	Copy(dst, src DescriptorSlot)
	Clear(slot DescriptorSlot, value [4]float32)
	BeginMarker(label string)
	EndMarker()
	// Close finishes recording and returns the immutable command list.
	Close() (CommandList, error)
}

// CommandList is an opaque, closed list of recorded commands.
type CommandList interface {
	Queue() QueueType
	DebugName() string
}

// Submission is a batch of command lists for one queue. The queue waits
// for every fence in Waits before executing the lists and signals Signal
// once they complete.
type Submission struct {
	Queue  QueueType
	Lists  []CommandList
	Waits  []Fence
	Signal Fence
}

// Device creates recorders and accepts submissions.
type Device interface {
	NewRecorder(queue QueueType, debugName string) (CommandRecorder, error)
	Submit(ctx context.Context, s Submission) error
	// CompletedValue returns the last fence value the queue has finished.
	CompletedValue(queue QueueType) uint64
}

// TimingSource is optionally implemented by devices that can report the
// GPU execution time of a submitted command list.
type TimingSource interface {
	GPUTime(list CommandList) (time.Duration, bool)
}

// DescriptorRegistry allocates physical memory and bindless descriptor
// slots for the resources a compiled plan needs.
type DescriptorRegistry interface {
	AllocateMemory(heap HeapType, size uint64) (MemoryID, error)
	RegisterTexture(name string, desc TextureDesc, mem MemoryID) (DescriptorSlot, error)
	RegisterBuffer(name string, desc BufferDesc, mem MemoryID) (DescriptorSlot, error)
	ReleaseSlot(slot DescriptorSlot)
	ReleaseMemory(mem MemoryID)
}

// Retirement describes physical memory whose last use has been submitted.
// It may only be reused once every fence has completed on the GPU.
type Retirement struct {
	Memory MemoryID
	Slots  []DescriptorSlot
	Frame  uint64
	Fences []Fence
}

// Reclaimer defers the release of retired memory until the consuming
// queues signal completion.
type Reclaimer interface {
	DeferRelease(r Retirement)
}

// Surface supplies per-view back buffers and accepts presentation.
type Surface interface {
	// Acquire returns the descriptor slot of the current back buffer for target.
	Acquire(target string) (DescriptorSlot, error)
	// ExplicitPresentTransition reports whether the backend needs the graph
	// to transition back buffers into StatePresent before presenting.
	ExplicitPresentTransition() bool
	Present(ctx context.Context, target string) error
}
