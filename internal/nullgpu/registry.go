package nullgpu

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// ErrOutOfMemory is returned when a heap's capacity would be exceeded.
var ErrOutOfMemory = errors.New("out of device memory")

// Block is an allocated memory block.
type Block struct {
	Heap gpu.HeapType
	Size uint64
}

// Binding is a registered descriptor.
type Binding struct {
	Name   string
	Kind   gpu.ResourceKind
	Memory gpu.MemoryID
}

// Registry is an in-memory descriptor registry. Slots are handed out
// monotonically and never reused, which makes stale bindings easy to spot.
type Registry struct {
	// Capacity bounds each heap in bytes; zero is unbounded.
	Capacity map[gpu.HeapType]uint64

	mu       sync.Mutex
	nextSlot gpu.DescriptorSlot
	nextMem  gpu.MemoryID
	memory   map[gpu.MemoryID]Block
	slots    map[gpu.DescriptorSlot]Binding
	used     map[gpu.HeapType]uint64
	peak     uint64
}

var _ gpu.DescriptorRegistry = (*Registry)(nil)

// NewRegistry returns an empty registry. Slot numbering starts at first so
// callers can reserve lower slots for imported resources.
func NewRegistry(first gpu.DescriptorSlot) *Registry {
	return &Registry{
		nextSlot: first,
		nextMem:  1,
		memory:   make(map[gpu.MemoryID]Block),
		slots:    make(map[gpu.DescriptorSlot]Binding),
		used:     make(map[gpu.HeapType]uint64),
	}
}

// AllocateMemory implements gpu.DescriptorRegistry.
func (r *Registry) AllocateMemory(heap gpu.HeapType, size uint64) (gpu.MemoryID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit := r.Capacity[heap]; limit > 0 && r.used[heap]+size > limit {
		return 0, errors.Wrapf(ErrOutOfMemory, "%s heap: %d + %d > %d", heap, r.used[heap], size, limit)
	}
	id := r.nextMem
	r.nextMem++
	r.memory[id] = Block{Heap: heap, Size: size}
	r.used[heap] += size
	r.peak = max(r.peak, r.totalLocked())
	return id, nil
}

func (r *Registry) register(name string, kind gpu.ResourceKind, mem gpu.MemoryID) (gpu.DescriptorSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memory[mem]; !ok {
		return gpu.InvalidSlot, errors.Newf("register %q: unknown memory %d", name, mem)
	}
	slot := r.nextSlot
	r.nextSlot++
	r.slots[slot] = Binding{Name: name, Kind: kind, Memory: mem}
	return slot, nil
}

// RegisterTexture implements gpu.DescriptorRegistry.
func (r *Registry) RegisterTexture(name string, _ gpu.TextureDesc, mem gpu.MemoryID) (gpu.DescriptorSlot, error) {
	return r.register(name, gpu.KindTexture, mem)
}

// RegisterBuffer implements gpu.DescriptorRegistry.
func (r *Registry) RegisterBuffer(name string, _ gpu.BufferDesc, mem gpu.MemoryID) (gpu.DescriptorSlot, error) {
	return r.register(name, gpu.KindBuffer, mem)
}

// ReleaseSlot implements gpu.DescriptorRegistry.
func (r *Registry) ReleaseSlot(slot gpu.DescriptorSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, slot)
}

// ReleaseMemory implements gpu.DescriptorRegistry.
func (r *Registry) ReleaseMemory(mem gpu.MemoryID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.memory[mem]; ok {
		r.used[b.Heap] -= b.Size
		delete(r.memory, mem)
	}
}

// Binding returns the registration behind slot.
func (r *Registry) Binding(slot gpu.DescriptorSlot) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.slots[slot]
	return b, ok
}

// LiveSlots returns how many slots are registered.
func (r *Registry) LiveSlots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// LiveMemory returns how many memory blocks are allocated.
func (r *Registry) LiveMemory() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memory)
}

// AllocatedBytes returns the bytes currently allocated across heaps.
func (r *Registry) AllocatedBytes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalLocked()
}

// PeakBytes returns the high-water mark of AllocatedBytes.
func (r *Registry) PeakBytes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

func (r *Registry) totalLocked() uint64 {
	var total uint64
	for _, u := range r.used {
		total += u
	}
	return total
}
