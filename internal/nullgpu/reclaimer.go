package nullgpu

import (
	"sync"

	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// FenceReader reports GPU-side completion per queue.
type FenceReader interface {
	CompletedValue(queue gpu.QueueType) uint64
}

// Reclaimer holds retired memory until every fence of the retirement has
// completed on the GPU, then releases it through the registry.
type Reclaimer struct {
	fences   FenceReader
	registry gpu.DescriptorRegistry

	mu      sync.Mutex
	pending []gpu.Retirement
}

var _ gpu.Reclaimer = (*Reclaimer)(nil)

// NewReclaimer creates a reclaimer releasing into registry.
func NewReclaimer(fences FenceReader, registry gpu.DescriptorRegistry) *Reclaimer {
	return &Reclaimer{fences: fences, registry: registry}
}

// DeferRelease implements gpu.Reclaimer.
func (r *Reclaimer) DeferRelease(ret gpu.Retirement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ret)
}

// Collect releases every retirement whose fences have completed and
// returns how many were released.
func (r *Reclaimer) Collect() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	kept := r.pending[:0]
	for _, ret := range r.pending {
		if !r.done(ret) {
			kept = append(kept, ret)
			continue
		}
		for _, s := range ret.Slots {
			r.registry.ReleaseSlot(s)
		}
		r.registry.ReleaseMemory(ret.Memory)
		released++
	}
	r.pending = kept
	return released
}

// Pending returns how many retirements are still waiting.
func (r *Reclaimer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Reclaimer) done(ret gpu.Retirement) bool {
	for _, f := range ret.Fences {
		if r.fences.CompletedValue(f.Queue) < f.Value {
			return false
		}
	}
	return true
}
