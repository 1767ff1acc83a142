package compiler

import (
	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

// allocate backs every page with physical memory and registers a
// descriptor for each member. On failure everything allocated so far is
// released.
func (p *Plan) allocate(reg gpu.DescriptorRegistry) error {
	g := p.Graph
	p.Slots = make([]gpu.DescriptorSlot, len(g.ResourceInstances()))
	for _, ri := range g.ResourceInstances() {
		p.Slots[ri.ID] = gpu.InvalidSlot
		if ri.Decl.Imported && !ri.Decl.BackBuffer {
			p.Slots[ri.ID] = ri.Decl.Slot
		}
	}

	for _, page := range p.Memory.Pages {
		mem, err := reg.AllocateMemory(page.Class.Heap, page.Size)
		if err != nil {
			p.release(reg)
			return errors.Mark(errors.Wrapf(err, "allocating page %d (%d bytes in %s)", page.Index, page.Size, page.Class.Heap), ErrAllocation)
		}
		phys := &PhysicalPage{Page: page, Memory: mem}
		p.Pages = append(p.Pages, phys)

		for _, m := range page.Members {
			ri := g.ResourceInstance(m)
			slot, err := register(reg, ri, mem)
			if err != nil {
				p.release(reg)
				return errors.Mark(errors.Wrapf(err, "registering %s", ri.Name()), ErrAllocation)
			}
			phys.Slots = append(phys.Slots, slot)
			p.Slots[m] = slot
		}
	}
	return nil
}

func register(reg gpu.DescriptorRegistry, ri *graph.ResourceInstance, mem gpu.MemoryID) (gpu.DescriptorSlot, error) {
	if ri.Decl.Kind == gpu.KindBuffer {
		return reg.RegisterBuffer(ri.Name(), ri.Decl.Buffer, mem)
	}
	return reg.RegisterTexture(ri.Name(), ri.Decl.Texture, mem)
}

// release frees every page immediately. It is only safe for plans that
// were never submitted.
func (p *Plan) release(reg gpu.DescriptorRegistry) {
	for _, page := range p.Pages {
		for _, s := range page.Slots {
			reg.ReleaseSlot(s)
		}
		reg.ReleaseMemory(page.Memory)
	}
	p.Pages = nil
}
