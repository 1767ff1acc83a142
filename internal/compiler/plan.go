package compiler

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/rendergraph/internal/alias"
	"github.com/specialistvlad/rendergraph/internal/cache"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/scheduler"
	"github.com/specialistvlad/rendergraph/internal/validate"
)

// Transition moves a resource instance between usage states.
type Transition struct {
	Resource graph.ResourceInstanceID
	Before   gpu.ResourceState
	After    gpu.ResourceState
}

// AliasBarrier hands a memory page from one resource to the next.
type AliasBarrier struct {
	Before graph.ResourceInstanceID
	After  graph.ResourceInstanceID
}

// PassPlan lists the barriers recorded around one pass instance.
type PassPlan struct {
	// AliasBarriers and Before are recorded ahead of the executor.
	AliasBarriers []AliasBarrier
	Before        []Transition
	// After is recorded once the executor returns. It restores imported
	// resources and moves back buffers into the present state.
	After []Transition
}

// Wait is an extra cross-queue wait that is not a scheduler dependency.
// Aliasing two resources used on different queues needs one so the later
// queue cannot touch the page while the earlier one still does.
type Wait struct {
	Batch int
	Dest  gpu.QueueType
	Fence gpu.Fence
}

// PhysicalPage is an allocated alias page.
type PhysicalPage struct {
	*alias.Page
	Memory gpu.MemoryID
	Slots  []gpu.DescriptorSlot
}

// Plan is a compiled, executable frame. It is immutable apart from the
// execution bookkeeping updated through MarkExecuted.
type Plan struct {
	ID       uuid.UUID
	Key      cache.PlanKey
	GraphKey cache.GraphKey
	Graph    *graph.RenderGraph
	Schedule *scheduler.Result
	Memory   *alias.Plan
	// Findings are the validator's warnings, plus its errors when the
	// policy is best effort.
	Findings []validate.Error

	// Passes and Slots are indexed by InstanceID and ResourceInstanceID.
	// Back buffers have InvalidSlot and are resolved at execution.
	Passes []PassPlan
	Slots  []gpu.DescriptorSlot
	Waits  []Wait
	Pages  []*PhysicalPage
	// Presents lists the back buffer instances written this frame.
	Presents []graph.ResourceInstanceID

	CompileTime time.Duration

	mu        sync.Mutex
	executed  bool
	lastFrame uint64
	base      [gpu.QueueCount]uint64
	uses      int
}

// Slot returns the physical slot of a resource instance.
func (p *Plan) Slot(id graph.ResourceInstanceID) gpu.DescriptorSlot {
	return p.Slots[id]
}

// WaitsFor returns the fences dest must wait on before running batch,
// reduced to the highest value per source queue. Values are relative to
// the frame's fence base.
func (p *Plan) WaitsFor(batch int, dest gpu.QueueType) []gpu.Fence {
	var highest [gpu.QueueCount]uint64
	for _, sp := range p.Schedule.SyncPointsFor(batch, dest) {
		highest[sp.Fence.Queue] = max(highest[sp.Fence.Queue], sp.Fence.Value)
	}
	for _, w := range p.Waits {
		if w.Batch == batch && w.Dest == dest {
			highest[w.Fence.Queue] = max(highest[w.Fence.Queue], w.Fence.Value)
		}
	}
	var out []gpu.Fence
	for _, q := range gpu.AllQueues {
		if highest[q] > 0 && q != dest {
			out = append(out, gpu.Fence{Queue: q, Value: highest[q]})
		}
	}
	return out
}

// MarkExecuted records that the plan was submitted for frame with the
// given per-queue fence base.
func (p *Plan) MarkExecuted(frame uint64, base [gpu.QueueCount]uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executed = true
	p.lastFrame = frame
	p.base = base
	p.uses++
}

// Uses returns how many frames executed the plan.
func (p *Plan) Uses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uses
}

// Retirements describes the plan's pages for deferred release. Each page
// waits for the last frame's fences of the instances that used it last.
func (p *Plan) Retirements() []gpu.Retirement {
	p.mu.Lock()
	executed, frame, base := p.executed, p.lastFrame, p.base
	p.mu.Unlock()

	pos := p.positions()
	out := make([]gpu.Retirement, 0, len(p.Pages))
	for _, page := range p.Pages {
		ret := gpu.Retirement{Memory: page.Memory, Slots: slices.Clone(page.Slots), Frame: frame}
		if executed {
			var highest [gpu.QueueCount]uint64
			for _, m := range page.Members {
				lt, ok := p.Memory.Lifetimes[m]
				if !ok {
					continue
				}
				for _, id := range usersAt(p.Graph.ResourceInstance(m), pos, lt.LastAccess) {
					f := p.Schedule.Fence(id)
					highest[f.Queue] = max(highest[f.Queue], base[f.Queue]+f.Value)
				}
			}
			for _, q := range gpu.AllQueues {
				if highest[q] > 0 {
					ret.Fences = append(ret.Fences, gpu.Fence{Queue: q, Value: highest[q]})
				}
			}
		}
		out = append(out, ret)
	}
	return out
}

// positions maps instances to their batch, which is the position used for
// lifetimes.
func (p *Plan) positions() []int {
	return p.Schedule.BatchOf
}

// usersAt returns the instances accessing ri at position at.
func usersAt(ri *graph.ResourceInstance, pos []int, at int) []graph.InstanceID {
	var out []graph.InstanceID
	for _, list := range [][]graph.InstanceID{ri.Writers, ri.Readers} {
		for _, id := range list {
			if pos[id] == at && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// footprint estimates the cache weight of the plan: its physical memory
// plus a rough per-instance bookkeeping cost.
func (p *Plan) footprint() uint64 {
	return p.Memory.AllocatedBytes + uint64(len(p.Passes))*256 + uint64(len(p.Slots))*64
}
