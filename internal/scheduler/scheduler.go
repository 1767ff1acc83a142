package scheduler

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

// CostSource refines a pass's declared cost estimate.
type CostSource interface {
	GetRefinedCost(passName string, declared graph.Cost) graph.Cost
}

// StaticCosts uses the declared estimates as-is.
type StaticCosts struct{}

// GetRefinedCost implements CostSource.
func (StaticCosts) GetRefinedCost(_ string, declared graph.Cost) graph.Cost { return declared }

// Options configures Schedule.
type Options struct {
	// Threads bounds batch width; zero means unbounded.
	Threads int
	// Costs defaults to StaticCosts.
	Costs CostSource
}

// Batch is a set of instances with no dependency among them.
type Batch struct {
	Index     int
	Instances []graph.InstanceID
}

// SyncPoint makes Dest wait for Fence before running Consumer.
type SyncPoint struct {
	Source gpu.QueueType
	Dest   gpu.QueueType
	// Resource links producer and consumer, or -1 for explicit dependencies.
	Resource graph.ResourceInstanceID
	Fence    gpu.Fence
	Producer graph.InstanceID
	Consumer graph.InstanceID
	Batch    int
}

// Result is the scheduler output. Per-instance slices are indexed by
// graph.InstanceID.
type Result struct {
	Order   []graph.InstanceID
	Batches []Batch
	BatchOf []int
	Queue   []gpu.QueueType
	// Signal is the fence value the instance's queue signals after the
	// instance's batch.
	Signal     []uint64
	Costs      []graph.Cost
	SyncPoints []SyncPoint
	// FenceCount is the last fence value per queue.
	FenceCount [gpu.QueueCount]uint64

	CriticalPath    []graph.InstanceID
	CriticalPathGPU time.Duration
	CPUUtilization  float64
	GPUUtilization  float64
}

// Fence returns the fence the instance's work signals.
func (r *Result) Fence(id graph.InstanceID) gpu.Fence {
	return gpu.Fence{Queue: r.Queue[id], Value: r.Signal[id]}
}

// SyncPointsFor returns the sync points a batch must wait on before dest
// may start it.
func (r *Result) SyncPointsFor(batch int, dest gpu.QueueType) []SyncPoint {
	var out []SyncPoint
	for _, sp := range r.SyncPoints {
		if sp.Batch == batch && sp.Dest == dest {
			out = append(out, sp)
		}
	}
	return out
}

// Schedule computes batches, queues, sync points and the critical path.
func Schedule(ctx context.Context, g *graph.RenderGraph, opts Options) (*Result, error) {
	if opts.Costs == nil {
		opts.Costs = StaticCosts{}
	}
	n := len(g.Instances())
	res := &Result{
		BatchOf: make([]int, n),
		Queue:   make([]gpu.QueueType, n),
		Signal:  make([]uint64, n),
		Costs:   make([]graph.Cost, n),
	}
	for _, inst := range g.Instances() {
		res.Queue[inst.ID] = inst.Queue()
		res.Costs[inst.ID] = opts.Costs.GetRefinedCost(inst.Decl.Name, inst.Decl.Cost)
	}

	if err := res.batch(g, opts.Threads); err != nil {
		return nil, err
	}
	res.syncPoints(g)
	res.criticalPath(g)
	res.utilization(opts.Threads)

	ctxlog.FromContext(ctx).Debug("render graph scheduled",
		"instances", n,
		"batches", len(res.Batches),
		"sync_points", len(res.SyncPoints),
		"critical_path_gpu", res.CriticalPathGPU,
	)
	return res, nil
}

func (r *Result) batch(g *graph.RenderGraph, threads int) error {
	insts := g.Instances()
	remaining := make([]int, len(insts))
	var ready []graph.InstanceID
	for _, inst := range insts {
		remaining[inst.ID] = len(inst.Deps)
		if remaining[inst.ID] == 0 {
			ready = append(ready, inst.ID)
		}
	}

	less := func(a, b graph.InstanceID) int {
		pa, pb := insts[a].Decl.Priority, insts[b].Decl.Priority
		if c := cmp.Compare(pb, pa); c != 0 {
			return c
		}
		if c := cmp.Compare(r.Costs[b].GPU, r.Costs[a].GPU); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}

	for len(ready) > 0 {
		slices.SortFunc(ready, less)
		take := len(ready)
		if threads > 0 {
			take = min(take, threads)
		}
		batch := Batch{Index: len(r.Batches), Instances: slices.Clone(ready[:take])}
		ready = ready[take:]

		var used [gpu.QueueCount]bool
		for _, id := range batch.Instances {
			used[r.Queue[id]] = true
		}
		for q, ok := range used {
			if ok {
				r.FenceCount[q]++
			}
		}
		for _, id := range batch.Instances {
			r.BatchOf[id] = batch.Index
			r.Signal[id] = r.FenceCount[r.Queue[id]]
			r.Order = append(r.Order, id)
		}
		r.Batches = append(r.Batches, batch)

		for _, id := range batch.Instances {
			for _, d := range insts[id].Dependents {
				remaining[d]--
				if remaining[d] == 0 {
					ready = append(ready, d)
				}
			}
		}
	}

	if len(r.Order) != len(insts) {
		return errors.Mark(errors.Newf("scheduled %d of %d pass instances", len(r.Order), len(insts)), graph.ErrCycle)
	}
	return nil
}

func (r *Result) syncPoints(g *graph.RenderGraph) {
	type key struct {
		src, dst gpu.QueueType
		res      graph.ResourceInstanceID
		value    uint64
		batch    int
	}
	seen := make(map[key]bool)
	for _, id := range r.Order {
		inst := g.Instance(id)
		for _, dep := range inst.Deps {
			if r.Queue[dep] == r.Queue[id] {
				continue
			}
			sp := SyncPoint{
				Source:   r.Queue[dep],
				Dest:     r.Queue[id],
				Resource: linkingResource(g, dep, id),
				Fence:    r.Fence(dep),
				Producer: dep,
				Consumer: id,
				Batch:    r.BatchOf[id],
			}
			k := key{sp.Source, sp.Dest, sp.Resource, sp.Fence.Value, sp.Batch}
			if seen[k] {
				continue
			}
			seen[k] = true
			r.SyncPoints = append(r.SyncPoints, sp)
		}
	}
}

// linkingResource returns the first resource instance consumer accesses
// that producer writes, or -1.
func linkingResource(g *graph.RenderGraph, producer, consumer graph.InstanceID) graph.ResourceInstanceID {
	c := g.Instance(consumer)
	for _, list := range [][]graph.BoundAccess{c.Reads, c.Writes} {
		for _, a := range list {
			for _, ri := range a.Instances {
				if slices.Contains(g.ResourceInstance(ri).Writers, producer) {
					return ri
				}
			}
		}
	}
	return -1
}

func (r *Result) criticalPath(g *graph.RenderGraph) {
	n := len(r.Order)
	if n == 0 {
		return
	}
	dist := make([]time.Duration, n)
	prev := make([]graph.InstanceID, n)
	best := graph.InstanceID(-1)
	for _, id := range g.TopologicalOrder() {
		prev[id] = -1
		for _, d := range g.Instance(id).Deps {
			if dist[d] > dist[id] || (dist[d] == dist[id] && prev[id] < 0) {
				dist[id] = dist[d]
				prev[id] = d
			}
		}
		dist[id] += r.Costs[id].GPU
		if best < 0 || dist[id] > dist[best] || (dist[id] == dist[best] && id < best) {
			best = id
		}
	}
	r.CriticalPathGPU = dist[best]
	for id := best; id >= 0; id = prev[id] {
		r.CriticalPath = append(r.CriticalPath, id)
	}
	slices.Reverse(r.CriticalPath)
}

func (r *Result) utilization(threads int) {
	var totalCPU, totalGPU, spanCPU time.Duration
	width := threads
	queues := 0
	for _, c := range r.Costs {
		totalCPU += c.CPU
		totalGPU += c.GPU
	}
	for _, b := range r.Batches {
		var longest time.Duration
		for _, id := range b.Instances {
			longest = max(longest, r.Costs[id].CPU)
		}
		spanCPU += longest
		if threads <= 0 {
			width = max(width, len(b.Instances))
		}
	}
	for _, v := range r.FenceCount {
		if v > 0 {
			queues++
		}
	}
	if spanCPU > 0 && width > 0 {
		r.CPUUtilization = float64(totalCPU) / (float64(spanCPU) * float64(width))
	}
	if r.CriticalPathGPU > 0 && queues > 0 {
		r.GPUUtilization = min(1, float64(totalGPU)/(float64(r.CriticalPathGPU)*float64(queues)))
	}
}
