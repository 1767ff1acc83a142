package alias

import (
	"context"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

// Strategy records which rung of the memory-budget ladder produced a plan.
type Strategy uint8

const (
	// StrategySeparate gives every resource its own page.
	StrategySeparate Strategy = iota
	// StrategyFull aliases every transient resource.
	StrategyFull
	// StrategyOffCriticalPath aliases transient resources that are not
	// touched by the critical path.
	StrategyOffCriticalPath
)

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "full"
	case StrategyOffCriticalPath:
		return "off_critical_path"
	default:
		return "separate"
	}
}

// Options configures Optimize.
type Options struct {
	Enabled bool
	// MemoryBudget in bytes; zero means unlimited.
	MemoryBudget uint64
	// CriticalPath is the scheduler's critical path.
	CriticalPath []graph.InstanceID
	// Positions overrides the order-derived position of each instance,
	// indexed by InstanceID. Instances that may run concurrently (the same
	// scheduler batch) should share a position so their resources are
	// never aliased with each other.
	Positions []int
}

// Plan is the memory layout chosen for a graph.
type Plan struct {
	*Packing
	Lifetimes  map[graph.ResourceInstanceID]Lifetime
	Strategy   Strategy
	OverBudget bool
}

// LastUsers returns the instances that last touch any member of page.
func (p *Plan) LastUsers(page *Page) []graph.InstanceID {
	var out []graph.InstanceID
	for _, m := range page.Members {
		if lt, ok := p.Lifetimes[m]; ok && lt.LastUse >= 0 {
			out = appendUnique(out, lt.LastUse)
		}
	}
	return out
}

// Optimize lays out the graph's resources for the given execution order.
//
// When the result exceeds the memory budget and aliasing is disabled, the
// transient resources outside the critical path are aliased and the budget
// is re-checked. A plan that is still over budget is accepted with a
// warning.
func Optimize(ctx context.Context, g *graph.RenderGraph, order []graph.InstanceID, opts Options) *Plan {
	logger := ctxlog.FromContext(ctx)

	pos, span := Positions(g, order), len(order)
	if opts.Positions != nil {
		pos, span = opts.Positions, 0
		for _, p := range pos {
			span = max(span, p+1)
		}
	}
	lifetimes := LifetimesAt(g, pos, span)
	hazard := func(a, b graph.ResourceInstanceID) bool {
		return ScopeHazard(g, pos, g.ResourceInstance(a), g.ResourceInstance(b), lifetimes)
	}
	requested := RequestedPairs(g)

	pack := func(aliasable func(ri *graph.ResourceInstance) bool) *Packing {
		cands := make([]Candidate, 0, len(lifetimes))
		for _, ri := range g.ResourceInstances() {
			lt, ok := lifetimes[ri.ID]
			if !ok {
				continue
			}
			cands = append(cands, Candidate{
				Resource:  ri.ID,
				Class:     ClassOf(ri.Decl),
				Size:      ri.Decl.SizeBytes(),
				Interval:  lt.Interval,
				Aliasable: ri.Decl.Lifetime == graph.LifetimeTransient && aliasable(ri),
			})
		}
		return Pack(cands, requested, hazard)
	}

	plan := &Plan{Lifetimes: lifetimes, Strategy: StrategySeparate}
	if opts.Enabled {
		plan.Strategy = StrategyFull
		plan.Packing = pack(func(*graph.ResourceInstance) bool { return true })
	} else {
		plan.Packing = pack(func(*graph.ResourceInstance) bool { return false })
	}

	if opts.MemoryBudget == 0 || plan.AllocatedBytes <= opts.MemoryBudget {
		logPlan(ctx, plan)
		return plan
	}
	logger.Info("resource memory over budget",
		"allocated", plan.AllocatedBytes, "budget", opts.MemoryBudget, "strategy", plan.Strategy)

	if !opts.Enabled {
		critical := criticalResources(g, opts.CriticalPath)
		plan.Packing = pack(func(ri *graph.ResourceInstance) bool { return !critical[ri.ID] })
		plan.Strategy = StrategyOffCriticalPath
		if plan.AllocatedBytes <= opts.MemoryBudget {
			logPlan(ctx, plan)
			return plan
		}
	}

	plan.OverBudget = true
	logger.Warn("accepting resource plan over memory budget",
		"allocated", plan.AllocatedBytes, "budget", opts.MemoryBudget, "strategy", plan.Strategy)
	return plan
}

func logPlan(ctx context.Context, plan *Plan) {
	ctxlog.FromContext(ctx).Debug("resource plan ready",
		"pages", len(plan.Pages),
		"allocated", plan.AllocatedBytes,
		"saved", plan.BytesSaved(),
		"rejected", plan.Rejected,
		"strategy", plan.Strategy,
	)
}

// RequestedPairs expands the graph's alias requests to instance pairs.
// Per-view pairs are matched by view; a shared resource is paired with
// every instance of the other side.
func RequestedPairs(g *graph.RenderGraph) [][2]graph.ResourceInstanceID {
	var out [][2]graph.ResourceInstanceID
	for _, req := range g.AliasRequests() {
		as, bs := g.ResourceInstancesOf(req.A), g.ResourceInstancesOf(req.B)
		for _, a := range as {
			for _, b := range bs {
				va, vb := g.ResourceInstance(a).ViewIndex, g.ResourceInstance(b).ViewIndex
				if va >= 0 && vb >= 0 && va != vb {
					continue
				}
				out = append(out, [2]graph.ResourceInstanceID{a, b})
			}
		}
	}
	return out
}

func criticalResources(g *graph.RenderGraph, path []graph.InstanceID) map[graph.ResourceInstanceID]bool {
	out := make(map[graph.ResourceInstanceID]bool)
	for _, id := range path {
		inst := g.Instance(id)
		for _, list := range [][]graph.BoundAccess{inst.Reads, inst.Writes} {
			for _, a := range list {
				for _, ri := range a.Instances {
					out[ri] = true
				}
			}
		}
	}
	return out
}

func appendUnique(ids []graph.InstanceID, id graph.InstanceID) []graph.InstanceID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
