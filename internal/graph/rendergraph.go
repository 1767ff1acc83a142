package graph

import (
	"fmt"
	"math/bits"
	"slices"
	"sync"

	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// InstanceID indexes a pass instance inside a RenderGraph. IDs follow
// declaration order, then view order.
type InstanceID int

// ResourceInstanceID indexes a resource instance inside a RenderGraph.
type ResourceInstanceID int

// BoundAccess is a declared access resolved to concrete resource
// instances. A shared pass touching a per-view resource is bound to every
// view's instance.
type BoundAccess struct {
	Resource  ResourceHandle
	State     gpu.ResourceState
	Instances []ResourceInstanceID
}

// PassInstance is a pass expanded for a specific view (or for no view).
type PassInstance struct {
	ID   InstanceID
	Decl *PassDecl
	// ViewIndex is the bound view, or -1 for shared and viewless passes.
	ViewIndex  int
	Reads      []BoundAccess
	Writes     []BoundAccess
	Deps       []InstanceID
	Dependents []InstanceID
}

// Pass returns the logical pass this instance was expanded from.
func (p *PassInstance) Pass() PassHandle { return p.Decl.Handle }

// Name returns the pass name, suffixed with the view index for per-view
// instances.
func (p *PassInstance) Name() string {
	if p.ViewIndex < 0 {
		return p.Decl.Name
	}
	return fmt.Sprintf("%s[%d]", p.Decl.Name, p.ViewIndex)
}

// Queue returns the queue the instance is recorded for.
func (p *PassInstance) Queue() gpu.QueueType { return p.Decl.Queue }

// ResourceInstance is a resource expanded for a specific view (or shared).
type ResourceInstance struct {
	ID        ResourceInstanceID
	Decl      *ResourceDecl
	ViewIndex int
	// Writers and Readers list pass instances in instance order. A pass
	// that both reads and writes appears in both.
	Writers []InstanceID
	Readers []InstanceID
}

// Resource returns the logical resource this instance was expanded from.
func (r *ResourceInstance) Resource() ResourceHandle { return r.Decl.Handle }

// Name returns the resource name, suffixed with the view index for
// per-view instances.
func (r *ResourceInstance) Name() string {
	if r.ViewIndex < 0 {
		return r.Decl.Name
	}
	return fmt.Sprintf("%s[%d]", r.Decl.Name, r.ViewIndex)
}

// RenderGraph is an expanded, acyclic graph of pass instances. It is
// immutable once built and safe for concurrent readers.
type RenderGraph struct {
	viewCount int
	passes    []*PassDecl
	resources []*ResourceDecl
	aliases   []AliasRequest

	instances    []*PassInstance
	resInstances []*ResourceInstance
	byPass       map[PassHandle][]InstanceID
	byResource   map[ResourceHandle][]ResourceInstanceID
	passDecl     map[PassHandle]*PassDecl
	resourceDecl map[ResourceHandle]*ResourceDecl

	order []InstanceID
	edges int

	reachOnce sync.Once
	reach     [][]uint64
}

// ViewCount returns the number of views the graph was expanded for.
func (g *RenderGraph) ViewCount() int { return g.viewCount }

// Passes returns the logical pass declarations in declaration order.
func (g *RenderGraph) Passes() []*PassDecl { return g.passes }

// Resources returns the logical resource declarations in declaration order.
func (g *RenderGraph) Resources() []*ResourceDecl { return g.resources }

// AliasRequests returns the explicit alias requests of the graph.
func (g *RenderGraph) AliasRequests() []AliasRequest { return g.aliases }

// Pass looks up a logical pass.
func (g *RenderGraph) Pass(h PassHandle) (*PassDecl, bool) {
	p, ok := g.passDecl[h]
	return p, ok
}

// Resource looks up a logical resource.
func (g *RenderGraph) Resource(h ResourceHandle) (*ResourceDecl, bool) {
	r, ok := g.resourceDecl[h]
	return r, ok
}

// Instances returns every pass instance ordered by InstanceID.
func (g *RenderGraph) Instances() []*PassInstance { return g.instances }

// Instance returns the pass instance with the given ID.
func (g *RenderGraph) Instance(id InstanceID) *PassInstance { return g.instances[id] }

// InstancesOf returns the instances expanded from a logical pass.
func (g *RenderGraph) InstancesOf(h PassHandle) []InstanceID { return g.byPass[h] }

// ResourceInstances returns every resource instance ordered by ID.
func (g *RenderGraph) ResourceInstances() []*ResourceInstance { return g.resInstances }

// ResourceInstance returns the resource instance with the given ID.
func (g *RenderGraph) ResourceInstance(id ResourceInstanceID) *ResourceInstance {
	return g.resInstances[id]
}

// ResourceInstancesOf returns the instances expanded from a logical resource.
func (g *RenderGraph) ResourceInstancesOf(h ResourceHandle) []ResourceInstanceID {
	return g.byResource[h]
}

// EdgeCount returns the number of distinct dependency edges.
func (g *RenderGraph) EdgeCount() int { return g.edges }

// TopologicalOrder returns a dependency-respecting order of all instances.
// Among ready instances the lowest InstanceID comes first, so the order is
// deterministic.
func (g *RenderGraph) TopologicalOrder() []InstanceID {
	return slices.Clone(g.order)
}

// Reachable reports whether to transitively depends on from.
func (g *RenderGraph) Reachable(from, to InstanceID) bool {
	g.reachOnce.Do(g.computeReach)
	row := g.reach[from]
	return row[int(to)/64]&(1<<(uint(to)%64)) != 0
}

// Ordered reports whether a and b are ordered by some dependency path.
func (g *RenderGraph) Ordered(a, b InstanceID) bool {
	return a == b || g.Reachable(a, b) || g.Reachable(b, a)
}

func (g *RenderGraph) computeReach() {
	n := len(g.instances)
	words := (n + 63) / 64
	g.reach = make([][]uint64, n)
	for i := len(g.order) - 1; i >= 0; i-- {
		id := g.order[i]
		row := make([]uint64, words)
		for _, d := range g.instances[id].Dependents {
			row[int(d)/64] |= 1 << (uint(d) % 64)
			for w, bitsOf := range g.reach[d] {
				row[w] |= bitsOf
			}
		}
		g.reach[id] = row
	}
}

// DescendantCount returns how many instances transitively depend on id.
func (g *RenderGraph) DescendantCount(id InstanceID) int {
	g.reachOnce.Do(g.computeReach)
	n := 0
	for _, w := range g.reach[id] {
		n += bits.OnesCount64(w)
	}
	return n
}

// topologicalSort runs Kahn's algorithm with a min-ordered ready set. It
// returns false when not every instance could be ordered.
func (g *RenderGraph) topologicalSort() ([]InstanceID, bool) {
	indeg := make([]int, len(g.instances))
	var ready []InstanceID
	for _, inst := range g.instances {
		indeg[inst.ID] = len(inst.Deps)
		if indeg[inst.ID] == 0 {
			ready = append(ready, inst.ID)
		}
	}
	order := make([]InstanceID, 0, len(g.instances))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, d := range g.instances[id].Dependents {
			indeg[d]--
			if indeg[d] == 0 {
				pos, _ := slices.BinarySearch(ready, d)
				ready = slices.Insert(ready, pos, d)
			}
		}
	}
	return order, len(order) == len(g.instances)
}
