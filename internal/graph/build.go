package graph

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
)

// Build expands the declarations against frame's views, links
// dependencies, and returns the frozen graph. frame may be nil, which is
// treated as a frame with zero views.
//
// Declaration errors and cycles are fatal. All errors are marked with
// ErrBuild; cycles are additionally marked with ErrCycle and carry a
// *CycleError.
func (b *Builder) Build(ctx context.Context, frame *FrameContext) (*RenderGraph, error) {
	logger := ctxlog.FromContext(ctx)

	errs := slices.Clone(b.errs)
	for _, p := range b.Passes() {
		errs = append(errs, checkPass(p)...)
	}
	if len(errs) > 0 {
		logger.Debug("render graph declarations rejected", "errors", len(errs))
		return nil, errors.Mark(errs, ErrBuild)
	}

	var views []ViewInfo
	if frame != nil {
		views = frame.Views
	}
	g := &RenderGraph{
		viewCount:    len(views),
		aliases:      b.AliasRequests(),
		byPass:       make(map[PassHandle][]InstanceID),
		byResource:   make(map[ResourceHandle][]ResourceInstanceID),
		passDecl:     make(map[PassHandle]*PassDecl),
		resourceDecl: make(map[ResourceHandle]*ResourceDecl),
	}

	for _, r := range b.Resources() {
		decl := *r
		g.resources = append(g.resources, &decl)
		g.resourceDecl[decl.Handle] = &decl
		if decl.Scope == ScopePerView {
			for v := range views {
				g.addResourceInstance(&decl, v)
			}
			continue
		}
		g.addResourceInstance(&decl, -1)
	}

	for _, p := range b.Passes() {
		decl := p.clone()
		g.passes = append(g.passes, decl)
		g.passDecl[decl.Handle] = decl
		if decl.Scope != ScopePerView {
			g.addInstance(decl, -1)
			continue
		}
		for v := range views {
			if decl.Views.Selects(v, &views[v]) {
				g.addInstance(decl, v)
			}
		}
	}

	edges := make(map[[2]InstanceID]struct{})
	g.linkExplicit(edges)
	g.linkResources(edges)
	g.applyEdges(edges)

	if cyc := g.findCycle(); cyc != nil {
		logger.Debug("render graph has a cycle", "passes", cyc.Names)
		return nil, errors.Mark(errors.Mark(cyc, ErrCycle), ErrBuild)
	}
	order, ok := g.topologicalSort()
	if !ok {
		return nil, errors.Mark(errors.New("topological sort did not cover every instance"), ErrBuild)
	}
	g.order = order

	logger.Debug("render graph built",
		"passes", len(g.passes),
		"instances", len(g.instances),
		"resources", len(g.resInstances),
		"edges", g.edges,
		"views", g.viewCount,
	)
	return g, nil
}

func (g *RenderGraph) addResourceInstance(decl *ResourceDecl, view int) {
	id := ResourceInstanceID(len(g.resInstances))
	g.resInstances = append(g.resInstances, &ResourceInstance{ID: id, Decl: decl, ViewIndex: view})
	g.byResource[decl.Handle] = append(g.byResource[decl.Handle], id)
}

func (g *RenderGraph) addInstance(decl *PassDecl, view int) {
	inst := &PassInstance{ID: InstanceID(len(g.instances)), Decl: decl, ViewIndex: view}
	inst.Reads = g.bind(decl.Reads, view)
	inst.Writes = g.bind(decl.Writes, view)
	g.instances = append(g.instances, inst)
	g.byPass[decl.Handle] = append(g.byPass[decl.Handle], inst.ID)

	for _, a := range inst.Writes {
		for _, ri := range a.Instances {
			r := g.resInstances[ri]
			r.Writers = appendUnique(r.Writers, inst.ID)
		}
	}
	for _, a := range inst.Reads {
		for _, ri := range a.Instances {
			r := g.resInstances[ri]
			r.Readers = appendUnique(r.Readers, inst.ID)
		}
	}
}

// bind resolves accesses for an instance bound to view (-1 for none).
func (g *RenderGraph) bind(accesses []Access, view int) []BoundAccess {
	out := make([]BoundAccess, len(accesses))
	for i, a := range accesses {
		ids := g.byResource[a.Resource]
		if g.resourceDecl[a.Resource].Scope == ScopePerView && view >= 0 {
			ids = ids[view : view+1]
		}
		out[i] = BoundAccess{Resource: a.Resource, State: a.State, Instances: slices.Clone(ids)}
	}
	return out
}

// linkExplicit turns DependsOn into edges. Between two per-view passes only
// instances of the same view are linked.
func (g *RenderGraph) linkExplicit(edges map[[2]InstanceID]struct{}) {
	for _, inst := range g.instances {
		for _, dep := range inst.Decl.Deps {
			for _, did := range g.byPass[dep] {
				d := g.instances[did]
				if inst.ViewIndex >= 0 && d.ViewIndex >= 0 && inst.ViewIndex != d.ViewIndex {
					continue
				}
				edges[[2]InstanceID{did, inst.ID}] = struct{}{}
			}
		}
	}
}

// linkResources orders writers of each resource instance by declaration
// and puts every pure reader after the last writer.
func (g *RenderGraph) linkResources(edges map[[2]InstanceID]struct{}) {
	for _, r := range g.resInstances {
		last := InstanceID(-1)
		for _, w := range r.Writers {
			if last >= 0 {
				edges[[2]InstanceID{last, w}] = struct{}{}
			}
			last = w
		}
		if last < 0 {
			continue
		}
		for _, rd := range r.Readers {
			if rd != last && !slices.Contains(r.Writers, rd) {
				edges[[2]InstanceID{last, rd}] = struct{}{}
			}
		}
	}
}

func (g *RenderGraph) applyEdges(edges map[[2]InstanceID]struct{}) {
	for e := range edges {
		from, to := g.instances[e[0]], g.instances[e[1]]
		from.Dependents = append(from.Dependents, to.ID)
		to.Deps = append(to.Deps, from.ID)
	}
	for _, inst := range g.instances {
		slices.Sort(inst.Deps)
		slices.Sort(inst.Dependents)
	}
	g.edges = len(edges)
}

func appendUnique(ids []InstanceID, id InstanceID) []InstanceID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
