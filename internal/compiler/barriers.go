package compiler

import (
	"cmp"
	"slices"

	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

func initialState(d *graph.ResourceDecl) gpu.ResourceState {
	switch {
	case d.BackBuffer:
		return gpu.StatePresent
	case d.Imported:
		return gpu.StateCommon
	default:
		return gpu.StateUndefined
	}
}

// planBarriers walks the schedule order, tracking each resource
// instance's state, and records the transitions every pass instance needs.
func (p *Plan) planBarriers(explicitPresent bool) {
	g := p.Graph
	order := p.Schedule.Order
	orderPos := make([]int, len(g.Instances()))
	for i, id := range order {
		orderPos[id] = i
	}
	p.Passes = make([]PassPlan, len(g.Instances()))

	p.planAliasBarriers(orderPos)

	state := make([]gpu.ResourceState, len(g.ResourceInstances()))
	last := make([]graph.InstanceID, len(state))
	for _, ri := range g.ResourceInstances() {
		state[ri.ID] = initialState(ri.Decl)
		last[ri.ID] = -1
	}

	for _, id := range order {
		inst := g.Instance(id)
		pp := &p.Passes[id]
		for _, list := range [][]graph.BoundAccess{inst.Reads, inst.Writes} {
			for _, a := range list {
				for _, ri := range a.Instances {
					last[ri] = id
					if state[ri] == a.State {
						continue
					}
					pp.Before = append(pp.Before, Transition{Resource: ri, Before: state[ri], After: a.State})
					state[ri] = a.State
				}
			}
		}
	}

	for _, ri := range g.ResourceInstances() {
		lastUser := last[ri.ID]
		if lastUser < 0 || !ri.Decl.Imported {
			continue
		}
		want := gpu.StateCommon
		if ri.Decl.BackBuffer {
			if len(ri.Writers) == 0 {
				continue
			}
			p.Presents = append(p.Presents, ri.ID)
			if !explicitPresent {
				continue
			}
			want = gpu.StatePresent
		}
		if state[ri.ID] != want {
			pp := &p.Passes[lastUser]
			pp.After = append(pp.After, Transition{Resource: ri.ID, Before: state[ri.ID], After: want})
		}
	}
}

// planAliasBarriers adds an aliasing barrier in front of the first user of
// every page member that takes over from an earlier one. When the previous
// member was last used on another queue, the new user's queue also waits
// for it.
func (p *Plan) planAliasBarriers(orderPos []int) {
	g := p.Graph
	sched := p.Schedule
	pos := p.positions()
	for _, page := range p.Memory.Pages {
		if len(page.Members) < 2 {
			continue
		}
		members := slices.Clone(page.Members)
		slices.SortFunc(members, func(a, b graph.ResourceInstanceID) int {
			if c := cmp.Compare(p.Memory.Lifetimes[a].Start, p.Memory.Lifetimes[b].Start); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		for i := 1; i < len(members); i++ {
			prev, cur := members[i-1], members[i]
			first := firstUser(g.ResourceInstance(cur), orderPos)
			if first < 0 {
				continue
			}
			p.Passes[first].AliasBarriers = append(p.Passes[first].AliasBarriers, AliasBarrier{Before: prev, After: cur})

			prevLT := p.Memory.Lifetimes[prev]
			for _, u := range usersAt(g.ResourceInstance(prev), pos, prevLT.LastAccess) {
				if sched.Queue[u] == sched.Queue[first] {
					continue
				}
				p.Waits = append(p.Waits, Wait{Batch: sched.BatchOf[first], Dest: sched.Queue[first], Fence: sched.Fence(u)})
			}
		}
	}
}

func firstUser(ri *graph.ResourceInstance, orderPos []int) graph.InstanceID {
	best := graph.InstanceID(-1)
	for _, list := range [][]graph.InstanceID{ri.Writers, ri.Readers} {
		for _, id := range list {
			if best < 0 || orderPos[id] < orderPos[best] {
				best = id
			}
		}
	}
	return best
}
