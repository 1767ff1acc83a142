package graph

import "slices"

// findCycle returns the shortest cycle among pass instances, or nil if the
// graph is acyclic. Strongly connected components are found with Tarjan's
// algorithm and each non-trivial component is searched breadth-first for
// its shortest cycle.
func (g *RenderGraph) findCycle() *CycleError {
	var best []InstanceID
	for _, comp := range g.stronglyConnected() {
		if len(comp) < 2 {
			continue
		}
		slices.Sort(comp)
		for _, start := range comp {
			path := g.shortestCycleThrough(start, comp)
			if path != nil && (best == nil || len(path) < len(best)) {
				best = path
			}
		}
	}
	if best == nil {
		return nil
	}

	cyc := &CycleError{Instances: best}
	seen := make(map[PassHandle]bool)
	for _, id := range best {
		p := g.instances[id].Decl
		if seen[p.Handle] {
			continue
		}
		seen[p.Handle] = true
		cyc.Passes = append(cyc.Passes, p.Handle)
		cyc.Names = append(cyc.Names, p.Name)
	}
	return cyc
}

func (g *RenderGraph) shortestCycleThrough(start InstanceID, comp []InstanceID) []InstanceID {
	parent := map[InstanceID]InstanceID{start: -1}
	queue := []InstanceID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.instances[cur].Dependents {
			if next == start {
				var path []InstanceID
				for n := cur; n != -1; n = parent[n] {
					path = append(path, n)
				}
				slices.Reverse(path)
				return path
			}
			if _, ok := parent[next]; ok {
				continue
			}
			if _, in := slices.BinarySearch(comp, next); !in {
				continue
			}
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *RenderGraph) stronglyConnected() [][]InstanceID {
	n := len(g.instances)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var (
		stack   []InstanceID
		counter int
		out     [][]InstanceID
	)
	var visit func(v InstanceID)
	visit = func(v InstanceID) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.instances[v].Dependents {
			if index[w] < 0 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var comp []InstanceID
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		out = append(out, comp)
	}
	for v := range n {
		if index[v] < 0 {
			visit(InstanceID(v))
		}
	}
	return out
}
