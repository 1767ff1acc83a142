package alias

import (
	"cmp"
	"slices"

	"github.com/specialistvlad/rendergraph/internal/graph"
)

// Candidate is a resource instance offered to the packer.
type Candidate struct {
	Resource  graph.ResourceInstanceID
	Class     Class
	Size      uint64
	Interval  Interval
	Aliasable bool
}

// Page is one physical allocation and the resources that live in it.
type Page struct {
	Index   int
	Class   Class
	Size    uint64
	Members []graph.ResourceInstanceID

	aliasable bool
	intervals []Interval
}

// Packing is the result of assigning candidates to pages.
type Packing struct {
	Pages  []*Page
	PageOf map[graph.ResourceInstanceID]int
	// RequestedBytes is what separate allocations would have cost.
	RequestedBytes uint64
	// AllocatedBytes is the sum of page sizes.
	AllocatedBytes uint64
	// Rejected counts candidates that fit a page by lifetime and class
	// but were refused because of a scope hazard.
	Rejected int
}

// BytesSaved returns the memory aliasing saved over separate allocations.
func (p *Packing) BytesSaved() uint64 {
	return p.RequestedBytes - p.AllocatedBytes
}

// AliasedResources returns how many resources share a page with another.
func (p *Packing) AliasedResources() int {
	n := 0
	for _, page := range p.Pages {
		if len(page.Members) > 1 {
			n += len(page.Members)
		}
	}
	return n
}

// HazardFunc reports whether two resources must never share memory.
type HazardFunc func(a, b graph.ResourceInstanceID) bool

// Pack assigns candidates to pages. Requested pairs are seeded first when
// they are individually safe; the rest are placed first-fit by descending
// size, ties broken by resource ID.
func Pack(cands []Candidate, requested [][2]graph.ResourceInstanceID, hazard HazardFunc) *Packing {
	if hazard == nil {
		hazard = func(graph.ResourceInstanceID, graph.ResourceInstanceID) bool { return false }
	}
	p := &Packing{PageOf: make(map[graph.ResourceInstanceID]int, len(cands))}
	byID := make(map[graph.ResourceInstanceID]Candidate, len(cands))
	for _, c := range cands {
		byID[c.Resource] = c
		p.RequestedBytes += c.Size
	}

	for _, pair := range requested {
		a, okA := byID[pair[0]]
		b, okB := byID[pair[1]]
		if !okA || !okB || !a.Aliasable || !b.Aliasable || p.placed(a) || p.placed(b) {
			continue
		}
		if a.Class != b.Class || a.Interval.Overlaps(b.Interval) || hazard(a.Resource, b.Resource) {
			continue
		}
		p.place(p.newPage(a), b)
	}

	sorted := slices.Clone(cands)
	slices.SortFunc(sorted, func(x, y Candidate) int {
		if c := cmp.Compare(y.Size, x.Size); c != 0 {
			return c
		}
		return cmp.Compare(x.Resource, y.Resource)
	})

	for _, c := range sorted {
		if p.placed(c) {
			continue
		}
		if !c.Aliasable {
			p.newPage(c)
			continue
		}
		rejected, placed := false, false
		for _, page := range p.Pages {
			if !page.aliasable || page.Class != c.Class || page.overlaps(c.Interval) {
				continue
			}
			if page.hazardWith(c.Resource, hazard) {
				rejected = true
				continue
			}
			p.place(page, c)
			placed = true
			break
		}
		if !placed {
			p.newPage(c)
			if rejected {
				p.Rejected++
			}
		}
	}

	for _, page := range p.Pages {
		p.AllocatedBytes += page.Size
	}
	return p
}

func (p *Packing) placed(c Candidate) bool {
	_, ok := p.PageOf[c.Resource]
	return ok
}

func (p *Packing) newPage(c Candidate) *Page {
	page := &Page{Index: len(p.Pages), Class: c.Class, aliasable: c.Aliasable}
	p.Pages = append(p.Pages, page)
	p.place(page, c)
	return page
}

func (p *Packing) place(page *Page, c Candidate) {
	page.Members = append(page.Members, c.Resource)
	page.intervals = append(page.intervals, c.Interval)
	page.Size = max(page.Size, c.Size)
	p.PageOf[c.Resource] = page.Index
}

func (page *Page) overlaps(i Interval) bool {
	for _, o := range page.intervals {
		if o.Overlaps(i) {
			return true
		}
	}
	return false
}

func (page *Page) hazardWith(r graph.ResourceInstanceID, hazard HazardFunc) bool {
	for _, m := range page.Members {
		if hazard(m, r) {
			return true
		}
	}
	return false
}
