package cache

import (
	"cmp"
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"slices"

	"github.com/specialistvlad/rendergraph/internal/graph"
)

// Hasher folds fields into a 64-bit FNV-1a hash.
type Hasher struct {
	h   hash.Hash64
	buf [8]byte
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: fnv.New64a()}
}

// String folds a length-prefixed string so ("ab","c") and ("a","bc") differ.
func (h *Hasher) String(s string) *Hasher {
	h.Uint64(uint64(len(s)))
	h.h.Write([]byte(s))
	return h
}

// Uint64 folds an integer in little-endian order.
func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	h.h.Write(h.buf[:])
	return h
}

// Int folds a signed integer.
func (h *Hasher) Int(v int) *Hasher { return h.Uint64(uint64(int64(v))) }

// Bool folds a boolean.
func (h *Hasher) Bool(v bool) *Hasher {
	if v {
		return h.Uint64(1)
	}
	return h.Uint64(0)
}

// Float32 folds the bit pattern of a float.
func (h *Hasher) Float32(v float32) *Hasher { return h.Uint64(uint64(math.Float32bits(v))) }

// Sum64 returns the hash.
func (h *Hasher) Sum64() uint64 { return h.h.Sum64() }

// ViewportsHash hashes viewports in canonical order, so equivalent sets
// hash the same regardless of view order.
func ViewportsHash(viewports []graph.Viewport) uint64 {
	sorted := slices.Clone(viewports)
	slices.SortFunc(sorted, func(a, b graph.Viewport) int {
		return cmp.Or(
			cmp.Compare(a.Width, b.Width),
			cmp.Compare(a.Height, b.Height),
			cmp.Compare(a.X, b.X),
			cmp.Compare(a.Y, b.Y),
			cmp.Compare(a.MinDepth, b.MinDepth),
			cmp.Compare(a.MaxDepth, b.MaxDepth),
		)
	})
	h := NewHasher().Int(len(sorted))
	for _, v := range sorted {
		h.Float32(v.Width).Float32(v.Height).Float32(v.X).Float32(v.Y).Float32(v.MinDepth).Float32(v.MaxDepth)
	}
	return h.Sum64()
}

// FrameViewportsHash hashes the viewports of a frame's views.
func FrameViewportsHash(frame *graph.FrameContext) uint64 {
	if frame == nil {
		return ViewportsHash(nil)
	}
	vps := make([]graph.Viewport, len(frame.Views))
	for i, v := range frame.Views {
		vps[i] = v.Viewport
	}
	return ViewportsHash(vps)
}

// DeclarationsHash hashes the logical structure declared on b. Passes and
// resources are folded in name order (declaration order breaks ties) and
// every pass's accesses are folded in resource-name order. Executors and
// view filters cannot be hashed; only their presence is folded.
func DeclarationsHash(b *graph.Builder) uint64 {
	resName := func(r graph.ResourceHandle) string {
		if d, ok := b.Resource(r); ok {
			return d.Name
		}
		return ""
	}
	passName := func(p graph.PassHandle) string {
		if d, ok := b.Pass(p); ok {
			return d.Name
		}
		return ""
	}

	h := NewHasher()

	resources := b.Resources()
	slices.SortStableFunc(resources, func(x, y *graph.ResourceDecl) int { return cmp.Compare(x.Name, y.Name) })
	h.Int(len(resources))
	for _, r := range resources {
		h.String(r.Name).Uint64(uint64(r.Kind)).Uint64(uint64(r.Lifetime)).Uint64(uint64(r.Scope)).
			Bool(r.Imported).Bool(r.BackBuffer).Uint64(uint64(r.Slot))
		t := r.Texture
		h.Uint64(uint64(t.Dimension)).Uint64(uint64(t.Size.Width)).Uint64(uint64(t.Size.Height)).
			Uint64(uint64(t.Size.DepthOrArrayLayers)).Uint64(uint64(t.Format)).Uint64(uint64(t.Usage)).
			Uint64(uint64(t.MipLevels)).Uint64(uint64(t.SampleCount))
		h.Uint64(r.Buffer.Size).Uint64(uint64(r.Buffer.Usage)).Uint64(uint64(r.Buffer.Stride))
	}

	passes := b.Passes()
	slices.SortStableFunc(passes, func(x, y *graph.PassDecl) int { return cmp.Compare(x.Name, y.Name) })
	h.Int(len(passes))
	for _, p := range passes {
		h.String(p.Name).Uint64(uint64(p.Kind)).Uint64(uint64(p.Scope)).Uint64(uint64(p.Queue)).
			Int(p.Priority).Uint64(uint64(p.Cost.CPU)).Uint64(uint64(p.Cost.GPU)).Uint64(p.Cost.Memory).
			Bool(p.Executor != nil)
		h.Uint64(uint64(p.Views.Mode)).Bool(p.Views.Filter != nil)
		indices := slices.Sorted(slices.Values(p.Views.Indices))
		h.Int(len(indices))
		for _, i := range indices {
			h.Int(i)
		}
		for _, list := range [][]graph.Access{p.Reads, p.Writes} {
			sorted := slices.Clone(list)
			slices.SortStableFunc(sorted, func(x, y graph.Access) int {
				return cmp.Or(cmp.Compare(resName(x.Resource), resName(y.Resource)), cmp.Compare(x.State, y.State))
			})
			h.Int(len(sorted))
			for _, a := range sorted {
				h.String(resName(a.Resource)).Uint64(uint64(a.State))
			}
		}
		deps := make([]string, len(p.Deps))
		for i, d := range p.Deps {
			deps[i] = passName(d)
		}
		slices.Sort(deps)
		h.Int(len(deps))
		for _, d := range deps {
			h.String(d)
		}
	}

	aliases := b.AliasRequests()
	pairs := make([][2]string, len(aliases))
	for i, a := range aliases {
		pairs[i] = [2]string{resName(a.A), resName(a.B)}
		if pairs[i][1] < pairs[i][0] {
			pairs[i][0], pairs[i][1] = pairs[i][1], pairs[i][0]
		}
	}
	slices.SortFunc(pairs, func(x, y [2]string) int {
		return cmp.Or(cmp.Compare(x[0], y[0]), cmp.Compare(x[1], y[1]))
	})
	h.Int(len(pairs))
	for _, p := range pairs {
		h.String(p[0]).String(p[1])
	}
	return h.Sum64()
}

// SettingsHash hashes key/value settings in key order.
func SettingsHash(settings map[string]string) uint64 {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h := NewHasher().Int(len(keys))
	for _, k := range keys {
		h.String(k).String(settings[k])
	}
	return h.Sum64()
}
