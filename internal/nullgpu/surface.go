package nullgpu

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// Surface hands out one back buffer slot per target and records presents.
type Surface struct {
	explicit bool

	mu        sync.Mutex
	next      gpu.DescriptorSlot
	slots     map[string]gpu.DescriptorSlot
	presented []string
	missing   map[string]bool
}

var _ gpu.Surface = (*Surface)(nil)

// NewSurface creates a surface. explicit selects whether the graph must
// transition back buffers to the present state itself. Back buffer slots
// are numbered from base.
func NewSurface(explicit bool, base gpu.DescriptorSlot) *Surface {
	return &Surface{
		explicit: explicit,
		next:     base,
		slots:    make(map[string]gpu.DescriptorSlot),
		missing:  make(map[string]bool),
	}
}

// Lose makes subsequent acquires of target fail, like a destroyed window.
func (s *Surface) Lose(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing[target] = true
}

// Acquire implements gpu.Surface.
func (s *Surface) Acquire(target string) (gpu.DescriptorSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[target] {
		return gpu.InvalidSlot, errors.Newf("surface %q is not available", target)
	}
	slot, ok := s.slots[target]
	if !ok {
		slot = s.next
		s.next++
		s.slots[target] = slot
	}
	return slot, nil
}

// ExplicitPresentTransition implements gpu.Surface.
func (s *Surface) ExplicitPresentTransition() bool { return s.explicit }

// Present implements gpu.Surface.
func (s *Surface) Present(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = append(s.presented, target)
	return nil
}

// Presented returns every presented target in order.
func (s *Surface) Presented() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.presented...)
}
