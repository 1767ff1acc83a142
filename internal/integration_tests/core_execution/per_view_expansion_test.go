package integration_tests

import (
	"sync"
	"testing"

	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	harness "github.com/specialistvlad/rendergraph/internal/integration_tests"
	"github.com/specialistvlad/rendergraph/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyModule records which view and output slot each instance saw.
type spyModule struct {
	mu    sync.Mutex
	seen  map[string]string
	slots map[string]gpu.DescriptorSlot
}

func (m *spyModule) Register(r *registry.Registry) {
	r.RegisterExecutor("spy", &registry.RegisteredExecutor{
		NewInput: func() any { return new(struct{}) },
		Build: func(any) (graph.Executor, error) {
			return func(tc *graph.TaskExecutionContext) error {
				m.mu.Lock()
				defer m.mu.Unlock()
				view := ""
				if v := tc.View(); v != nil {
					view = v.Name
				}
				m.seen[tc.PassName()] = view
				m.slots[tc.PassName()] = tc.Write(0)
				return nil
			}, nil
		},
	})
}

const threeViews = `
view "left" {
  width  = 800
  height = 600
}
view "right" {
  width  = 800
  height = 600
}
view "map" {
  width  = 200
  height = 200
}

texture "color" {
  width  = 800
  height = 600
  scope  = "per_view"
}
texture "sky" {
  width  = 64
  height = 64
}

back_buffer "swapchain" {}

module "main" {
  pass "sky" {
    executor = "spy"
    write {
      resource = texture.sky
    }
  }
  pass "scene" {
    scope    = "per_view"
    executor = "spy"
    read {
      resource = texture.sky
    }
    write {
      resource = texture.color
    }
  }
  pass "present" {
    scope = "per_view"
    views = [0, 1]
    kind  = "copy"
    queue = "graphics"
    read {
      resource = texture.color
    }
    write {
      resource = back_buffer.swapchain
    }
  }
}
`

// Test for: per-view passes are cloned for every active view
func TestCoreExecution_PerViewExpansion(t *testing.T) {
	// --- Arrange ---
	spy := &spyModule{seen: map[string]string{}, slots: map[string]gpu.DescriptorSlot{}}
	modules := append([]registry.Module{spy}, harness.CoreModules...)
	s := harness.MustStack(t, map[string]string{"main.hcl": threeViews}, modules)

	// --- Act ---
	_, res, err := s.Render(0)

	// --- Assert ---
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sky", "scene[0]", "scene[1]", "scene[2]", "present[0]", "present[1]"}, harness.PassNames(res))
	assert.Equal(t, "left", spy.seen["sky"], "shared passes see the primary view")
	assert.Equal(t, "right", spy.seen["scene[1]"])
	assert.Equal(t, "map", spy.seen["scene[2]"])

	// Every per-view clone writes its own instance of the texture.
	distinct := map[gpu.DescriptorSlot]bool{}
	for _, name := range []string{"scene[0]", "scene[1]", "scene[2]"} {
		distinct[spy.slots[name]] = true
	}
	assert.Len(t, distinct, 3)

	// The map view is rendered but never presented.
	assert.Equal(t, []string{"left", "right"}, s.Surface.Presented())
}
