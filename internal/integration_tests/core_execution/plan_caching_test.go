package integration_tests

import (
	"testing"

	harness "github.com/specialistvlad/rendergraph/internal/integration_tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const splitScreen = `
view "player_one" {
  width  = 960
  height = 1080
}
view "player_two" {
  x      = 960
  width  = 960
  height = 1080
  frames = [2, 4]
}

texture "color" {
  width  = 960
  height = 1080
  scope  = "per_view"
}
back_buffer "swapchain" {}

module "main" {
  pass "scene" {
    scope = "per_view"
    write {
      resource = texture.color
    }
  }
  pass "present" {
    scope = "per_view"
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

// Test for: a plan is reused for every frame with the same view layout
func TestCoreExecution_PlanReusedPerViewLayout(t *testing.T) {
	// --- Arrange ---
	s := harness.MustStack(t, map[string]string{"main.hcl": splitScreen}, nil)

	// --- Act ---
	var plans []string
	for i := range uint64(7) {
		plan, res, err := s.Render(i)
		require.NoError(t, err)
		require.NotNil(t, res)
		plans = append(plans, plan.ID.String())
	}

	// --- Assert ---
	assert.Equal(t, plans[0], plans[1])
	assert.NotEqual(t, plans[1], plans[2], "a second player joins")
	assert.Equal(t, plans[2], plans[4])
	assert.Equal(t, plans[0], plans[5], "the single-view plan is still cached")
	assert.Equal(t, plans[0], plans[6])

	stats := s.Compiler.PlanCacheStats()
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(5), stats.Hits)
}

// Test for: closing the compiler hands all memory back once the GPU is done
func TestCoreExecution_MemoryReclaimedAfterClose(t *testing.T) {
	// --- Arrange ---
	s := harness.MustStack(t, map[string]string{"main.hcl": splitScreen}, nil)
	s.Device.SetManualCompletion(true)
	for i := range uint64(3) {
		_, _, err := s.Render(i)
		require.NoError(t, err)
	}
	require.Positive(t, s.Descriptors.LiveSlots())

	// --- Act ---
	s.Compiler.Close(s.Ctx)
	s.Reclaimer.Collect()
	pendingBeforeCompletion := s.Reclaimer.Pending()
	s.Device.CompleteAll()
	s.Reclaimer.Collect()

	// --- Assert ---
	assert.Positive(t, pendingBeforeCompletion, "memory in flight is not released early")
	assert.Zero(t, s.Reclaimer.Pending())
	assert.Zero(t, s.Descriptors.LiveSlots())
	assert.Zero(t, s.Descriptors.AllocatedBytes())
}
