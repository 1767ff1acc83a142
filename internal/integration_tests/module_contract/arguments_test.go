package integration_tests

import (
	"testing"

	"github.com/specialistvlad/rendergraph/internal/graph"
	harness "github.com/specialistvlad/rendergraph/internal/integration_tests"
	"github.com/specialistvlad/rendergraph/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bloomInput struct {
	Threshold float64  `cty:"threshold,required"`
	Passes    int      `cty:"passes"`
	Tint      []string `cty:"tint"`
}

// bloomModule hands every built input to the test.
type bloomModule struct {
	built []bloomInput
}

func (m *bloomModule) Register(r *registry.Registry) {
	r.RegisterExecutor("bloom", &registry.RegisteredExecutor{
		NewInput: func() any { return &bloomInput{Passes: 5} },
		Kinds:    []graph.PassKind{graph.KindRaster},
		Build: func(in any) (graph.Executor, error) {
			m.built = append(m.built, *in.(*bloomInput))
			return func(tc *graph.TaskExecutionContext) error {
				tc.Recorder().Draw(3, 1)
				return nil
			}, nil
		},
	})
}

func bloomFrame(arguments string) map[string]string {
	return map[string]string{"main.hcl": `
texture "bloom" {
  width  = 32
  height = 32
}

module "post" {
  pass "bloom" {
    executor = "bloom"
    arguments {
` + arguments + `
    }
    write {
      resource = texture.bloom
    }
  }
}
`}
}

// Test for: arguments are decoded into the executor's input with defaults kept
func TestModuleContract_ArgumentsDecoded(t *testing.T) {
	// --- Arrange ---
	bloom := &bloomModule{}

	// --- Act ---
	s := harness.MustStack(t, bloomFrame(`threshold = 0.8
      tint      = ["warm", "soft"]`), []registry.Module{bloom})
	_, res, err := s.Render(0)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, bloom.built, 1, "executors are built once at load time")
	assert.Equal(t, bloomInput{Threshold: 0.8, Passes: 5, Tint: []string{"warm", "soft"}}, bloom.built[0])
	assert.Equal(t, []string{"bloom"}, harness.PassNames(res))

	// A second frame reuses the built executor.
	_, _, err = s.Render(1)
	require.NoError(t, err)
	assert.Len(t, bloom.built, 1)
}

// Test for: argument contract violations are reported at load time
func TestModuleContract_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name      string
		arguments string
		want      string
	}{
		{"missing required", `passes = 2`, `missing required argument "threshold"`},
		{"unsupported", `threshold = 1
      radius    = 4`, "unsupported arguments: radius"},
		{"wrong type", `threshold = "bright"`, `failed to decode argument "threshold"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := harness.NewStack(t, bloomFrame(tt.arguments), []registry.Module{&bloomModule{}})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

// Test for: an executor refuses pass kinds it cannot record
func TestModuleContract_KindMismatch(t *testing.T) {
	frame := map[string]string{"main.hcl": `
buffer "b" {
  size = 16
}
module "m" {
  pass "p" {
    kind     = "compute"
    executor = "bloom"
    arguments {
      threshold = 1
    }
    write {
      resource = buffer.b
    }
  }
}
`}
	_, err := harness.NewStack(t, frame, []registry.Module{&bloomModule{}})
	assert.ErrorContains(t, err, `executor "bloom" cannot record compute passes`)
}
