package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("positional path with defaults", func(t *testing.T) {
		cfg, exit, err := Parse([]string{"scene.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "scene.hcl", cfg.FramePath)
		assert.Equal(t, 1, cfg.Frames)
		assert.Nil(t, cfg.Aliasing, "aliasing is left to the description unless passed")
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("flags", func(t *testing.T) {
		cfg, _, err := Parse([]string{
			"-f", "frames/", "--frames", "120", "--workers", "4", "--memory-budget", "256",
			"--aliasing=false", "--validation", "best-effort", "--log-format", "JSON",
			"--telemetry-url", "http://localhost:3000",
		}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "frames/", cfg.FramePath)
		assert.Equal(t, 120, cfg.Frames)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, uint64(256<<20), cfg.MemoryBudget)
		require.NotNil(t, cfg.Aliasing)
		assert.False(t, *cfg.Aliasing)
		assert.Equal(t, "best-effort", cfg.Validation)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "http://localhost:3000", cfg.TelemetryURL)
	})

	t.Run("aliasing opt-in", func(t *testing.T) {
		cfg, _, err := Parse([]string{"--aliasing", "scene.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.NotNil(t, cfg.Aliasing)
		assert.True(t, *cfg.Aliasing)
	})

	t.Run("frame flag wins over positional", func(t *testing.T) {
		cfg, _, err := Parse([]string{"--frame", "a.hcl", "b.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "a.hcl", cfg.FramePath)
	})

	t.Run("no path prints usage", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse(nil, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "FRAME_PATH")
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--bogus"}, "flag provided but not defined"},
		{"log format", []string{"--log-format", "xml", "x.hcl"}, "invalid log-format"},
		{"log level", []string{"--log-level", "trace", "x.hcl"}, "invalid log-level"},
		{"negative frames", []string{"--frames", "-2", "x.hcl"}, "frames must be positive"},
		{"validation policy", []string{"--validation", "lenient", "x.hcl"}, "unknown validation policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.want)
		})
	}
}
