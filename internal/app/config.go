package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/compiler"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FramePath string // hcl file or directory
	Frames    int

	// Workers bounds recording parallelism. Zero uses the description's
	// thread setting, then GOMAXPROCS.
	Workers int
	// MemoryBudget, Aliasing and Validation override the description's
	// settings block when set.
	MemoryBudget uint64
	Aliasing     *bool
	Validation   string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	TelemetryURL    string
}

// NewConfig validates cfg and returns a copy with defaults applied.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.FramePath == "" {
		return nil, errors.New("FramePath is a required configuration field and cannot be empty")
	}
	if cfg.Frames == 0 {
		cfg.Frames = 1
	}
	if cfg.Frames < 0 {
		return nil, fmt.Errorf("frames must be positive, got %d", cfg.Frames)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Validation != "" {
		if _, err := compiler.ParsePolicy(cfg.Validation); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
