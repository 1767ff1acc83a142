package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/rendergraph/internal/compiler"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/executor"
	"github.com/specialistvlad/rendergraph/internal/metrics"
	"github.com/specialistvlad/rendergraph/internal/nullgpu"
	"github.com/specialistvlad/rendergraph/internal/producer"
	"github.com/specialistvlad/rendergraph/internal/profiler"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

const (
	// surfaceSlotBase keeps back buffer slots apart from registry slots in logs.
	surfaceSlotBase = 1 << 20
	// replanInterval recompiles a cached plan once the profiler has refined
	// its pass costs.
	replanInterval = 30
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	ctx      context.Context
	config   *Config
	registry *registry.Registry
	producer *producer.Producer

	device      *nullgpu.Device
	surface     *nullgpu.Surface
	descriptors *nullgpu.Registry
	reclaimer   *nullgpu.Reclaimer
	profiler    *profiler.Profiler
	metrics     *metrics.Metrics
	gatherer    *prometheus.Registry
	compiler    *compiler.Compiler
	coordinator *executor.Coordinator

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App with its own logger, registry and device. Registering two
// modules under the same executor name panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "executors", reg.Names())
	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		ctx:      ctx,
		config:   cfg,
		registry: reg,
	}
	if err := a.load(loader); err != nil {
		return nil, err
	}
	if err := a.wire(); err != nil {
		return nil, err
	}
	return a, nil
}

// wire creates the device, the compiler and the coordinator.
func (a *App) wire() error {
	settings, err := a.settings()
	if err != nil {
		return err
	}

	a.device = nullgpu.NewDevice()
	a.surface = nullgpu.NewSurface(true, surfaceSlotBase)
	a.descriptors = nullgpu.NewRegistry(1)
	a.reclaimer = nullgpu.NewReclaimer(a.device, a.descriptors)
	a.profiler = profiler.New()
	a.metrics = metrics.New()
	a.gatherer = prometheus.NewRegistry()
	a.metrics.MustRegister(a.gatherer)

	a.compiler, err = compiler.New(compiler.Options{
		Settings:        settings,
		Registry:        a.descriptors,
		Reclaimer:       a.reclaimer,
		Costs:           a.profiler,
		Metrics:         a.metrics,
		ExplicitPresent: a.surface.ExplicitPresentTransition(),
		ReplanInterval:  replanInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create compiler: %w", err)
	}

	workers := a.config.Workers
	if workers == 0 {
		workers = settings.Threads
	}
	a.coordinator, err = executor.New(executor.Options{
		Device:   a.device,
		Surface:  a.surface,
		Profiler: a.profiler,
		Metrics:  a.metrics,
		Workers:  workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	a.logger.Debug("Render graph stack wired.",
		"aliasing", settings.Aliasing,
		"memory_budget", settings.MemoryBudget,
		"validation", settings.Validation,
		"workers", a.coordinator.Workers(),
	)
	return nil
}

// settings merges the description's settings with the CLI overrides.
func (a *App) settings() (compiler.Settings, error) {
	s, err := a.producer.Settings()
	if err != nil {
		return s, err
	}
	if a.config.MemoryBudget > 0 {
		s.MemoryBudget = a.config.MemoryBudget
	}
	if a.config.Aliasing != nil {
		s.Aliasing = *a.config.Aliasing
	}
	if a.config.Validation != "" {
		if s.Validation, err = compiler.ParsePolicy(a.config.Validation); err != nil {
			return s, err
		}
	}
	if a.config.Workers > 0 {
		s.Threads = a.config.Workers
	}
	return s, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Gatherer returns the Prometheus registry the app's metrics are registered on.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.gatherer
}
