package app

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/telemetry"
)

// Run executes the configured number of frames. It stops early when ctx is
// cancelled or a frame fails.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthCheckServer(a.config.HealthcheckPort); err != nil {
			return err
		}
		defer func() { err = errors.CombineErrors(err, a.closeHealthCheckServer()) }()
	}

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, publisher.Close()) }()
	defer a.shutdown(ctx)

	a.logger.Info("🚀 Rendering frames...", "frames", a.config.Frames)
	for i := range a.config.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.renderFrame(ctx, uint64(i), publisher); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	graphs, plans := a.compiler.GraphCacheStats(), a.compiler.PlanCacheStats()
	a.logger.Info("🏁 Rendering finished.",
		"frames", a.config.Frames,
		"graph_cache_hits", graphs.Hits,
		"graph_cache_misses", graphs.Misses,
		"plan_cache_hits", plans.Hits,
		"plan_cache_misses", plans.Misses,
		"peak_bytes", a.descriptors.PeakBytes(),
	)
	return nil
}

func (a *App) newPublisher(ctx context.Context) (telemetry.Publisher, error) {
	if a.config.TelemetryURL == "" {
		return telemetry.Nop{}, nil
	}
	p, err := telemetry.DialSocketIO(ctx, telemetry.SocketIOOptions{URL: a.config.TelemetryURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect telemetry: %w", err)
	}
	return p, nil
}

// renderFrame compiles, executes and reports one frame, then reclaims the
// memory of retired plans.
func (a *App) renderFrame(ctx context.Context, index uint64, publisher telemetry.Publisher) error {
	frame := a.producer.Frame(index)
	plan, err := a.compiler.Compile(ctx, a.producer.Request(frame))
	if err != nil {
		return err
	}
	res, err := a.coordinator.Execute(ctx, plan, frame)
	if err != nil {
		return err
	}
	if freed := a.reclaimer.Collect(); freed > 0 {
		a.logger.Debug("Reclaimed retired plan memory.", "retirements", freed)
	}

	stats := telemetry.NewFrameStats(plan, res)
	if err := publisher.Publish(ctx, stats); err != nil {
		a.logger.Warn("Failed to publish frame stats.", "frame", index, "error", err)
	}
	fmt.Fprintf(a.outW, "frame %d: views=%d passes=%d batches=%d submissions=%d allocated=%d saved=%d plan=%s duration=%s\n",
		index, frame.ViewCount(), len(res.Timings), stats.Batches, res.Submissions,
		stats.AllocatedBytes, stats.BytesSaved, plan.ID, res.Duration)
	return nil
}

// shutdown retires every cached plan and frees what already completed.
func (a *App) shutdown(ctx context.Context) {
	a.compiler.Close(ctx)
	a.device.CompleteAll()
	freed := a.reclaimer.Collect()
	a.logger.Debug("Render graph stack closed.", "retirements", freed, "pending", a.reclaimer.Pending(), "live_slots", a.descriptors.LiveSlots())
}
