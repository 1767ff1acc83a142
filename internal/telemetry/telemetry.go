// Package telemetry publishes per-frame statistics to an external
// observer, such as a live profiling dashboard.
package telemetry

import (
	"context"

	"github.com/specialistvlad/rendergraph/internal/compiler"
	"github.com/specialistvlad/rendergraph/internal/executor"
)

// PassStats is the measured cost of one pass instance.
type PassStats struct {
	Name      string `json:"name"`
	CPUMicros int64  `json:"cpu_us"`
	GPUMicros int64  `json:"gpu_us"`
}

// FrameStats is the payload of a frame_stats event.
type FrameStats struct {
	Frame          uint64      `json:"frame"`
	Plan           string      `json:"plan"`
	DurationMicros int64       `json:"duration_us"`
	Submissions    int         `json:"submissions"`
	Batches        int         `json:"batches"`
	AllocatedBytes uint64      `json:"allocated_bytes"`
	BytesSaved     uint64      `json:"bytes_saved"`
	OverBudget     bool        `json:"over_budget"`
	Passes         []PassStats `json:"passes"`
}

// NewFrameStats summarizes an executed frame of plan.
func NewFrameStats(plan *compiler.Plan, res *executor.FrameResult) FrameStats {
	s := FrameStats{
		Frame:          res.Frame,
		Plan:           res.Plan.String(),
		DurationMicros: res.Duration.Microseconds(),
		Submissions:    res.Submissions,
		Batches:        len(plan.Schedule.Batches),
		AllocatedBytes: plan.Memory.AllocatedBytes,
		BytesSaved:     plan.Memory.BytesSaved(),
		OverBudget:     plan.Memory.OverBudget,
		Passes:         make([]PassStats, len(res.Timings)),
	}
	for i, t := range res.Timings {
		s.Passes[i] = PassStats{Name: t.Name, CPUMicros: t.CPU.Microseconds(), GPUMicros: t.GPU.Microseconds()}
	}
	return s
}

// Publisher sends frame statistics somewhere.
type Publisher interface {
	Publish(ctx context.Context, stats FrameStats) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, FrameStats) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
