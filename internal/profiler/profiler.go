// Package profiler keeps per-pass exponential moving averages of measured
// costs and feeds them back to the scheduler once enough samples exist.
//
// The profiler is best-effort telemetry: recording never blocks on anything
// but a short mutex, never fails, and a pass without data simply keeps its
// declared estimate.
package profiler

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/rendergraph/internal/graph"
)

const (
	// DefaultAlpha is the EMA smoothing factor.
	DefaultAlpha = 0.1
	// DefaultMinSamples is how many samples a pass needs before its
	// measured cost replaces the declared estimate.
	DefaultMinSamples = 10
)

// Stats is the smoothed history of one pass.
type Stats struct {
	Samples int
	CPU     time.Duration
	GPU     time.Duration
	Memory  uint64
	Last    graph.Cost
}

// Cost returns the smoothed cost.
func (s Stats) Cost() graph.Cost {
	return graph.Cost{CPU: s.CPU, GPU: s.GPU, Memory: s.Memory}
}

type ema struct {
	samples          int
	cpu, gpu, memory float64
	last             graph.Cost
}

// Profiler is safe for concurrent use.
type Profiler struct {
	alpha      float64
	minSamples int

	mu    sync.Mutex
	stats map[string]*ema
}

// New creates a profiler with the default smoothing factor and threshold.
func New() *Profiler {
	return NewWithParams(DefaultAlpha, DefaultMinSamples)
}

// NewWithParams creates a profiler with a custom smoothing factor in (0, 1]
// and sample threshold. Out-of-range values fall back to the defaults.
func NewWithParams(alpha float64, minSamples int) *Profiler {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	if minSamples < 1 {
		minSamples = DefaultMinSamples
	}
	return &Profiler{alpha: alpha, minSamples: minSamples, stats: make(map[string]*ema)}
}

// RecordPassExecution folds one measurement into the pass's averages. The
// first sample initialises the average.
func (p *Profiler) RecordPassExecution(passName string, cpu, gpu time.Duration, memory uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stats[passName]
	if !ok {
		s = &ema{}
		p.stats[passName] = s
	}
	s.last = graph.Cost{CPU: cpu, GPU: gpu, Memory: memory}
	if s.samples == 0 {
		s.cpu, s.gpu, s.memory = float64(cpu), float64(gpu), float64(memory)
	} else {
		s.cpu += p.alpha * (float64(cpu) - s.cpu)
		s.gpu += p.alpha * (float64(gpu) - s.gpu)
		s.memory += p.alpha * (float64(memory) - s.memory)
	}
	s.samples++
}

// GetRefinedCost returns the smoothed cost once the pass has at least the
// threshold number of samples, and declared otherwise.
func (p *Profiler) GetRefinedCost(passName string, declared graph.Cost) graph.Cost {
	st, ok := p.Stats(passName)
	if !ok || st.Samples < p.minSamples {
		return declared
	}
	return st.Cost()
}

// Stats returns the history of one pass.
func (p *Profiler) Stats(passName string) (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[passName]
	if !ok {
		return Stats{}, false
	}
	return s.snapshot(), true
}

// Snapshot returns the history of every pass.
func (p *Profiler) Snapshot() map[string]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Stats, len(p.stats))
	for name, s := range p.stats {
		out[name] = s.snapshot()
	}
	return out
}

// Passes returns the names of every profiled pass.
func (p *Profiler) Passes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.stats)
}

// Reset drops every sample.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.stats)
}

func (s *ema) snapshot() Stats {
	return Stats{
		Samples: s.samples,
		CPU:     time.Duration(s.cpu),
		GPU:     time.Duration(s.gpu),
		Memory:  uint64(s.memory),
		Last:    s.last,
	}
}

func sortedKeys(m map[string]*ema) []string {
	return slices.Sorted(maps.Keys(m))
}
