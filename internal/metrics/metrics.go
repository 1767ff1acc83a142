// Package metrics holds the Prometheus collectors of the render graph
// runtime. A nil *Metrics is valid and records nothing, so components can
// be used without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rendergraph"

// Metrics groups every collector. Create it with New and register it once.
type Metrics struct {
	framesTotal         *prometheus.CounterVec
	frameDuration       prometheus.Histogram
	compileDuration     prometheus.Histogram
	cacheLookupsTotal   *prometheus.CounterVec
	cacheEvictionsTotal *prometheus.CounterVec
	validationTotal     *prometheus.CounterVec
	passCPUSeconds      *prometheus.HistogramVec
	aliasBytesSaved     prometheus.Gauge
	aliasRejectedTotal  prometheus.Counter
	allocatedBytes      prometheus.Gauge
	overBudgetTotal     prometheus.Counter
	batches             prometheus.Gauge
	syncPoints          prometheus.Gauge
	criticalPathSeconds prometheus.Gauge
	gpuUtilization      prometheus.Gauge
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Total number of executed frames by result",
			},
			[]string{"result"},
		),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_record_duration_seconds",
			Help:      "Wall time spent recording and submitting a frame",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		compileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of render graph compilation on a cache miss",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Compilation cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		cacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Compilation cache evictions by cache",
			},
			[]string{"cache"},
		),
		validationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_findings_total",
				Help:      "Validation findings by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		passCPUSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_record_seconds",
				Help:      "CPU time spent recording a pass",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
			},
			[]string{"pass"},
		),
		aliasBytesSaved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alias_bytes_saved",
			Help:      "Bytes saved by aliasing in the most recently compiled plan",
		}),
		aliasRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alias_rejected_total",
			Help:      "Alias candidates rejected because of scope hazards",
		}),
		allocatedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "allocated_bytes",
			Help:      "Physical bytes allocated by the most recently compiled plan",
		}),
		overBudgetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_over_budget_total",
			Help:      "Plans accepted over the memory budget",
		}),
		batches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_batches",
			Help:      "Batches in the most recently compiled schedule",
		}),
		syncPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_sync_points",
			Help:      "Cross-queue sync points in the most recently compiled schedule",
		}),
		criticalPathSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "critical_path_gpu_seconds",
			Help:      "Estimated GPU time along the critical path",
		}),
		gpuUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gpu_utilization_ratio",
			Help:      "Estimated GPU utilization of the most recently compiled schedule",
		}),
	}
}

// MustRegister registers every collector and panics on conflicts.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.framesTotal,
		m.frameDuration,
		m.compileDuration,
		m.cacheLookupsTotal,
		m.cacheEvictionsTotal,
		m.validationTotal,
		m.passCPUSeconds,
		m.aliasBytesSaved,
		m.aliasRejectedTotal,
		m.allocatedBytes,
		m.overBudgetTotal,
		m.batches,
		m.syncPoints,
		m.criticalPathSeconds,
		m.gpuUtilization,
	)
}

// CacheLookup counts a lookup in the named cache.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// CacheEviction counts an eviction from the named cache.
func (m *Metrics) CacheEviction(cache string) {
	if m == nil {
		return
	}
	m.cacheEvictionsTotal.WithLabelValues(cache).Inc()
}

// ValidationFinding counts one validator finding.
func (m *Metrics) ValidationFinding(kind, severity string) {
	if m == nil {
		return
	}
	m.validationTotal.WithLabelValues(kind, severity).Inc()
}

// PlanStats summarizes a compiled plan.
type PlanStats struct {
	Compile         time.Duration
	AllocatedBytes  uint64
	BytesSaved      uint64
	Rejected        int
	OverBudget      bool
	Batches         int
	SyncPoints      int
	CriticalPathGPU time.Duration
	GPUUtilization  float64
}

// PlanCompiled records the outcome of a compilation.
func (m *Metrics) PlanCompiled(s PlanStats) {
	if m == nil {
		return
	}
	m.compileDuration.Observe(s.Compile.Seconds())
	m.allocatedBytes.Set(float64(s.AllocatedBytes))
	m.aliasBytesSaved.Set(float64(s.BytesSaved))
	m.aliasRejectedTotal.Add(float64(s.Rejected))
	if s.OverBudget {
		m.overBudgetTotal.Inc()
	}
	m.batches.Set(float64(s.Batches))
	m.syncPoints.Set(float64(s.SyncPoints))
	m.criticalPathSeconds.Set(s.CriticalPathGPU.Seconds())
	m.gpuUtilization.Set(s.GPUUtilization)
}

// PassRecorded observes the CPU time of one pass instance.
func (m *Metrics) PassRecorded(pass string, cpu time.Duration) {
	if m == nil {
		return
	}
	m.passCPUSeconds.WithLabelValues(pass).Observe(cpu.Seconds())
}

// FrameExecuted counts a frame and observes its duration.
func (m *Metrics) FrameExecuted(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.framesTotal.WithLabelValues(result).Inc()
	m.frameDuration.Observe(d.Seconds())
}
