package compiler

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/specialistvlad/rendergraph/internal/alias"
	"github.com/specialistvlad/rendergraph/internal/cache"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/metrics"
	"github.com/specialistvlad/rendergraph/internal/scheduler"
	"github.com/specialistvlad/rendergraph/internal/validate"
)

// Policy decides what happens when validation reports errors.
type Policy uint8

const (
	// PolicyAbort fails the compilation.
	PolicyAbort Policy = iota
	// PolicyBestEffort logs the errors and compiles anyway.
	PolicyBestEffort
)

func (p Policy) String() string {
	if p == PolicyBestEffort {
		return "best-effort"
	}
	return "abort"
}

// ParsePolicy converts a flag or configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "abort":
		return PolicyAbort, nil
	case "best-effort", "best_effort":
		return PolicyBestEffort, nil
	}
	return PolicyAbort, fmt.Errorf("unknown validation policy %q", s)
}

// Settings are the graphics settings that shape compilation.
type Settings struct {
	Aliasing bool
	// MemoryBudget in bytes; zero means unlimited.
	MemoryBudget uint64
	// Threads bounds recording parallelism and batch width.
	Threads    int
	Validation Policy
	// Graphics holds further user settings that change the declared
	// graph, e.g. a shadow quality level. They only feed the cache key.
	Graphics map[string]string
}

func (s Settings) hash() uint64 {
	m := maps.Clone(s.Graphics)
	if m == nil {
		m = make(map[string]string, 2)
	}
	m["rendergraph.aliasing"] = strconv.FormatBool(s.Aliasing)
	m["rendergraph.validation"] = s.Validation.String()
	return cache.SettingsHash(m)
}

// Options configures a Compiler.
type Options struct {
	Settings  Settings
	Registry  gpu.DescriptorRegistry
	Reclaimer gpu.Reclaimer
	// Costs refines declared pass costs; usually the profiler.
	Costs   scheduler.CostSource
	Metrics *metrics.Metrics
	// ExplicitPresent plans a transition of every written back buffer
	// into the present state.
	ExplicitPresent bool

	GraphCacheEntries int
	PlanCacheEntries  int
	// PlanCacheBytes bounds the memory held by cached plans; zero means
	// unlimited.
	PlanCacheBytes uint64
	// ReplanInterval recompiles a cached plan after it executed this many
	// frames, so refined costs reach the scheduler. Zero disables it.
	ReplanInterval int
}

// Request is one frame's compilation input.
type Request struct {
	Frame *graph.FrameContext
	// ModulesHash identifies the active module configuration. When zero it
	// is derived from the declarations, which then run on every call.
	ModulesHash uint64
	// Declare records the frame's resources and passes. It only runs on a
	// graph cache miss when ModulesHash is set.
	Declare func(b *graph.Builder) error
}

type graphEntry struct {
	graph    *graph.RenderGraph
	findings []validate.Error
}

// Compiler compiles and caches frame plans.
type Compiler struct {
	opts         Options
	settingsHash uint64

	mu      sync.Mutex
	graphs  *cache.LRU[cache.GraphKey, *graphEntry]
	plans   *cache.LRU[cache.PlanKey, *Plan]
	evicted []*Plan
}

// New creates a Compiler. Registry and Reclaimer are required.
func New(opts Options) (*Compiler, error) {
	if opts.Registry == nil {
		return nil, errors.New("compiler needs a descriptor registry")
	}
	if opts.Reclaimer == nil {
		return nil, errors.New("compiler needs a reclaimer")
	}
	if opts.Costs == nil {
		opts.Costs = scheduler.StaticCosts{}
	}
	if opts.GraphCacheEntries <= 0 {
		opts.GraphCacheEntries = 16
	}
	if opts.PlanCacheEntries <= 0 {
		opts.PlanCacheEntries = 8
	}

	c := &Compiler{opts: opts, settingsHash: opts.Settings.hash()}
	c.graphs = cache.NewLRU(opts.GraphCacheEntries, 0, func(cache.GraphKey, *graphEntry) {
		c.opts.Metrics.CacheEviction("graph")
	})
	c.plans = cache.NewLRU(opts.PlanCacheEntries, opts.PlanCacheBytes, func(_ cache.PlanKey, p *Plan) {
		c.opts.Metrics.CacheEviction("plan")
		c.evicted = append(c.evicted, p)
	})
	return c, nil
}

// Settings returns the settings the compiler was created with.
func (c *Compiler) Settings() Settings { return c.opts.Settings }

// Compile returns the plan for the request, compiling it on a cache miss.
// The returned plan stays valid until the next Compile or Close call.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Declare == nil {
		return nil, errors.New("compile request has no declarations")
	}
	key := cache.GraphKey{
		ViewCount:     req.Frame.ViewCount(),
		ViewportsHash: cache.FrameViewportsHash(req.Frame),
		ModulesHash:   req.ModulesHash,
		SettingsHash:  c.settingsHash,
	}
	var b *graph.Builder
	if key.ModulesHash == 0 {
		b = graph.NewBuilder()
		if err := req.Declare(b); err != nil {
			return nil, errors.Wrap(err, "declaring render graph")
		}
		key.ModulesHash = cache.DeclarationsHash(b)
	}

	entry, hit := c.graphs.Get(key)
	c.opts.Metrics.CacheLookup("graph", hit)
	if !hit {
		var err error
		if entry, err = c.buildGraph(ctx, key, b, req); err != nil {
			return nil, err
		}
	}

	pk := cache.PlanKey{GraphHash: key.Hash(), MemoryBudget: c.opts.Settings.MemoryBudget, ThreadCount: c.opts.Settings.Threads}
	plan, hit := c.plans.Get(pk)
	if hit && c.opts.ReplanInterval > 0 && plan.Uses() >= c.opts.ReplanInterval {
		ctxlog.FromContext(ctx).Debug("replanning with refined costs", "plan", plan.ID, "uses", plan.Uses())
		c.plans.Remove(pk)
		c.evicted = append(c.evicted, plan)
		hit = false
	}
	c.opts.Metrics.CacheLookup("plan", hit)
	if !hit {
		var err error
		if plan, err = c.compilePlan(ctx, key, pk, entry); err != nil {
			c.retireEvicted(ctx, nil)
			return nil, err
		}
		c.plans.Put(pk, plan, plan.footprint())
	}
	c.retireEvicted(ctx, plan)
	return plan, nil
}

func (c *Compiler) buildGraph(ctx context.Context, key cache.GraphKey, b *graph.Builder, req Request) (*graphEntry, error) {
	logger := ctxlog.FromContext(ctx)
	if b == nil {
		b = graph.NewBuilder()
		if err := req.Declare(b); err != nil {
			return nil, errors.Wrap(err, "declaring render graph")
		}
	}
	g, err := b.Build(ctx, req.Frame)
	if err != nil {
		return nil, err
	}

	findings := validate.Validate(ctx, g, validate.Options{Aliasing: c.opts.Settings.Aliasing})
	for _, f := range findings {
		c.opts.Metrics.ValidationFinding(f.Kind.String(), f.Severity.String())
		if f.Severity == validate.SeverityWarning {
			logger.Warn("render graph validation warning", "kind", f.Kind, "description", f.Description)
		}
	}
	if validate.HasErrors(findings) {
		if c.opts.Settings.Validation == PolicyAbort {
			return nil, errors.Mark(&ValidationError{Findings: findings}, ErrValidation)
		}
		for _, f := range validate.Errors(findings) {
			logger.Warn("ignoring render graph validation error", "kind", f.Kind, "description", f.Description)
		}
	}

	entry := &graphEntry{graph: g, findings: findings}
	c.graphs.Put(key, entry, 0)
	return entry, nil
}

func (c *Compiler) compilePlan(ctx context.Context, key cache.GraphKey, pk cache.PlanKey, entry *graphEntry) (*Plan, error) {
	start := hrtime.Now()
	g := entry.graph
	settings := c.opts.Settings

	sched, err := scheduler.Schedule(ctx, g, scheduler.Options{Threads: settings.Threads, Costs: c.opts.Costs})
	if err != nil {
		return nil, err
	}
	mem := alias.Optimize(ctx, g, sched.Order, alias.Options{
		Enabled:      settings.Aliasing,
		MemoryBudget: settings.MemoryBudget,
		CriticalPath: sched.CriticalPath,
		Positions:    sched.BatchOf,
	})

	plan := &Plan{
		ID:       uuid.New(),
		Key:      pk,
		GraphKey: key,
		Graph:    g,
		Schedule: sched,
		Memory:   mem,
		Findings: entry.findings,
	}
	plan.planBarriers(c.opts.ExplicitPresent)
	if err := plan.allocate(c.opts.Registry); err != nil {
		return nil, err
	}
	plan.CompileTime = hrtime.Since(start)

	c.opts.Metrics.PlanCompiled(metrics.PlanStats{
		Compile:         plan.CompileTime,
		AllocatedBytes:  mem.AllocatedBytes,
		BytesSaved:      mem.BytesSaved(),
		Rejected:        mem.Rejected,
		OverBudget:      mem.OverBudget,
		Batches:         len(sched.Batches),
		SyncPoints:      len(sched.SyncPoints),
		CriticalPathGPU: sched.CriticalPathGPU,
		GPUUtilization:  sched.GPUUtilization,
	})
	ctxlog.FromContext(ctx).Info("render graph compiled",
		"plan", plan.ID,
		"instances", len(g.Instances()),
		"batches", len(sched.Batches),
		"pages", len(plan.Pages),
		"allocated", mem.AllocatedBytes,
		"saved", mem.BytesSaved(),
		"duration", plan.CompileTime,
	)
	return plan, nil
}

// retireEvicted hands every evicted plan except keep to the reclaimer.
func (c *Compiler) retireEvicted(ctx context.Context, keep *Plan) {
	kept := c.evicted[:0]
	for _, p := range c.evicted {
		if p == keep {
			kept = append(kept, p)
			continue
		}
		for _, r := range p.Retirements() {
			c.opts.Reclaimer.DeferRelease(r)
		}
		ctxlog.FromContext(ctx).Debug("retired render graph plan", "plan", p.ID, "pages", len(p.Pages))
	}
	c.evicted = kept
}

// Invalidate drops every cached graph and plan, e.g. after a device
// reset. Plans are retired as if evicted.
func (c *Compiler) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs.Purge()
	c.plans.Purge()
	c.retireEvicted(ctx, nil)
}

// Close retires every cached plan.
func (c *Compiler) Close(ctx context.Context) {
	c.Invalidate(ctx)
}

// GraphCacheStats returns the graph cache counters.
func (c *Compiler) GraphCacheStats() cache.Stats { return c.graphs.Stats() }

// PlanCacheStats returns the plan cache counters.
func (c *Compiler) PlanCacheStats() cache.Stats { return c.plans.Stats() }
