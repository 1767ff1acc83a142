package executor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/specialistvlad/rendergraph/internal/compiler"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/metrics"
	"github.com/specialistvlad/rendergraph/internal/profiler"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrExecutor marks frames aborted because a pass executor failed or
// panicked. Nothing of such a frame is submitted.
var ErrExecutor = errors.New("pass executor failed")

// Options configures a Coordinator.
type Options struct {
	Device gpu.Device
	// Surface supplies back buffers; only needed by graphs that import one.
	Surface  gpu.Surface
	Profiler *profiler.Profiler
	Metrics  *metrics.Metrics
	// Workers bounds concurrent recording. Defaults to GOMAXPROCS.
	Workers int
}

// PassTiming is the measured cost of one pass instance.
type PassTiming struct {
	Instance graph.InstanceID
	Name     string
	CPU      time.Duration
	GPU      time.Duration
}

// FrameResult summarizes an executed frame.
type FrameResult struct {
	Frame uint64
	Plan  uuid.UUID
	// Timings follow the plan's execution order.
	Timings     []PassTiming
	Submissions int
	// Fences are the absolute values each queue signaled last.
	Fences   [gpu.QueueCount]uint64
	Duration time.Duration
}

// Coordinator executes plans on a device. Execute calls must not overlap.
type Coordinator struct {
	opts Options
	sem  *semaphore.Weighted

	mu       sync.Mutex
	signaled [gpu.QueueCount]uint64
}

// New creates a Coordinator. Device is required.
func New(opts Options) (*Coordinator, error) {
	if opts.Device == nil {
		return nil, errors.New("coordinator needs a device")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Coordinator{opts: opts, sem: semaphore.NewWeighted(int64(opts.Workers))}, nil
}

// Workers returns the recording parallelism.
func (c *Coordinator) Workers() int { return c.opts.Workers }

type recorded struct {
	list gpu.CommandList
	cpu  time.Duration
}

// Execute records and submits one frame of plan. frame must have the
// view count the plan was compiled for; nil is a frame without views.
func (c *Coordinator) Execute(ctx context.Context, plan *compiler.Plan, frame *graph.FrameContext) (*FrameResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := hrtime.Now()
	res, err := c.execute(ctx, plan, frame)
	elapsed := hrtime.Since(start)
	c.opts.Metrics.FrameExecuted(elapsed, err)
	if err != nil {
		return nil, err
	}
	res.Duration = elapsed
	return res, nil
}

func (c *Coordinator) execute(ctx context.Context, plan *compiler.Plan, frame *graph.FrameContext) (*FrameResult, error) {
	if frame == nil {
		frame = &graph.FrameContext{}
	}
	g := plan.Graph
	if frame.ViewCount() != g.ViewCount() {
		return nil, errors.Newf("frame has %d views, plan was compiled for %d", frame.ViewCount(), g.ViewCount())
	}
	logger := ctxlog.FromContext(ctx).With("frame", frame.FrameIndex, "plan", plan.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	slots, err := c.resolveSlots(plan, frame)
	if err != nil {
		return nil, err
	}

	lists := make([]recorded, len(g.Instances()))
	for _, batch := range plan.Schedule.Batches {
		if err := c.recordBatch(ctx, plan, frame, slots, batch.Instances, lists); err != nil {
			logger.Error("frame recording aborted", "batch", batch.Index, "error", err)
			return nil, err
		}
	}

	base := c.signaled
	res := &FrameResult{Frame: frame.FrameIndex, Plan: plan.ID}
	if err := c.submit(ctx, plan, lists, base, res); err != nil {
		return nil, err
	}
	plan.MarkExecuted(frame.FrameIndex, base)

	if err := c.present(ctx, plan, frame); err != nil {
		return nil, err
	}

	c.collectTimings(plan, lists, res)
	logger.Debug("frame executed", "instances", len(res.Timings), "submissions", res.Submissions)
	return res, nil
}

// resolveSlots acquires the frame's back buffers and returns the slot of
// every resource instance.
func (c *Coordinator) resolveSlots(plan *compiler.Plan, frame *graph.FrameContext) ([]gpu.DescriptorSlot, error) {
	slots := make([]gpu.DescriptorSlot, len(plan.Slots))
	copy(slots, plan.Slots)
	for _, ri := range plan.Graph.ResourceInstances() {
		if !ri.Decl.BackBuffer || (len(ri.Writers) == 0 && len(ri.Readers) == 0) {
			continue
		}
		if c.opts.Surface == nil {
			return nil, errors.Newf("%s needs a surface", ri.Name())
		}
		slot, err := c.opts.Surface.Acquire(viewTarget(frame, ri.ViewIndex))
		if err != nil {
			return nil, errors.Wrapf(err, "acquiring %s", ri.Name())
		}
		slots[ri.ID] = slot
	}
	return slots, nil
}

func viewTarget(frame *graph.FrameContext, view int) string {
	v := frame.Views[view]
	if v.Target != "" {
		return v.Target
	}
	return v.Name
}

func (c *Coordinator) recordBatch(ctx context.Context, plan *compiler.Plan, frame *graph.FrameContext, slots []gpu.DescriptorSlot, batch []graph.InstanceID, out []recorded) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, id := range batch {
		if err := c.sem.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer c.sem.Release(1)
			r, err := c.record(egCtx, plan, frame, slots, plan.Graph.Instance(id))
			if err != nil {
				return err
			}
			out[id] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// record runs one pass instance on a fresh recorder.
func (c *Coordinator) record(ctx context.Context, plan *compiler.Plan, frame *graph.FrameContext, slots []gpu.DescriptorSlot, inst *graph.PassInstance) (r recorded, err error) {
	name := inst.Name()
	if err := ctx.Err(); err != nil {
		return r, err
	}
	rec, err := c.opts.Device.NewRecorder(inst.Queue(), name)
	if err != nil {
		return r, errors.Wrapf(err, "creating recorder for %s", name)
	}

	pp := plan.Passes[inst.ID]
	rec.BeginMarker(name)
	for _, ab := range pp.AliasBarriers {
		rec.AliasingBarrier(slots[ab.Before], slots[ab.After])
	}
	for _, t := range pp.Before {
		rec.Barrier(slots[t.Resource], t.Before, t.After)
	}

	tc := graph.NewTaskExecutionContext(graph.TaskBinding{
		Recorder: rec,
		Instance: inst,
		Frame:    frame,
		Reads:    bindSlots(inst.Reads, slots),
		Writes:   bindSlots(inst.Writes, slots),
		Logger:   ctxlog.FromContext(ctx).With("pass", name),
	})
	start := hrtime.Now()
	if err := runExecutor(inst, tc); err != nil {
		return r, err
	}
	r.cpu = hrtime.Since(start)

	for _, t := range pp.After {
		rec.Barrier(slots[t.Resource], t.Before, t.After)
	}
	rec.EndMarker()
	if r.list, err = rec.Close(); err != nil {
		return r, errors.Wrapf(err, "closing recorder for %s", name)
	}
	return r, nil
}

func runExecutor(inst *graph.PassInstance, tc *graph.TaskExecutionContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Mark(errors.Newf("pass %s panicked: %v", inst.Name(), p), ErrExecutor)
		}
	}()
	if err := inst.Decl.Executor(tc); err != nil {
		return errors.Mark(errors.Wrapf(err, "pass %s", inst.Name()), ErrExecutor)
	}
	return nil
}

func bindSlots(accesses []graph.BoundAccess, slots []gpu.DescriptorSlot) [][]gpu.DescriptorSlot {
	out := make([][]gpu.DescriptorSlot, len(accesses))
	for i, a := range accesses {
		out[i] = make([]gpu.DescriptorSlot, len(a.Instances))
		for j, ri := range a.Instances {
			out[i][j] = slots[ri]
		}
	}
	return out
}

// submit sends the recorded lists per batch and queue, offsetting the
// plan's relative fences by base.
func (c *Coordinator) submit(ctx context.Context, plan *compiler.Plan, lists []recorded, base [gpu.QueueCount]uint64, res *FrameResult) error {
	sched := plan.Schedule
	for _, batch := range sched.Batches {
		for _, q := range gpu.AllQueues {
			s := gpu.Submission{Queue: q}
			for _, id := range batch.Instances {
				if sched.Queue[id] != q {
					continue
				}
				s.Lists = append(s.Lists, lists[id].list)
				s.Signal = gpu.Fence{Queue: q, Value: base[q] + sched.Signal[id]}
			}
			if len(s.Lists) == 0 {
				continue
			}
			for _, w := range plan.WaitsFor(batch.Index, q) {
				s.Waits = append(s.Waits, gpu.Fence{Queue: w.Queue, Value: base[w.Queue] + w.Value})
			}
			if err := c.opts.Device.Submit(ctx, s); err != nil {
				return errors.Wrapf(err, "submitting batch %d to %s", batch.Index, q)
			}
			c.signaled[q] = s.Signal.Value
			res.Submissions++
		}
	}
	res.Fences = c.signaled
	return nil
}

func (c *Coordinator) present(ctx context.Context, plan *compiler.Plan, frame *graph.FrameContext) error {
	for _, id := range plan.Presents {
		ri := plan.Graph.ResourceInstance(id)
		if err := c.opts.Surface.Present(ctx, viewTarget(frame, ri.ViewIndex)); err != nil {
			return errors.Wrapf(err, "presenting %s", ri.Name())
		}
	}
	return nil
}

// collectTimings gathers per-instance costs and feeds the profiler. GPU
// times are only known when the device reports them.
func (c *Coordinator) collectTimings(plan *compiler.Plan, lists []recorded, res *FrameResult) {
	timing, _ := c.opts.Device.(gpu.TimingSource)
	for _, id := range plan.Schedule.Order {
		inst := plan.Graph.Instance(id)
		pt := PassTiming{Instance: id, Name: inst.Name(), CPU: lists[id].cpu}
		if timing != nil {
			pt.GPU, _ = timing.GPUTime(lists[id].list)
		}
		res.Timings = append(res.Timings, pt)

		c.opts.Metrics.PassRecorded(inst.Decl.Name, pt.CPU)
		if c.opts.Profiler != nil {
			c.opts.Profiler.RecordPassExecution(inst.Decl.Name, pt.CPU, pt.GPU, writtenBytes(plan.Graph, inst))
		}
	}
}

func writtenBytes(g *graph.RenderGraph, inst *graph.PassInstance) uint64 {
	var total uint64
	for _, a := range inst.Writes {
		for _, ri := range a.Instances {
			if d := g.ResourceInstance(ri).Decl; !d.Imported {
				total += d.SizeBytes()
			}
		}
	}
	return total
}
