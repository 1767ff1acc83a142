package nullgpu

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/gpu"
)

// Op names a recorded command.
type Op string

const (
	OpBarrier         Op = "barrier"
	OpAliasingBarrier Op = "aliasing_barrier"
	OpDraw            Op = "draw"
	OpDrawIndexed     Op = "draw_indexed"
	OpDispatch        Op = "dispatch"
	OpCopy            Op = "copy"
	OpClear           Op = "clear"
	OpBeginMarker     Op = "begin_marker"
	OpEndMarker       Op = "end_marker"
)

// Command is one recorded command.
type Command struct {
	Op     Op
	Slot   gpu.DescriptorSlot
	Other  gpu.DescriptorSlot
	Before gpu.ResourceState
	After  gpu.ResourceState
	Args   [3]uint32
	Label  string
}

// Recorder captures commands for one pass instance.
type Recorder struct {
	queue  gpu.QueueType
	name   string
	cmds   []Command
	closed bool
	cost   time.Duration
}

var _ gpu.CommandRecorder = (*Recorder)(nil)

func (r *Recorder) add(c Command) {
	if r.closed {
		return
	}
	r.cmds = append(r.cmds, c)
}

func (r *Recorder) Queue() gpu.QueueType { return r.queue }

func (r *Recorder) Barrier(slot gpu.DescriptorSlot, before, after gpu.ResourceState) {
	r.add(Command{Op: OpBarrier, Slot: slot, Before: before, After: after})
}

func (r *Recorder) AliasingBarrier(before, after gpu.DescriptorSlot) {
	r.add(Command{Op: OpAliasingBarrier, Slot: after, Other: before})
}

func (r *Recorder) Draw(vertexCount, instanceCount uint32) {
	r.add(Command{Op: OpDraw, Args: [3]uint32{vertexCount, instanceCount}})
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount uint32) {
	r.add(Command{Op: OpDrawIndexed, Args: [3]uint32{indexCount, instanceCount}})
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	r.add(Command{Op: OpDispatch, Args: [3]uint32{x, y, z}})
}

func (r *Recorder) Copy(dst, src gpu.DescriptorSlot) {
	r.add(Command{Op: OpCopy, Slot: dst, Other: src})
}

func (r *Recorder) Clear(slot gpu.DescriptorSlot, _ [4]float32) {
	r.add(Command{Op: OpClear, Slot: slot})
}

func (r *Recorder) BeginMarker(label string) { r.add(Command{Op: OpBeginMarker, Label: label}) }

func (r *Recorder) EndMarker() { r.add(Command{Op: OpEndMarker}) }

// Close freezes the recorder into a List.
func (r *Recorder) Close() (gpu.CommandList, error) {
	if r.closed {
		return nil, errors.Newf("recorder %q already closed", r.name)
	}
	r.closed = true
	return &List{queue: r.queue, name: r.name, Commands: r.cmds, gpuTime: time.Duration(len(r.cmds)) * r.cost}, nil
}

// List is a closed command list.
type List struct {
	queue    gpu.QueueType
	name     string
	Commands []Command
	gpuTime  time.Duration
}

func (l *List) Queue() gpu.QueueType { return l.queue }

func (l *List) DebugName() string { return l.name }

// Count returns how many commands of op the list holds.
func (l *List) Count(op Op) int {
	n := 0
	for _, c := range l.Commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Device accepts submissions and simulates queue timelines. By default a
// submission completes immediately; with manual completion the caller
// advances fences through Complete.
type Device struct {
	// CommandCost is the simulated GPU time per recorded command.
	CommandCost time.Duration

	mu          sync.Mutex
	manual      bool
	submitted   [gpu.QueueCount]uint64
	completed   [gpu.QueueCount]uint64
	submissions []gpu.Submission
}

var (
	_ gpu.Device       = (*Device)(nil)
	_ gpu.TimingSource = (*Device)(nil)
)

// NewDevice returns a device that completes work on submission.
func NewDevice() *Device {
	return &Device{CommandCost: time.Microsecond}
}

// SetManualCompletion switches between immediate and manual completion.
func (d *Device) SetManualCompletion(manual bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.manual = manual
}

// NewRecorder implements gpu.Device.
func (d *Device) NewRecorder(queue gpu.QueueType, debugName string) (gpu.CommandRecorder, error) {
	if int(queue) >= gpu.QueueCount {
		return nil, errors.Newf("unknown queue %s", queue)
	}
	return &Recorder{queue: queue, name: debugName, cost: d.CommandCost}, nil
}

// Submit implements gpu.Device. Every wait must reference a fence value
// that has already been submitted, and signals must increase per queue.
func (d *Device) Submit(ctx context.Context, s gpu.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, l := range s.Lists {
		if l.Queue() != s.Queue {
			return errors.Newf("list %q recorded for %s submitted to %s", l.DebugName(), l.Queue(), s.Queue)
		}
	}
	for _, w := range s.Waits {
		if w.Value > d.submitted[w.Queue] {
			return errors.Newf("%s waits on %s which was never submitted", s.Queue, w)
		}
	}
	if s.Signal.Queue != s.Queue {
		return errors.Newf("%s cannot signal a fence on %s", s.Queue, s.Signal.Queue)
	}
	if s.Signal.Value <= d.submitted[s.Queue] {
		return errors.Newf("signal %s does not advance past %d", s.Signal, d.submitted[s.Queue])
	}
	d.submitted[s.Queue] = s.Signal.Value
	if !d.manual {
		d.completed[s.Queue] = s.Signal.Value
	}
	d.submissions = append(d.submissions, s)
	return nil
}

// CompletedValue implements gpu.Device.
func (d *Device) CompletedValue(queue gpu.QueueType) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed[queue]
}

// SubmittedValue returns the last fence value submitted on queue.
func (d *Device) SubmittedValue(queue gpu.QueueType) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted[queue]
}

// Complete marks queue as finished up to value in manual mode.
func (d *Device) Complete(queue gpu.QueueType, value uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed[queue] = min(max(d.completed[queue], value), d.submitted[queue])
}

// CompleteAll finishes every submitted fence.
func (d *Device) CompleteAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = d.submitted
}

// Submissions returns every accepted submission in order.
func (d *Device) Submissions() []gpu.Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.Submission(nil), d.submissions...)
}

// ResetSubmissions forgets recorded submissions but keeps fence state.
func (d *Device) ResetSubmissions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
}

// GPUTime implements gpu.TimingSource.
func (d *Device) GPUTime(list gpu.CommandList) (time.Duration, bool) {
	l, ok := list.(*List)
	if !ok {
		return 0, false
	}
	return l.gpuTime, true
}
