// Package executor runs compiled plans: it records every pass instance's
// commands in parallel and submits them to the device in order.
//
// # How It Works
//
// Execute walks the plan's batches. Within a batch every instance is
// recorded on its own goroutine, bounded by the worker count: a fresh
// recorder receives a debug marker, the planned aliasing barriers and
// transitions, the executor's commands and the closing transitions. An
// executor that fails or panics cancels the rest of the frame and nothing
// is submitted.
//
// Once every batch has been recorded, the lists are submitted per batch
// and per queue. Each submission waits on the fences its batch depends on
// and signals the queue's fence for the batch. Fence values in a plan are
// relative; the coordinator offsets them by what it signaled in earlier
// frames. Back buffers written during the frame are then presented, and
// the measured timings are fed to the profiler.
package executor
