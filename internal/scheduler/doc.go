// Package scheduler turns a validated render graph into an ordered,
// batched, multi-queue execution plan.
//
// # How It Works
//
// Scheduling is a level-by-level walk of the dependency graph:
//  1. Every instance whose dependencies are all in earlier batches is ready.
//  2. Ready instances are ordered by declared priority (descending), then
//     estimated GPU cost (descending), then declaration order, so expensive
//     GPU work is issued as early as the graph allows.
//  3. Up to Threads instances (unbounded when zero) form the next batch.
//  4. Every queue with work in a batch advances its fence counter once; the
//     instance's signal value is that counter.
//  5. A consumer on queue A that depends on a producer on queue B≠A gets a
//     SyncPoint on the producer's fence value, keyed by the resource that
//     links them.
//
// The critical path is the longest chain of cumulative GPU cost. CPU and
// GPU utilization figures are advisory and never gate correctness.
//
// Costs come from a CostSource. The profiler implements it; StaticCosts
// returns the declared estimates unchanged.
package scheduler
