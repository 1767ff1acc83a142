/*
Package cache memoizes built render graphs and compiled plans.

Keys are derived from a deterministic structural hash. Hashing uses 64-bit
FNV-1a over length-prefixed fields so results are identical across
processes and machines; Go's map iteration order and runtime hash seeds
never take part. Declarations are folded in name order, and viewports in
canonical (width, height, x, y) order, so reordering an equivalent set does
not cause a miss.

Two keys are used:

	GraphKey{ViewCount, ViewportsHash, ModulesHash, SettingsHash}
	PlanKey{GraphHash, MemoryBudget, ThreadCount}

Entries live in an LRU bounded by both entry count and estimated bytes.
When either bound is exceeded the least recently used quarter of the
entries (at least one) is evicted, and the eviction callback runs for each.
*/
package cache
