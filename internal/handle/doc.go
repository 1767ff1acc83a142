/*
Package handle provides generation-checked identifiers backed by a dense
arena, used for the render graph's pass and resource identifier spaces.

An ID is a pair of (slot index, generation). The arena stores values in a
contiguous slice so iteration is cache friendly, and reuses freed slots.
Every time a slot is freed its generation is bumped, so a stale ID that
still points at a reused slot is detected instead of silently resolving to
the new occupant.

Debug names never live inside an ID: two IDs are equal only when they
refer to the same slot and generation.
*/
package handle
