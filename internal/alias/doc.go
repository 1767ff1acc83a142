// Package alias computes resource lifetimes over a final execution order and
// packs transient resources with disjoint lifetimes into shared physical
// memory pages.
//
// Lifetimes are inclusive position intervals in the flattened execution
// order, after per-view expansion. Frame-local resources span the whole
// frame. Two resources may share a page only if they belong to the same
// Class (heap, format class, usage) and their intervals never overlap.
//
// Packing is first-fit by descending size. Before a resource joins a page
// every resident is checked against the shared/per-view hazard rule: a
// shared resource may not share memory with a per-view resource that is
// still read by a per-view pass at or after the shared resource's first
// write. Rejected candidates fall back to a separate page and are counted.
//
// Aliasing is opt-in. When disabled every resource gets its own page,
// which keeps the rest of the pipeline uniform.
package alias
