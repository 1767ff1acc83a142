// Package graph is the declaration and construction layer of the render
// graph. Producers (engine modules) declare logical resources and passes on
// a Builder in any order; Build expands per-view passes against the frame's
// active views, resolves explicit and resource-derived dependencies into
// edges, rejects cycles, and freezes the result into a RenderGraph.
//
// # Handles
//
// Passes and resources are addressed by ResourceHandle and PassHandle,
// opaque generation-checked identifiers (see internal/handle). Names are
// carried for diagnostics only and never take part in dependency
// resolution.
//
// # Dependency model
//
// Edges come from two sources:
//   - DependsOn: explicit pass-to-pass ordering. Between two per-view passes
//     the edge only links instances bound to the same view.
//   - Resource access: every writer of a resource instance is ordered after
//     the previous writer in declaration order, and every pure reader is
//     ordered after the last writer. Declaration order therefore matters
//     only between multiple writers of the same resource.
//
// # Threading
//
// A Builder is not safe for concurrent use. Producers that declare in
// parallel must build local declaration lists and merge them into the
// Builder from one goroutine. A built RenderGraph is immutable and may be
// read from any number of goroutines.
package graph
