// Package compiler turns a frame's declarations into an executable Plan.
//
// # How It Works
//
// Compile first looks the frame's structure up in the graph cache, keyed
// by view count, viewport dimensions, module configuration and graphics
// settings. On a miss the producer's declarations are built into a
// RenderGraph and validated. The graph is then looked up in the plan cache,
// keyed by the graph structure, the memory budget and the thread count. On
// a miss the graph is scheduled, its resources are packed into memory
// pages, barriers are planned in execution order and the pages are
// allocated through the descriptor registry.
//
// Plans own physical memory. When a plan leaves the cache its pages are
// retired through the Reclaimer with the fences of the last frame that
// used them, so memory is never released while the GPU may still read it.
//
// A Compiler is not safe for concurrent Compile calls; the frame loop
// compiles, executes and then compiles the next frame.
package compiler
