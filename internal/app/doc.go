// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the frame loop, decoupled from any
// specific entrypoint like a CLI or server.
//
// # How It Works
//
// NewApp loads the frame description, registers the executor modules and
// wires the render graph stack on the in-memory reference device:
//
//	description -> producer -> compiler (graph and plan caches)
//	                              |
//	                              v
//	             coordinator (parallel recording, submission, present)
//	                              |
//	                              v
//	             profiler, metrics, telemetry, deferred reclamation
//
// Run then executes the configured number of frames. Every frame asks the
// producer for its views, compiles (usually a cache hit), executes, and
// collects the memory of retired plans whose fences completed.
package app
