// Package gpu defines the collaborator surface the render graph core talks
// to: command recording, submission, descriptor/resource registration,
// deferred reclamation and presentation.
//
// The core never implements a GPU API itself. A backend supplies these
// interfaces; internal/nullgpu is the in-memory reference implementation
// used by tests and the CLI.
//
// # Threading
//
// CommandRecorder instances are used by exactly one recording goroutine.
// Device.NewRecorder and DescriptorRegistry methods may be called from
// several goroutines and must be safe for concurrent use. Submission,
// reclamation and presentation happen on the coordinating goroutine only.
package gpu
