// Package nullgpu is an in-memory backend implementing the gpu collaborator
// interfaces. Recorders capture commands into inspectable lists, the device
// tracks per-queue fences and checks that every wait refers to an already
// submitted signal, and the registry hands out monotonic descriptor slots.
//
// It backs the CLI's dry runs and the package tests of the compiler and
// executor.
package nullgpu
