// Package integration_tests drives frame descriptions through the whole
// render graph stack: HCL loading, the producer, the compiler and the
// execution coordinator on the in-memory device. Each subdirectory groups
// one area of behavior.
package integration_tests
