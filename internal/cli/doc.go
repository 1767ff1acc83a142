// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into the application's internal configuration; flags
// that are not passed leave the frame description's settings untouched.
package cli
