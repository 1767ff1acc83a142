// Package validate runs static checks over a built render graph before it
// is scheduled. Checks run in a fixed order and every check walks the graph
// in declaration order, so validating the same graph twice yields the same
// list.
//
// Findings are collected rather than returned one at a time. Whether to
// abort compilation is the caller's decision; warnings never abort.
package validate
