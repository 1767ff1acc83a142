// Package registry provides the central "glue" between frame descriptions
// and Go code.
//
// The Registry maps the executor names used in pass blocks (e.g.
// `executor = "draw_list"`) to the compiled Go functions that record the
// pass. Executors are contributed by modules implementing Module; the
// application registers its core modules at startup and validates the
// result before any frame description is loaded.
package registry
