package config

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter binds raw executor arguments to the Go input structs of
// registered executors.
type Converter interface {
	// DecodeArguments populates the exported fields of input, a pointer to
	// a struct, from args. Fields are matched by their `cty` tag. Fields
	// without an argument keep their current value; arguments without a
	// field are an error.
	DecodeArguments(ctx context.Context, input any, args map[string]cty.Value) error
}
