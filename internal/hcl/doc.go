// Package hcl provides the concrete HCL implementation of the configuration
// loading and data conversion interfaces defined in the `config` package.
// It is responsible for file discovery and parsing, HCL-to-model
// translation, and CTY-to-Go binding of executor arguments.
//
// # How It Works
//
// Every `.hcl` file found under the given paths is parsed and decoded into
// the `schema.File` root. Blocks from all files are merged into one
// `config.Model`, so a renderer can be split into a file per module.
//
// Resources are referenced with HCL traversals instead of strings:
//
//	pass "lighting" {
//	  read {
//	    resource = texture.gbuffer_albedo
//	  }
//	  write {
//	    resource = back_buffer.main
//	  }
//	  depends_on = [pass.shadows]
//	}
//
// References are resolved once all files are merged, and a reference to a
// block that does not exist fails the load. Executor `arguments` are
// evaluated to cty values at load time and decoded into the executor's Go
// input struct by the Converter.
package hcl
