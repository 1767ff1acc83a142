// Package config defines the format-agnostic frame description model and
// the interfaces (Loader, Converter) for loading it from various sources.
//
// A `config.Model` describes the settings, views, resources and modules of
// a renderer. The producer package turns it into render graph declarations;
// concrete loaders, such as the HCL one, live in separate packages.
package config
