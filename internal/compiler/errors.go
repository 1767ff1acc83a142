package compiler

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/validate"
)

// ErrValidation marks compilations aborted by validation errors.
var ErrValidation = errors.New("render graph validation failed")

// ErrAllocation marks failures to obtain physical memory or descriptors.
var ErrAllocation = errors.New("resource allocation failed")

// ValidationError carries the findings that aborted a compilation.
type ValidationError struct {
	Findings []validate.Error
}

func (e *ValidationError) Error() string {
	errs := validate.Errors(e.Findings)
	return fmt.Sprintf("%d validation error(s): %s", len(errs), validate.Summarize(errs))
}
