package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Validate checks that every registered executor is complete and that each
// tagged input field has a Go type arguments can be decoded into.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Names() {
		e := r.executors[name]
		if e.NewInput == nil || e.Build == nil {
			errs = append(errs, fmt.Sprintf("executor '%s': NewInput and Build are required", name))
			continue
		}

		input := reflect.TypeOf(e.NewInput())
		if input == nil || input.Kind() != reflect.Ptr || input.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Sprintf("executor '%s': NewInput must return a pointer to a struct, got %v", name, input))
			continue
		}

		seen := make(map[string]string)
		for i := 0; i < input.Elem().NumField(); i++ {
			field := input.Elem().Field(i)
			tag := field.Tag.Get("cty")
			if !field.IsExported() || tag == "" || tag == "-" {
				continue
			}
			arg, _, _ := strings.Cut(tag, ",")
			if prev, dup := seen[arg]; dup {
				errs = append(errs, fmt.Sprintf("executor '%s': fields %s and %s both bind argument '%s'", name, prev, field.Name, arg))
			}
			seen[arg] = field.Name

			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("executor '%s', argument '%s': could not imply cty type from Go field type %s: %v", name, arg, field.Type, err))
			}
		}
		logger.Debug("Validated executor.", "name", name, "arguments", len(seen))
	}

	if len(errs) > 0 {
		return errors.Newf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
