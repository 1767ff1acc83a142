package graph

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrBuild marks every error returned by Builder.Build.
	ErrBuild = errors.New("render graph build failed")
	// ErrCycle marks a dependency cycle among pass instances.
	ErrCycle = errors.New("dependency cycle")
)

// DeclarationError is a misuse of the Builder API recorded while declaring
// a pass or resource. Declaration errors are collected and reported
// together by Build.
type DeclarationError struct {
	Pass     PassHandle
	Resource ResourceHandle
	Name     string
	Reason   string
}

func (e *DeclarationError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// DeclarationErrors aggregates every DeclarationError seen by a Builder.
type DeclarationErrors []*DeclarationError

func (e DeclarationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, d := range e {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("%d declaration error(s): %s", len(e), strings.Join(msgs, "; "))
}

// CycleError reports the shortest dependency cycle found among pass
// instances. Passes lists the distinct logical passes on the cycle in
// cycle order.
type CycleError struct {
	Passes    []PassHandle
	Names     []string
	Instances []InstanceID
}

func (e *CycleError) Error() string {
	path := append(append([]string(nil), e.Names...), e.Names[0])
	return fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> "))
}
