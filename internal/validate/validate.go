package validate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/rendergraph/internal/alias"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

// Kind classifies a validation finding.
type Kind uint8

const (
	ReadWithoutWrite Kind = iota
	WriteAfterRead
	PerViewWritesShared
	AliasIncompatible
	AliasLifetimeOverlap
	AliasScopeHazard
	UnreadWrite
)

var kindNames = map[Kind]string{
	ReadWithoutWrite:     "read_without_write",
	WriteAfterRead:       "write_after_read",
	PerViewWritesShared:  "per_view_writes_shared",
	AliasIncompatible:    "alias_incompatible",
	AliasLifetimeOverlap: "alias_lifetime_overlap",
	AliasScopeHazard:     "alias_scope_hazard",
	UnreadWrite:          "unread_write",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Severity separates findings that block compilation from advisories.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Error is one validation finding. Passes names the logical passes
// involved; per-view clones of the same pass are reported once.
type Error struct {
	Kind        Kind
	Severity    Severity
	Description string
	Passes      []graph.PassHandle
	Resources   []graph.ResourceHandle
}

func (e Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Severity, e.Kind, e.Description)
}

// Options configures Validate.
type Options struct {
	// Aliasing enables the alias request checks.
	Aliasing bool
}

// Validate checks g and returns every finding. The checks are, in order:
// reads without a prior writer, conflicting accesses, per-view passes
// writing shared resources, alias requests (when enabled) and unread
// writes.
func Validate(ctx context.Context, g *graph.RenderGraph, opts Options) []Error {
	v := &validator{g: g}
	v.readsWithoutWriter()
	v.writeAfterRead()
	v.perViewWritesShared()
	if opts.Aliasing {
		v.aliasRequests()
	}
	v.unreadWrites()

	if len(v.errs) > 0 {
		ctxlog.FromContext(ctx).Debug("render graph validation finished",
			"errors", len(Errors(v.errs)), "warnings", len(v.errs)-len(Errors(v.errs)))
	}
	return v.errs
}

// Errors filters out warnings.
func Errors(errs []Error) []Error {
	var out []Error
	for _, e := range errs {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []Error) bool {
	return slices.ContainsFunc(errs, func(e Error) bool { return e.Severity == SeverityError })
}

// Summarize joins the findings into a single line for logs and errors.
func Summarize(errs []Error) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

type validator struct {
	g    *graph.RenderGraph
	errs []Error
}

func (v *validator) add(kind Kind, sev Severity, passes []graph.PassHandle, resources []graph.ResourceHandle, format string, args ...any) {
	v.errs = append(v.errs, Error{
		Kind:        kind,
		Severity:    sev,
		Description: fmt.Sprintf(format, args...),
		Passes:      passes,
		Resources:   resources,
	})
}

// passesOf maps instances to distinct logical passes, keeping first-seen order.
func (v *validator) passesOf(ids []graph.InstanceID) ([]graph.PassHandle, []string) {
	var (
		handles []graph.PassHandle
		names   []string
	)
	for _, id := range ids {
		p := v.g.Instance(id).Decl
		if slices.Contains(handles, p.Handle) {
			continue
		}
		handles = append(handles, p.Handle)
		names = append(names, p.Name)
	}
	return handles, names
}

// readsWithoutWriter reports every logical (resource, pass) pair where the
// pass reads a graph-owned resource instance with no earlier writer.
func (v *validator) readsWithoutWriter() {
	for _, r := range v.g.Resources() {
		if r.Imported {
			continue
		}
		var offenders []graph.InstanceID
		for _, ri := range v.g.ResourceInstancesOf(r.Handle) {
			inst := v.g.ResourceInstance(ri)
			for _, rd := range inst.Readers {
				if !hasPriorWriter(inst, rd) {
					offenders = append(offenders, rd)
				}
			}
		}
		passes, names := v.passesOf(offenders)
		for i, p := range passes {
			v.add(ReadWithoutWrite, SeverityError, []graph.PassHandle{p}, []graph.ResourceHandle{r.Handle},
				"pass %q reads %q which is never written before it", names[i], r.Name)
		}
	}
}

func hasPriorWriter(ri *graph.ResourceInstance, reader graph.InstanceID) bool {
	idx := slices.Index(ri.Writers, reader)
	if idx < 0 {
		return len(ri.Writers) > 0
	}
	return idx > 0
}

// writeAfterRead reports resources a pass both reads and writes in
// different states without a transition in between. Accesses across
// passes need no check here: the build orders every writer of a resource
// instance and puts its readers after the last one.
func (v *validator) writeAfterRead() {
	for _, inst := range v.g.Instances() {
		for _, w := range inst.Writes {
			for _, r := range inst.Reads {
				if r.Resource != w.Resource || r.State == w.State {
					continue
				}
				if r.State == gpu.StateUnorderedAccess || w.State == gpu.StateUnorderedAccess {
					continue
				}
				decl, _ := v.g.Resource(w.Resource)
				if slices.ContainsFunc(v.errs, func(e Error) bool {
					return e.Kind == WriteAfterRead && e.Passes[0] == inst.Pass() && e.Resources[0] == w.Resource
				}) {
					continue
				}
				v.add(WriteAfterRead, SeverityError, []graph.PassHandle{inst.Pass()}, []graph.ResourceHandle{w.Resource},
					"pass %q reads %q as %s and writes it as %s in the same pass", inst.Decl.Name, decl.Name, r.State, w.State)
			}
		}
	}
}

// perViewWritesShared reports per-view passes writing a shared resource,
// which would race between the view clones.
func (v *validator) perViewWritesShared() {
	for _, p := range v.g.Passes() {
		if p.Scope != graph.ScopePerView {
			continue
		}
		for _, w := range p.Writes {
			r, _ := v.g.Resource(w.Resource)
			if r.Scope != graph.ScopeShared {
				continue
			}
			v.add(PerViewWritesShared, SeverityError, []graph.PassHandle{p.Handle}, []graph.ResourceHandle{r.Handle},
				"per-view pass %q writes shared resource %q", p.Name, r.Name)
		}
	}
}

// aliasRequests checks explicit alias requests against the format and
// lifetime rules and the shared/per-view hazard.
func (v *validator) aliasRequests() {
	order := v.g.TopologicalOrder()
	lifetimes := alias.Lifetimes(v.g, order)
	pos := alias.Positions(v.g, order)

	for _, req := range v.g.AliasRequests() {
		a, _ := v.g.Resource(req.A)
		b, _ := v.g.Resource(req.B)
		resources := []graph.ResourceHandle{a.Handle, b.Handle}
		passes := v.accessors(req.A, req.B)

		switch {
		case a.Imported || b.Imported:
			v.add(AliasIncompatible, SeverityError, passes, resources,
				"imported resources cannot alias (%q, %q)", a.Name, b.Name)
			continue
		case a.Lifetime != graph.LifetimeTransient || b.Lifetime != graph.LifetimeTransient:
			v.add(AliasIncompatible, SeverityError, passes, resources,
				"only transient resources can alias (%q, %q)", a.Name, b.Name)
			continue
		case !alias.Compatible(a, b):
			v.add(AliasIncompatible, SeverityError, passes, resources,
				"%q and %q have incompatible format or usage", a.Name, b.Name)
			continue
		}

		overlap, hazard := false, false
		for _, pair := range alias.RequestedPairs(v.g) {
			ra, rb := v.g.ResourceInstance(pair[0]), v.g.ResourceInstance(pair[1])
			if ra.Resource() != req.A || rb.Resource() != req.B {
				continue
			}
			la, okA := lifetimes[pair[0]]
			lb, okB := lifetimes[pair[1]]
			if okA && okB && la.Overlaps(lb.Interval) {
				overlap = true
			}
			if alias.ScopeHazard(v.g, pos, ra, rb, lifetimes) {
				hazard = true
			}
		}
		if overlap {
			v.add(AliasLifetimeOverlap, SeverityError, passes, resources,
				"%q and %q are alive at the same time", a.Name, b.Name)
		}
		if hazard {
			v.add(AliasScopeHazard, SeverityError, passes, resources,
				"shared %q cannot alias per-view resource still read by per-view passes", sharedName(a, b))
		}
	}
}

func sharedName(a, b *graph.ResourceDecl) string {
	if a.Scope == graph.ScopeShared {
		return a.Name
	}
	return b.Name
}

func (v *validator) accessors(handles ...graph.ResourceHandle) []graph.PassHandle {
	var ids []graph.InstanceID
	for _, h := range handles {
		for _, ri := range v.g.ResourceInstancesOf(h) {
			inst := v.g.ResourceInstance(ri)
			ids = append(ids, inst.Writers...)
			ids = append(ids, inst.Readers...)
		}
	}
	slices.Sort(ids)
	passes, _ := v.passesOf(ids)
	return passes
}

// unreadWrites warns about graph-owned resources that are written but
// never read. Back buffers are consumed by presentation.
func (v *validator) unreadWrites() {
	for _, r := range v.g.Resources() {
		if r.Imported {
			continue
		}
		var writers []graph.InstanceID
		read := false
		for _, ri := range v.g.ResourceInstancesOf(r.Handle) {
			inst := v.g.ResourceInstance(ri)
			writers = append(writers, inst.Writers...)
			read = read || len(inst.Readers) > 0
		}
		if read || len(writers) == 0 {
			continue
		}
		passes, _ := v.passesOf(writers)
		v.add(UnreadWrite, SeverityWarning, passes, []graph.ResourceHandle{r.Handle},
			"%q is written but never read", r.Name)
	}
}
