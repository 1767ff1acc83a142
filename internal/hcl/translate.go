package hcl

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// translator accumulates the blocks of several files into one model.
type translator struct {
	model    *config.Model
	settings bool
	names    map[string]struct{}
}

func newTranslator() *translator {
	return &translator{
		model: &config.Model{},
		names: make(map[string]struct{}),
	}
}

// claim records a block name, failing on duplicates within a namespace.
func (t *translator) claim(namespace, name string) error {
	key := namespace + "." + name
	if _, dup := t.names[key]; dup {
		return fmt.Errorf("duplicate %s %q", namespace, name)
	}
	t.names[key] = struct{}{}
	return nil
}

func (t *translator) merge(f *schema.File) error {
	for _, s := range f.Settings {
		if t.settings {
			return fmt.Errorf("more than one settings block")
		}
		t.settings = true
		t.model.Settings = translateSettings(s)
	}
	for _, v := range f.Views {
		if err := t.claim("view", v.Name); err != nil {
			return err
		}
		view, err := translateView(v)
		if err != nil {
			return err
		}
		t.model.Views = append(t.model.Views, view)
	}
	for _, tex := range f.Textures {
		if err := t.claim(string(config.ResourceTexture), tex.Name); err != nil {
			return err
		}
		t.model.Textures = append(t.model.Textures, translateTexture(tex))
	}
	for _, buf := range f.Buffers {
		if err := t.claim(string(config.ResourceBuffer), buf.Name); err != nil {
			return err
		}
		t.model.Buffers = append(t.model.Buffers, translateBuffer(buf))
	}
	for _, bb := range f.BackBuffers {
		if err := t.claim(string(config.ResourceBackBuffer), bb.Name); err != nil {
			return err
		}
		t.model.BackBuffers = append(t.model.BackBuffers, bb.Name)
	}
	for _, a := range f.Aliases {
		alias, err := translateAlias(a)
		if err != nil {
			return err
		}
		t.model.Aliases = append(t.model.Aliases, alias)
	}
	for _, m := range f.Modules {
		if err := t.claim("module", m.Name); err != nil {
			return err
		}
		mod, err := t.translateModule(m)
		if err != nil {
			return err
		}
		t.model.Modules = append(t.model.Modules, mod)
	}
	return nil
}

// finish checks that every reference names a declared block.
func (t *translator) finish() (*config.Model, error) {
	has := func(namespace, name string) bool {
		_, ok := t.names[namespace+"."+name]
		return ok
	}
	for _, a := range t.model.Aliases {
		for _, ref := range []config.ResourceRef{a.First, a.Second} {
			if !has(string(ref.Kind), ref.Name) {
				return nil, fmt.Errorf("alias references undeclared %s", ref)
			}
		}
	}
	for _, m := range t.model.Modules {
		for _, p := range m.Passes {
			for _, acc := range append(append([]*config.Access{}, p.Reads...), p.Writes...) {
				if !has(string(acc.Resource.Kind), acc.Resource.Name) {
					return nil, fmt.Errorf("pass %q references undeclared %s", p.Name, acc.Resource)
				}
			}
			for _, dep := range p.DependsOn {
				if !has("pass", dep) {
					return nil, fmt.Errorf("pass %q depends on undeclared pass %q", p.Name, dep)
				}
			}
		}
	}
	return t.model, nil
}

func translateSettings(s *schema.Settings) config.Settings {
	out := config.Settings{
		MemoryBudget: s.MemoryBudgetMiB << 20,
		Threads:      s.Threads,
		Validation:   s.Validation,
		Graphics:     s.Graphics,
	}
	if s.Aliasing != nil {
		out.Aliasing = *s.Aliasing
	}
	return out
}

func translateView(v *schema.View) (*config.View, error) {
	out := &config.View{
		Name:   v.Name,
		Target: v.Target,
		Width:  v.Width,
		Height: v.Height,
		X:      v.X,
		Y:      v.Y,
		Camera: config.Camera{
			Eye:        [3]float32{0, 0, 1},
			Up:         [3]float32{0, 1, 0},
			FovDegrees: 60,
			Near:       0.1,
			Far:        100,
		},
	}
	switch len(v.Frames) {
	case 0:
	case 2:
		out.FirstFrame, out.LastFrame = v.Frames[0], v.Frames[1]
		if out.LastFrame < out.FirstFrame {
			return nil, fmt.Errorf("view %q: frames range [%d, %d] is empty", v.Name, out.FirstFrame, out.LastFrame)
		}
	default:
		return nil, fmt.Errorf("view %q: frames must be [first, last]", v.Name)
	}

	if c := v.Camera; c != nil {
		var err error
		if out.Camera.Eye, err = vec3(c.Eye, out.Camera.Eye); err != nil {
			return nil, fmt.Errorf("view %q: eye: %w", v.Name, err)
		}
		if out.Camera.Center, err = vec3(c.Center, out.Camera.Center); err != nil {
			return nil, fmt.Errorf("view %q: center: %w", v.Name, err)
		}
		if out.Camera.Up, err = vec3(c.Up, out.Camera.Up); err != nil {
			return nil, fmt.Errorf("view %q: up: %w", v.Name, err)
		}
		if c.Fov > 0 {
			out.Camera.FovDegrees = c.Fov
		}
		if c.Near > 0 {
			out.Camera.Near = c.Near
		}
		if c.Far > 0 {
			out.Camera.Far = c.Far
		}
		out.Camera.OrbitDegrees = c.OrbitDegrees
	}

	for _, dl := range v.DrawLists {
		out.DrawLists = append(out.DrawLists, &config.DrawList{
			Name:      dl.Name,
			Count:     dl.Count,
			Vertices:  dl.Vertices,
			Indices:   dl.Indices,
			Instances: max(dl.Instances, 1),
		})
	}
	return out, nil
}

func vec3(in []float32, def [3]float32) ([3]float32, error) {
	if in == nil {
		return def, nil
	}
	if len(in) != 3 {
		return def, fmt.Errorf("want 3 components, got %d", len(in))
	}
	return [3]float32{in[0], in[1], in[2]}, nil
}

func translateTexture(s *schema.Texture) *config.Texture {
	return &config.Texture{
		Name:     s.Name,
		Width:    s.Width,
		Height:   s.Height,
		Depth:    max(s.Depth, 1),
		Mips:     max(s.Mips, 1),
		Samples:  max(s.Samples, 1),
		Format:   s.Format,
		Usage:    s.Usage,
		Lifetime: s.Lifetime,
		Scope:    s.Scope,
		Slot:     s.Slot,
	}
}

func translateBuffer(s *schema.Buffer) *config.Buffer {
	return &config.Buffer{
		Name:     s.Name,
		Size:     s.Size,
		Stride:   s.Stride,
		Usage:    s.Usage,
		Lifetime: s.Lifetime,
		Scope:    s.Scope,
		Slot:     s.Slot,
	}
}

func translateAlias(a *schema.Alias) (*config.Alias, error) {
	first, err := resourceRef(a.First)
	if err != nil {
		return nil, err
	}
	second, err := resourceRef(a.Second)
	if err != nil {
		return nil, err
	}
	return &config.Alias{First: first, Second: second}, nil
}

func (t *translator) translateModule(m *schema.Module) (*config.Module, error) {
	out := &config.Module{Name: m.Name, Enabled: true}
	if m.Enabled != nil {
		out.Enabled = *m.Enabled
	}
	for _, p := range m.Passes {
		if err := t.claim("pass", p.Name); err != nil {
			return nil, err
		}
		pass, err := translatePass(p)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", m.Name, err)
		}
		out.Passes = append(out.Passes, pass)
	}
	return out, nil
}

func translatePass(p *schema.Pass) (*config.Pass, error) {
	out := &config.Pass{
		Name:     p.Name,
		Kind:     p.Kind,
		Queue:    p.Queue,
		Scope:    p.Scope,
		Priority: p.Priority,
		Views:    p.Views,
		Executor: p.Executor,
	}
	if p.Cost != nil {
		out.Cost = config.Cost{
			CPU:    time.Duration(p.Cost.CPUMicros * float64(time.Microsecond)),
			GPU:    time.Duration(p.Cost.GPUMicros * float64(time.Microsecond)),
			Memory: p.Cost.Memory,
		}
	}

	var err error
	if p.Arguments != nil {
		if out.Arguments, err = evalArguments(p.Arguments.Body); err != nil {
			return nil, fmt.Errorf("pass %q: %w", p.Name, err)
		}
	}
	if out.Reads, err = translateAccesses(p.Reads); err != nil {
		return nil, fmt.Errorf("pass %q: read: %w", p.Name, err)
	}
	if out.Writes, err = translateAccesses(p.Writes); err != nil {
		return nil, fmt.Errorf("pass %q: write: %w", p.Name, err)
	}
	if out.DependsOn, err = passRefs(p.DependsOn); err != nil {
		return nil, fmt.Errorf("pass %q: depends_on: %w", p.Name, err)
	}
	return out, nil
}

func translateAccesses(in []*schema.Access) ([]*config.Access, error) {
	out := make([]*config.Access, 0, len(in))
	for _, a := range in {
		ref, err := resourceRef(a.Resource)
		if err != nil {
			return nil, err
		}
		out = append(out, &config.Access{Resource: ref, State: a.State})
	}
	return out, nil
}

// evalArguments evaluates the attributes of an arguments block. They may
// only hold constant values.
func evalArguments(body hcl.Body) (map[string]cty.Value, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("argument %q: %w", name, diags)
		}
		out[name] = val
	}
	return out, nil
}

// resourceRef resolves a traversal such as `texture.shadow_map`.
func resourceRef(expr hcl.Expression) (config.ResourceRef, error) {
	root, name, err := reference(expr)
	if err != nil {
		return config.ResourceRef{}, err
	}
	switch kind := config.ResourceKind(root); kind {
	case config.ResourceTexture, config.ResourceBuffer, config.ResourceBackBuffer:
		return config.ResourceRef{Kind: kind, Name: name}, nil
	}
	return config.ResourceRef{}, fmt.Errorf("%s: %q is not a resource type", expr.Range(), root)
}

// passRefs resolves a list of `pass.name` traversals. A missing attribute
// is an empty list.
func passRefs(expr hcl.Expression) ([]string, error) {
	if expr == nil || isNull(expr) {
		return nil, nil
	}
	items, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		root, name, err := reference(item)
		if err != nil {
			return nil, err
		}
		if root != "pass" {
			return nil, fmt.Errorf("%s: expected a pass reference, got %s.%s", item.Range(), root, name)
		}
		out = append(out, name)
	}
	return out, nil
}

// reference splits a two-step absolute traversal into its root and attribute.
func reference(expr hcl.Expression) (root, name string, err error) {
	trav, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() {
		return "", "", diags
	}
	if len(trav) != 2 {
		return "", "", fmt.Errorf("%s: expected a reference like texture.name", expr.Range())
	}
	attr, ok := trav[1].(hcl.TraverseAttr)
	if !ok {
		return "", "", fmt.Errorf("%s: expected a reference like texture.name", expr.Range())
	}
	return trav.RootName(), attr.Name, nil
}

// isNull reports whether expr is the null placeholder gohcl assigns to an
// absent optional attribute.
func isNull(expr hcl.Expression) bool {
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}
