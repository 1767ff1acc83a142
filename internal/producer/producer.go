package producer

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/specialistvlad/rendergraph/internal/cache"
	"github.com/specialistvlad/rendergraph/internal/compiler"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/registry"
)

// Producer declares the render graph of one frame description.
type Producer struct {
	model       *config.Model
	executors   map[string]graph.Executor
	drawLists   map[string]map[string][]graph.DrawItem
	modulesHash uint64
}

// New instantiates the executor of every enabled pass and checks that the
// description declares a well-formed graph.
func New(ctx context.Context, model *config.Model, reg *registry.Registry, conv config.Converter) (*Producer, error) {
	logger := ctxlog.FromContext(ctx)
	p := &Producer{
		model:     model,
		executors: make(map[string]graph.Executor),
		drawLists: make(map[string]map[string][]graph.DrawItem, len(model.Views)),
	}

	for _, m := range model.Modules {
		if !m.Enabled {
			logger.Debug("Skipping disabled module.", "module", m.Name)
			continue
		}
		for _, pass := range m.Passes {
			kind, err := graph.ParsePassKind(pass.Kind)
			if err != nil {
				return nil, fmt.Errorf("pass %q: %w", pass.Name, err)
			}
			name := pass.Executor
			if name == "" {
				name = defaultExecutor(kind)
			}
			exec, err := reg.Instantiate(ctx, conv, name, kind, pass.Arguments)
			if err != nil {
				return nil, fmt.Errorf("pass %q: %w", pass.Name, err)
			}
			p.executors[pass.Name] = exec
		}
	}

	for _, v := range model.Views {
		lists := make(map[string][]graph.DrawItem, len(v.DrawLists))
		for _, dl := range v.DrawLists {
			item := graph.DrawItem{VertexCount: dl.Vertices, IndexCount: dl.Indices, InstanceCount: dl.Instances}
			lists[dl.Name] = slices.Repeat([]graph.DrawItem{item}, max(dl.Count, 0))
		}
		p.drawLists[v.Name] = lists
	}

	b := graph.NewBuilder()
	if err := p.Declare(b); err != nil {
		return nil, err
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	p.modulesHash = cache.DeclarationsHash(b)
	logger.Debug("Frame description ready.", "passes", len(p.executors), "modules_hash", p.modulesHash)
	return p, nil
}

// ModulesHash identifies the declared graph of the enabled modules.
func (p *Producer) ModulesHash() uint64 { return p.modulesHash }

// Settings converts the description's settings block.
func (p *Producer) Settings() (compiler.Settings, error) {
	s := p.model.Settings
	policy, err := compiler.ParsePolicy(s.Validation)
	if err != nil {
		return compiler.Settings{}, err
	}
	return compiler.Settings{
		Aliasing:     s.Aliasing,
		MemoryBudget: s.MemoryBudget,
		Threads:      s.Threads,
		Validation:   policy,
		Graphics:     s.Graphics,
	}, nil
}

// Request returns the compile request for frame.
func (p *Producer) Request(frame *graph.FrameContext) compiler.Request {
	return compiler.Request{Frame: frame, ModulesHash: p.modulesHash, Declare: p.Declare}
}

// Declare records every resource and every pass of the enabled modules.
// Passes of disabled modules are dropped along with dependencies on them.
func (p *Producer) Declare(b *graph.Builder) error {
	handles, depth, err := p.declareResources(b)
	if err != nil {
		return err
	}

	passes := make(map[string]*graph.PassBuilder)
	for _, m := range p.model.Modules {
		if !m.Enabled {
			continue
		}
		for _, pass := range m.Passes {
			pb, err := declarePass(b, pass, handles, depth)
			if err != nil {
				return err
			}
			passes[pass.Name] = pb.SetExecutor(p.executors[pass.Name])
		}
	}
	for _, m := range p.model.Modules {
		if !m.Enabled {
			continue
		}
		for _, pass := range m.Passes {
			for _, dep := range pass.DependsOn {
				if other, ok := passes[dep]; ok {
					passes[pass.Name].DependsOn(other.Handle())
				}
			}
		}
	}
	return nil
}

func (p *Producer) declareResources(b *graph.Builder) (map[config.ResourceRef]graph.ResourceHandle, map[config.ResourceRef]bool, error) {
	handles := make(map[config.ResourceRef]graph.ResourceHandle)
	depth := make(map[config.ResourceRef]bool)

	for _, t := range p.model.Textures {
		ref := config.ResourceRef{Kind: config.ResourceTexture, Name: t.Name}
		desc, err := textureDesc(t)
		if err != nil {
			return nil, nil, err
		}
		depth[ref] = gpu.IsDepthFormat(desc.Format)
		if t.Slot != nil {
			handles[ref] = b.ImportTexture(t.Name, desc, gpu.DescriptorSlot(*t.Slot))
			continue
		}
		lifetime, scope, err := parseLifetimeScope(t.Lifetime, t.Scope)
		if err != nil {
			return nil, nil, fmt.Errorf("texture %q: %w", t.Name, err)
		}
		handles[ref] = b.CreateTexture(t.Name, desc, lifetime, scope)
	}
	for _, buf := range p.model.Buffers {
		ref := config.ResourceRef{Kind: config.ResourceBuffer, Name: buf.Name}
		desc, err := bufferDesc(buf)
		if err != nil {
			return nil, nil, err
		}
		if buf.Slot != nil {
			handles[ref] = b.ImportBuffer(buf.Name, desc, gpu.DescriptorSlot(*buf.Slot))
			continue
		}
		lifetime, scope, err := parseLifetimeScope(buf.Lifetime, buf.Scope)
		if err != nil {
			return nil, nil, fmt.Errorf("buffer %q: %w", buf.Name, err)
		}
		handles[ref] = b.CreateBuffer(buf.Name, desc, lifetime, scope)
	}
	for _, name := range p.model.BackBuffers {
		handles[config.ResourceRef{Kind: config.ResourceBackBuffer, Name: name}] = b.ImportBackBuffer(name)
	}

	for _, a := range p.model.Aliases {
		first, ok1 := handles[a.First]
		second, ok2 := handles[a.Second]
		if !ok1 || !ok2 {
			return nil, nil, fmt.Errorf("alias between %s and %s references an undeclared resource", a.First, a.Second)
		}
		b.RequestAlias(first, second)
	}
	return handles, depth, nil
}

func parseLifetimeScope(lifetime, scope string) (graph.Lifetime, graph.Scope, error) {
	l, err := graph.ParseLifetime(lifetime)
	if err != nil {
		return 0, 0, err
	}
	s, err := graph.ParseScope(scope)
	if err != nil {
		return 0, 0, err
	}
	return l, s, nil
}

func declarePass(b *graph.Builder, pass *config.Pass, handles map[config.ResourceRef]graph.ResourceHandle, depth map[config.ResourceRef]bool) (*graph.PassBuilder, error) {
	kind, err := graph.ParsePassKind(pass.Kind)
	if err != nil {
		return nil, fmt.Errorf("pass %q: %w", pass.Name, err)
	}
	queue := gpu.QueueGraphics
	switch kind {
	case graph.KindCompute:
		queue = gpu.QueueCompute
	case graph.KindCopy:
		queue = gpu.QueueCopy
	}
	if pass.Queue != "" {
		if queue, err = gpu.ParseQueueType(pass.Queue); err != nil {
			return nil, fmt.Errorf("pass %q: %w", pass.Name, err)
		}
	}
	scope, err := graph.ParseScope(pass.Scope)
	if err != nil {
		return nil, fmt.Errorf("pass %q: %w", pass.Name, err)
	}

	var pb *graph.PassBuilder
	switch kind {
	case graph.KindCompute:
		pb = b.AddComputePass(pass.Name)
	case graph.KindCopy:
		pb = b.AddCopyPass(pass.Name)
	default:
		pb = b.AddRasterPass(pass.Name)
	}
	pb.SetQueue(queue).SetScope(scope).SetPriority(pass.Priority).
		SetEstimatedCost(graph.Cost{CPU: pass.Cost.CPU, GPU: pass.Cost.GPU, Memory: pass.Cost.Memory})

	if len(pass.Views) > 0 && scope != graph.ScopePerView {
		return nil, fmt.Errorf("pass %q: views need scope = \"per_view\"", pass.Name)
	}
	if scope == graph.ScopePerView {
		if len(pass.Views) == 0 {
			pb.IterateAllViews()
		}
		for _, v := range pass.Views {
			pb.RestrictToView(v)
		}
	}

	bind := func(accesses []*config.Access, write bool) error {
		for _, a := range accesses {
			h, ok := handles[a.Resource]
			if !ok {
				return fmt.Errorf("pass %q references undeclared %s", pass.Name, a.Resource)
			}
			state, err := accessState(a.State, write, kind, a.Resource.Kind, depth[a.Resource])
			if err != nil {
				return fmt.Errorf("pass %q: %w", pass.Name, err)
			}
			if write {
				pb.Write(h, state)
			} else {
				pb.Read(h, state)
			}
		}
		return nil
	}
	if err := bind(pass.Reads, false); err != nil {
		return nil, err
	}
	if err := bind(pass.Writes, true); err != nil {
		return nil, err
	}
	return pb, nil
}

// Frame returns the frame context of frame index: the views active in it,
// their orbiting cameras and their draw lists.
func (p *Producer) Frame(index uint64) *graph.FrameContext {
	frame := &graph.FrameContext{FrameIndex: index}
	for _, v := range p.model.Views {
		if !v.Active(index) {
			continue
		}
		frame.Views = append(frame.Views, graph.ViewInfo{
			Name:       v.Name,
			Target:     v.Target,
			View:       viewMatrix(v.Camera, index),
			Projection: mgl32.Perspective(mgl32.DegToRad(v.Camera.FovDegrees), aspect(v), v.Camera.Near, v.Camera.Far),
			Viewport:   graph.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MaxDepth: 1},
			DrawLists:  p.drawLists[v.Name],
		})
	}
	return frame
}

func aspect(v *config.View) float32 {
	if v.Height <= 0 {
		return 1
	}
	return v.Width / v.Height
}

// viewMatrix orbits the camera eye around its up axis through the center.
func viewMatrix(c config.Camera, frame uint64) mgl32.Mat4 {
	eye, center, up := mgl32.Vec3(c.Eye), mgl32.Vec3(c.Center), mgl32.Vec3(c.Up)
	if c.OrbitDegrees != 0 && up.Len() > 0 {
		angle := mgl32.DegToRad(c.OrbitDegrees * float32(frame))
		eye = center.Add(mgl32.QuatRotate(angle, up.Normalize()).Rotate(eye.Sub(center)))
	}
	return mgl32.LookAtV(eye, center, up)
}
