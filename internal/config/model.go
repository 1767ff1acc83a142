package config

import (
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a frame
// description.
type Model struct {
	Settings    Settings
	Views       []*View
	Textures    []*Texture
	Buffers     []*Buffer
	BackBuffers []string
	Modules     []*Module
	Aliases     []*Alias
}

// Settings are the graphics settings of a `settings` block.
type Settings struct {
	Aliasing bool
	// MemoryBudget in bytes; zero means unlimited.
	MemoryBudget uint64
	Threads      int
	Validation   string
	Graphics     map[string]string
}

// View is a render target with a camera and a viewport.
type View struct {
	Name   string
	Target string
	Width  float32
	Height float32
	X, Y   float32
	Camera Camera
	// FirstFrame and LastFrame bound the frames the view is active in.
	// A zero LastFrame means forever.
	FirstFrame uint64
	LastFrame  uint64
	DrawLists  []*DrawList
}

// Active reports whether the view takes part in the given frame.
func (v *View) Active(frame uint64) bool {
	return frame >= v.FirstFrame && (v.LastFrame == 0 || frame <= v.LastFrame)
}

// Camera is a perspective look-at camera. OrbitDegrees rotates the eye
// around the up axis through Center once per frame.
type Camera struct {
	Eye          [3]float32
	Center       [3]float32
	Up           [3]float32
	FovDegrees   float32
	Near         float32
	Far          float32
	OrbitDegrees float32
}

// DrawList is a synthetic draw list of Count identical items.
type DrawList struct {
	Name      string
	Count     int
	Vertices  uint32
	Indices   uint32
	Instances uint32
}

// Texture is the format-agnostic representation of a `texture` block.
type Texture struct {
	Name     string
	Width    uint32
	Height   uint32
	Depth    uint32
	Mips     uint32
	Samples  uint32
	Format   string
	Usage    []string
	Lifetime string
	Scope    string
	// Slot imports the texture at a fixed descriptor slot when set.
	Slot *uint32
}

// Buffer is the format-agnostic representation of a `buffer` block.
type Buffer struct {
	Name     string
	Size     uint64
	Stride   uint32
	Usage    []string
	Lifetime string
	Scope    string
	Slot     *uint32
}

// ResourceKind is the block type a reference points at.
type ResourceKind string

const (
	ResourceTexture    ResourceKind = "texture"
	ResourceBuffer     ResourceKind = "buffer"
	ResourceBackBuffer ResourceKind = "back_buffer"
)

// ResourceRef is a resolved reference such as `texture.shadow_map`.
type ResourceRef struct {
	Kind ResourceKind
	Name string
}

func (r ResourceRef) String() string { return string(r.Kind) + "." + r.Name }

// Alias is an explicit aliasing request between two resources.
type Alias struct {
	First  ResourceRef
	Second ResourceRef
}

// Module is a named, switchable group of passes.
type Module struct {
	Name    string
	Enabled bool
	Passes  []*Pass
}

// Pass is the format-agnostic representation of a `pass` block.
type Pass struct {
	Name     string
	Kind     string
	Queue    string
	Scope    string
	Priority int
	Cost     Cost
	// Views restricts a per-view pass to the given view indices; empty
	// means every view.
	Views     []int
	Executor  string
	Arguments map[string]cty.Value
	Reads     []*Access
	Writes    []*Access
	DependsOn []string
}

// Cost is a declared pass cost estimate.
type Cost struct {
	CPU    time.Duration
	GPU    time.Duration
	Memory uint64
}

// Access is one `read` or `write` block of a pass.
type Access struct {
	Resource ResourceRef
	State    string
}
