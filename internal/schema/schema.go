// Package schema holds the HCL decoding structs of frame description files.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// File is every top-level block a frame description file may contain.
type File struct {
	Settings    []*Settings   `hcl:"settings,block"`
	Views       []*View       `hcl:"view,block"`
	Textures    []*Texture    `hcl:"texture,block"`
	Buffers     []*Buffer     `hcl:"buffer,block"`
	BackBuffers []*BackBuffer `hcl:"back_buffer,block"`
	Aliases     []*Alias      `hcl:"alias,block"`
	Modules     []*Module     `hcl:"module,block"`
}

// Settings is the `settings` block. At most one may exist across all files.
type Settings struct {
	Aliasing        *bool             `hcl:"aliasing,optional"`
	MemoryBudgetMiB uint64            `hcl:"memory_budget_mib,optional"`
	Threads         int               `hcl:"threads,optional"`
	Validation      string            `hcl:"validation,optional"`
	Graphics        map[string]string `hcl:"graphics,optional"`
}

// View is a `view "name"` block.
type View struct {
	Name      string      `hcl:"name,label"`
	Target    string      `hcl:"target,optional"`
	Width     float32     `hcl:"width"`
	Height    float32     `hcl:"height"`
	X         float32     `hcl:"x,optional"`
	Y         float32     `hcl:"y,optional"`
	Frames    []uint64    `hcl:"frames,optional"`
	Camera    *Camera     `hcl:"camera,block"`
	DrawLists []*DrawList `hcl:"draw_list,block"`
}

// Camera is the `camera` block of a view.
type Camera struct {
	Eye          []float32 `hcl:"eye,optional"`
	Center       []float32 `hcl:"center,optional"`
	Up           []float32 `hcl:"up,optional"`
	Fov          float32   `hcl:"fov,optional"`
	Near         float32   `hcl:"near,optional"`
	Far          float32   `hcl:"far,optional"`
	OrbitDegrees float32   `hcl:"orbit_degrees,optional"`
}

// DrawList is a `draw_list "name"` block of a view.
type DrawList struct {
	Name      string `hcl:"name,label"`
	Count     int    `hcl:"count"`
	Vertices  uint32 `hcl:"vertices,optional"`
	Indices   uint32 `hcl:"indices,optional"`
	Instances uint32 `hcl:"instances,optional"`
}

// Texture is a `texture "name"` block.
type Texture struct {
	Name     string   `hcl:"name,label"`
	Width    uint32   `hcl:"width"`
	Height   uint32   `hcl:"height"`
	Depth    uint32   `hcl:"depth,optional"`
	Mips     uint32   `hcl:"mips,optional"`
	Samples  uint32   `hcl:"samples,optional"`
	Format   string   `hcl:"format,optional"`
	Usage    []string `hcl:"usage,optional"`
	Lifetime string   `hcl:"lifetime,optional"`
	Scope    string   `hcl:"scope,optional"`
	Slot     *uint32  `hcl:"slot,optional"`
}

// Buffer is a `buffer "name"` block.
type Buffer struct {
	Name     string   `hcl:"name,label"`
	Size     uint64   `hcl:"size"`
	Stride   uint32   `hcl:"stride,optional"`
	Usage    []string `hcl:"usage,optional"`
	Lifetime string   `hcl:"lifetime,optional"`
	Scope    string   `hcl:"scope,optional"`
	Slot     *uint32  `hcl:"slot,optional"`
}

// BackBuffer is a `back_buffer "name"` block.
type BackBuffer struct {
	Name string `hcl:"name,label"`
}

// Alias is an `alias` block naming two resources by reference.
type Alias struct {
	First  hcl.Expression `hcl:"first"`
	Second hcl.Expression `hcl:"second"`
}

// Module is a `module "name"` block.
type Module struct {
	Name    string  `hcl:"name,label"`
	Enabled *bool   `hcl:"enabled,optional"`
	Passes  []*Pass `hcl:"pass,block"`
}

// Arguments is the free-form `arguments` block of a pass.
type Arguments struct {
	Body hcl.Body `hcl:",remain"`
}

// Cost is the `cost` block of a pass.
type Cost struct {
	CPUMicros float64 `hcl:"cpu_us,optional"`
	GPUMicros float64 `hcl:"gpu_us,optional"`
	Memory    uint64  `hcl:"memory,optional"`
}

// Pass is a `pass "name"` block of a module.
type Pass struct {
	Name      string         `hcl:"name,label"`
	Kind      string         `hcl:"kind,optional"`
	Queue     string         `hcl:"queue,optional"`
	Scope     string         `hcl:"scope,optional"`
	Priority  int            `hcl:"priority,optional"`
	Views     []int          `hcl:"views,optional"`
	Executor  string         `hcl:"executor,optional"`
	Arguments *Arguments     `hcl:"arguments,block"`
	Cost      *Cost          `hcl:"cost,block"`
	Reads     []*Access      `hcl:"read,block"`
	Writes    []*Access      `hcl:"write,block"`
	DependsOn hcl.Expression `hcl:"depends_on,optional"`
}

// Access is a `read` or `write` block of a pass.
type Access struct {
	Resource hcl.Expression `hcl:"resource"`
	State    string         `hcl:"state,optional"`
}
