package producer

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/gpu"
	"github.com/specialistvlad/rendergraph/internal/graph"
)

var textureFormats = map[string]gputypes.TextureFormat{
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"depth24plus_stencil8": gputypes.TextureFormatDepth24PlusStencil8,
}

var textureUsages = map[string]gputypes.TextureUsage{
	"copy_src":          gputypes.TextureUsageCopySrc,
	"copy_dst":          gputypes.TextureUsageCopyDst,
	"texture_binding":   gputypes.TextureUsageTextureBinding,
	"render_attachment": gputypes.TextureUsageRenderAttachment,
}

var bufferUsages = map[string]gputypes.BufferUsage{
	"map_read":  gputypes.BufferUsageMapRead,
	"map_write": gputypes.BufferUsageMapWrite,
	"copy_src":  gputypes.BufferUsageCopySrc,
	"copy_dst":  gputypes.BufferUsageCopyDst,
	"vertex":    gputypes.BufferUsageVertex,
	"uniform":   gputypes.BufferUsageUniform,
	"storage":   gputypes.BufferUsageStorage,
}

// defaultTextureFormat applies to textures that leave format unset.
const defaultTextureFormat = "rgba8unorm"

func textureDesc(t *config.Texture) (gpu.TextureDesc, error) {
	name := t.Format
	if name == "" {
		name = defaultTextureFormat
	}
	format, ok := textureFormats[name]
	if !ok {
		return gpu.TextureDesc{}, fmt.Errorf("texture %q: unknown format %q", t.Name, t.Format)
	}
	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	if len(t.Usage) > 0 {
		usage = 0
		for _, u := range t.Usage {
			flag, ok := textureUsages[u]
			if !ok {
				return gpu.TextureDesc{}, fmt.Errorf("texture %q: unknown usage %q", t.Name, u)
			}
			usage |= flag
		}
	}
	desc := gpu.Texture2D(t.Width, t.Height, format, usage)
	desc.Size.DepthOrArrayLayers = max(t.Depth, 1)
	desc.MipLevels = max(t.Mips, 1)
	desc.SampleCount = max(t.Samples, 1)
	return desc, nil
}

func bufferDesc(b *config.Buffer) (gpu.BufferDesc, error) {
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	if len(b.Usage) > 0 {
		usage = 0
		for _, u := range b.Usage {
			flag, ok := bufferUsages[u]
			if !ok {
				return gpu.BufferDesc{}, fmt.Errorf("buffer %q: unknown usage %q", b.Name, u)
			}
			usage |= flag
		}
	}
	if b.Size == 0 {
		return gpu.BufferDesc{}, fmt.Errorf("buffer %q: size must be positive", b.Name)
	}
	return gpu.BufferDesc{Size: b.Size, Usage: usage, Stride: b.Stride}, nil
}

// defaultExecutor picks the executor of a pass block without one.
func defaultExecutor(kind graph.PassKind) string {
	switch kind {
	case graph.KindCompute:
		return "dispatch"
	case graph.KindCopy:
		return "copy"
	default:
		return "fullscreen"
	}
}

// accessState resolves the declared state of an access, defaulting by
// pass kind and resource.
func accessState(declared string, write bool, kind graph.PassKind, res config.ResourceKind, depth bool) (gpu.ResourceState, error) {
	if declared != "" {
		return gpu.ParseResourceState(declared)
	}
	switch {
	case kind == graph.KindCopy && write:
		return gpu.StateCopyDest, nil
	case kind == graph.KindCopy:
		return gpu.StateCopySource, nil
	case !write:
		return gpu.StateShaderResource, nil
	case kind == graph.KindCompute || res == config.ResourceBuffer:
		return gpu.StateUnorderedAccess, nil
	case depth:
		return gpu.StateDepthWrite, nil
	default:
		return gpu.StateRenderTarget, nil
	}
}
