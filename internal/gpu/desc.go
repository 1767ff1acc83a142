package gpu

import "github.com/gogpu/gputypes"

// TextureDesc describes a logical texture.
type TextureDesc struct {
	Dimension   gputypes.TextureDimension
	Size        gputypes.Extent3D
	Format      gputypes.TextureFormat
	Usage       gputypes.TextureUsage
	MipLevels   uint32
	SampleCount uint32
}

// Texture2D returns a single-mip, single-sample 2D texture description.
func Texture2D(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) TextureDesc {
	return TextureDesc{
		Dimension:   gputypes.TextureDimension2D,
		Size:        gputypes.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		Format:      format,
		Usage:       usage,
		MipLevels:   1,
		SampleCount: 1,
	}
}

// BytesPerTexel returns the storage size of one texel of the given format.
// Unknown formats are assumed to be 4 bytes wide.
func BytesPerTexel(format gputypes.TextureFormat) uint64 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth24PlusStencil8:
		return 4
	default:
		return 4
	}
}

// IsDepthFormat reports whether the format carries depth data.
func IsDepthFormat(format gputypes.TextureFormat) bool {
	return format == gputypes.TextureFormatDepth24PlusStencil8
}

// SizeBytes estimates the memory footprint of the texture including its mip chain.
func (d TextureDesc) SizeBytes() uint64 {
	w, h := uint64(max(d.Size.Width, 1)), uint64(max(d.Size.Height, 1))
	layers := uint64(max(d.Size.DepthOrArrayLayers, 1))
	samples := uint64(max(d.SampleCount, 1))
	mips := max(d.MipLevels, 1)

	texel := BytesPerTexel(d.Format)
	var total uint64
	for range mips {
		total += w * h * layers * samples * texel
		w = max(w/2, 1)
		h = max(h/2, 1)
		if d.Dimension == gputypes.TextureDimension3D {
			layers = max(layers/2, 1)
		}
	}
	return total
}

// Heap returns the heap type the texture must live in.
func (d TextureDesc) Heap() HeapType {
	if d.Usage&gputypes.TextureUsageRenderAttachment != 0 || IsDepthFormat(d.Format) {
		return HeapRenderTargets
	}
	return HeapTextures
}

// BufferDesc describes a logical buffer.
type BufferDesc struct {
	Size   uint64
	Usage  gputypes.BufferUsage
	Stride uint32
}

// SizeBytes returns the buffer size.
func (d BufferDesc) SizeBytes() uint64 {
	return d.Size
}
