package termatlas

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"honnef.co/go/safeish"

	"github.com/gogpu/termatlas/quad"
)

// cellUniforms is the uniform block of the cell shader. Field order and the
// trailing padding match the WGSL Uniforms struct; the block is uploaded as
// raw bytes.
type cellUniforms struct {
	PositionScale    [2]float32
	CellSize         [2]float32
	CellCount        [2]float32
	Gamma            float32
	EnhancedContrast float32
	BackgroundColor  [4]float32
	DashedLineLength float32
	_                [3]float32
}

// cellUniformSize is the byte size of cellUniforms.
const cellUniformSize = 64

// Default shading parameters. The grayscale and ClearType contrast values
// mirror the usual text rasterizer defaults.
const (
	defaultGamma             = 1.8
	grayscaleContrast        = 0.5
	clearTypeContrast        = 1.0
	instanceBufferSizeRegime = 0x10000 // grow the instance buffer in 64 KiB steps
)

// resources owns every device object of the renderer: shaders, pipelines,
// buffers, the atlas and color bitmap textures, and the bind group tying
// them together. It tracks the payload's generation counters and recreates
// whatever a generation bump invalidated.
type resources struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout

	// One pipeline per blend state; spans switch between them.
	pipeStandard hal.RenderPipeline
	pipeInvert   hal.RenderPipeline

	sampler hal.Sampler

	vertexBuf hal.Buffer
	indexBuf  hal.Buffer

	instanceBuf hal.Buffer
	instanceCap int

	uniformBuf hal.Buffer

	atlasTex  hal.Texture
	atlasView hal.TextureView
	atlasSize image.Point

	colorTex         hal.Texture
	colorView        hal.TextureView
	colorSize        image.Point
	colorGenerations [2]uint32

	// bindGroup depends on the uniform buffer and both texture views; it
	// is rebuilt whenever one of them is recreated.
	bindGroup hal.BindGroup
}

// cornerVertices are the unit quad corners instanced by every draw.
var cornerVertices = [8]float32{
	0, 0,
	1, 0,
	1, 1,
	0, 1,
}

// quadIndices triangulate the unit quad.
var quadIndices = [6]uint16{0, 1, 2, 2, 3, 0}

// newResources creates the frame-invariant device objects. Texture-sized
// resources are created later: the color bitmap on the first settings sync,
// the atlas texture and the instance buffer on the first flush.
func newResources(device hal.Device, queue hal.Queue) (*resources, error) {
	r := &resources{device: device, queue: queue}
	if err := r.init(); err != nil {
		r.destroy()
		return nil, err
	}
	return r, nil
}

func (r *resources) init() error {
	shader, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "cell_shader",
		Source: hal.ShaderSource{WGSL: cellShaderSource},
	})
	if err != nil {
		return fmt.Errorf("termatlas: compile cell shader: %w", err)
	}
	r.shader = shader

	// Bind group layout:
	//   Binding 0: Uniforms (vertex+fragment)
	//   Binding 1: color bitmap texture (fragment)
	//   Binding 2: glyph atlas texture (fragment)
	//   Binding 3: sampler (fragment)
	bindLayout, err := r.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cell_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("termatlas: create cell bind layout: %w", err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := r.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cell_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("termatlas: create cell pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	sampler, err := r.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "cell_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create sampler: %w", err)
	}
	r.sampler = sampler

	// The standard blend is plain premultiplied source-over: the fragment
	// shader multiplies the per-channel text weights into the output, the
	// single-source fallback of the dual-source ClearType blend.
	premul := gputypes.BlendStatePremultiplied()
	r.pipeStandard, err = r.createCellPipeline("cell_pipeline", &premul)
	if err != nil {
		return err
	}

	// The invert blend subtracts the destination for the auto-color
	// cursor overlay: out = src·ONE − dst·ONE.
	invert := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationSubtract,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorZero,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	r.pipeInvert, err = r.createCellPipeline("cell_pipeline_invert", &invert)
	if err != nil {
		return err
	}

	if err := r.initGeometry(); err != nil {
		return err
	}

	uniformBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_uniforms",
		Size:  cellUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create uniform buffer: %w", err)
	}
	r.uniformBuf = uniformBuf

	return nil
}

// createCellPipeline builds one cell render pipeline with the given blend
// state.
func (r *resources) createCellPipeline(label string, blend *gputypes.BlendState) (hal.RenderPipeline, error) {
	pipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
			Buffers:    cellVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA8Unorm,
					Blend:     blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("termatlas: create %s: %w", label, err)
	}
	return pipeline, nil
}

// cellVertexLayout is the two-slot vertex fetch: per-vertex unit corners,
// then the packed 32-byte instance read as two vec4<f32>.
func cellVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: quad.InstanceSize,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}

// initGeometry uploads the immutable corner and index buffers.
func (r *resources) initGeometry() error {
	vertexBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_corners",
		Size:  uint64(len(cornerVertices) * 4),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create corner buffer: %w", err)
	}
	r.vertexBuf = vertexBuf
	r.queue.WriteBuffer(vertexBuf, 0, safeish.SliceCast[[]byte](cornerVertices[:]))

	indexBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_indices",
		Size:  uint64(len(quadIndices) * 2),
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create index buffer: %w", err)
	}
	r.indexBuf = indexBuf
	r.queue.WriteBuffer(indexBuf, 0, safeish.SliceCast[[]byte](quadIndices[:]))
	return nil
}

// ensureInstanceCapacity grows the instance buffer to hold count instances.
// Capacity is rounded up to 64 KiB multiples so resizing stays rare, and the
// viewport's cell count is the initial estimate.
func (r *resources) ensureInstanceCapacity(count int, cellCount image.Point) error {
	if r.instanceBuf != nil && count <= r.instanceCap {
		return nil
	}

	newCap := max(count, cellCount.X*cellCount.Y)
	newSize := (uint64(newCap)*quad.InstanceSize + instanceBufferSizeRegime - 1) &^ uint64(instanceBufferSizeRegime-1)
	newCap = int(newSize / quad.InstanceSize)

	if r.instanceBuf != nil {
		r.device.DestroyBuffer(r.instanceBuf)
		r.instanceBuf = nil
	}
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_instances",
		Size:  newSize,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create instance buffer: %w", err)
	}
	r.instanceBuf = buf
	r.instanceCap = newCap
	Logger().Debug("termatlas: instance buffer resized", "capacity", newCap)
	return nil
}

// resetInstanceBuffer drops the instance buffer so the next frame
// reallocates at the size regime's minimum.
func (r *resources) resetInstanceBuffer() {
	if r.instanceBuf != nil {
		r.device.DestroyBuffer(r.instanceBuf)
		r.instanceBuf = nil
		r.instanceCap = 0
	}
}

// ensureAtlasTexture (re)creates the device-side atlas texture for the
// given CPU atlas size.
func (r *resources) ensureAtlasTexture(size image.Point) error {
	if r.atlasTex != nil && r.atlasSize == size {
		return nil
	}
	r.destroyAtlasTexture()

	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "glyph_atlas",
		Size:          hal.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create atlas texture: %w", err)
	}
	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "glyph_atlas_view"})
	if err != nil {
		r.device.DestroyTexture(tex)
		return fmt.Errorf("termatlas: create atlas view: %w", err)
	}
	r.atlasTex = tex
	r.atlasView = view
	r.atlasSize = size
	r.invalidateBindGroup()
	return nil
}

// uploadAtlas pushes the CPU atlas image to the device.
func (r *resources) uploadAtlas(img *image.RGBA) {
	size := img.Bounds().Size()
	r.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.atlasTex, MipLevel: 0},
		img.Pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: uint32(size.Y),
		},
		&hal.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), DepthOrArrayLayers: 1},
	)
}

// ensureColorBitmap (re)creates the color bitmap texture: cellCount.X wide,
// 2·cellCount.Y tall, background colors in the top half and foreground
// colors in the bottom half.
func (r *resources) ensureColorBitmap(cellCount image.Point) error {
	if r.colorTex != nil && r.colorSize == cellCount {
		return nil
	}
	r.destroyColorBitmap()

	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "color_bitmap",
		Size:          hal.Extent3D{Width: uint32(cellCount.X), Height: uint32(cellCount.Y * 2), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create color bitmap: %w", err)
	}
	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "color_bitmap_view"})
	if err != nil {
		r.device.DestroyTexture(tex)
		return fmt.Errorf("termatlas: create color bitmap view: %w", err)
	}
	r.colorTex = tex
	r.colorView = view
	r.colorSize = cellCount
	r.colorGenerations = [2]uint32{}
	r.invalidateBindGroup()
	return nil
}

// uploadColorBitmap uploads the payload's packed cell colors when a
// generation counter disagrees. skipForeground allows the foreground half
// to stay stale when no ligature-marked quad will read it.
func (r *resources) uploadColorBitmap(p *RenderPayload, skipForeground bool) {
	if r.colorGenerations[0] == p.ColorBitmapGenerations[0] &&
		(r.colorGenerations[1] == p.ColorBitmapGenerations[1] || skipForeground) {
		return
	}

	w := r.colorSize.X
	h := r.colorSize.Y * 2

	// Row-pitch-aware repack: the payload stride can exceed the cell
	// count.
	data := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := p.ColorBitmap[y*p.ColorBitmapRowStride : y*p.ColorBitmapRowStride+w]
		dst := data[y*w*4 : (y+1)*w*4]
		copy(dst, safeish.SliceCast[[]byte](src))
	}

	r.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.colorTex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(w * 4),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	r.colorGenerations = p.ColorBitmapGenerations
}

// updateUniforms rewrites the cell uniform block from the payload.
func (r *resources) updateUniforms(p *RenderPayload) {
	contrast := float32(grayscaleContrast)
	if p.Font.AntialiasingMode == ClearType {
		contrast = clearTypeContrast
	}
	u := cellUniforms{
		PositionScale:    [2]float32{2 / float32(p.TargetSize.X), -2 / float32(p.TargetSize.Y)},
		CellSize:         [2]float32{float32(p.Font.CellSize.X), float32(p.Font.CellSize.Y)},
		CellCount:        [2]float32{float32(p.CellCount.X), float32(p.CellCount.Y)},
		Gamma:            defaultGamma,
		EnhancedContrast: contrast,
		BackgroundColor:  colorToFloats(p.Misc.BackgroundColor),
		DashedLineLength: float32(p.Font.UnderlineWidth * 3),
	}
	r.queue.WriteBuffer(r.uniformBuf, 0, safeish.AsBytes(&u))
}

// invalidateBindGroup drops the bind group so ensureBindGroup rebuilds it.
func (r *resources) invalidateBindGroup() {
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
		r.bindGroup = nil
	}
}

// ensureBindGroup rebuilds the cell bind group if a dependency changed.
func (r *resources) ensureBindGroup() error {
	if r.bindGroup != nil {
		return nil
	}
	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cell_bind",
		Layout: r.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: cellUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: r.colorView.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: r.atlasView.NativeHandle()}},
			{Binding: 3, Resource: gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("termatlas: create cell bind group: %w", err)
	}
	r.bindGroup = bg
	return nil
}

func (r *resources) destroyAtlasTexture() {
	if r.atlasView != nil {
		r.device.DestroyTextureView(r.atlasView)
		r.atlasView = nil
	}
	if r.atlasTex != nil {
		r.device.DestroyTexture(r.atlasTex)
		r.atlasTex = nil
	}
	r.atlasSize = image.Point{}
	r.invalidateBindGroup()
}

func (r *resources) destroyColorBitmap() {
	if r.colorView != nil {
		r.device.DestroyTextureView(r.colorView)
		r.colorView = nil
	}
	if r.colorTex != nil {
		r.device.DestroyTexture(r.colorTex)
		r.colorTex = nil
	}
	r.colorSize = image.Point{}
	r.invalidateBindGroup()
}

// destroy releases every device object in reverse creation order.
func (r *resources) destroy() {
	if r.device == nil {
		return
	}
	r.invalidateBindGroup()
	r.destroyColorBitmap()
	r.destroyAtlasTexture()
	if r.uniformBuf != nil {
		r.device.DestroyBuffer(r.uniformBuf)
		r.uniformBuf = nil
	}
	r.resetInstanceBuffer()
	if r.indexBuf != nil {
		r.device.DestroyBuffer(r.indexBuf)
		r.indexBuf = nil
	}
	if r.vertexBuf != nil {
		r.device.DestroyBuffer(r.vertexBuf)
		r.vertexBuf = nil
	}
	if r.pipeInvert != nil {
		r.device.DestroyRenderPipeline(r.pipeInvert)
		r.pipeInvert = nil
	}
	if r.pipeStandard != nil {
		r.device.DestroyRenderPipeline(r.pipeStandard)
		r.pipeStandard = nil
	}
	if r.sampler != nil {
		r.device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.pipeLayout != nil {
		r.device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		r.device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shader != nil {
		r.device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
}
