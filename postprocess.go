package termatlas

import (
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"honnef.co/go/safeish"
)

// postKind is the post-process chain variant.
type postKind uint8

const (
	postNone postKind = iota
	postRetro
	postCustom
)

// postUniforms is the uniform block shared by the built-in retro shader and
// custom post-process shaders.
type postUniforms struct {
	Time       float32
	Scale      float32
	Resolution [2]float32
	Background [4]float32
}

// postUniformSize is the byte size of postUniforms.
const postUniformSize = 32

// Custom post-process shaders are WGSL modules with vs_main/fs_main entry
// points and this binding contract:
//
//	@group(0) @binding(0) var<uniform> u: PostUniforms; // time, scale, resolution, background
//	@group(0) @binding(1) var frame: texture_2d<f32>;   // the rendered frame
//	@group(0) @binding(2) var frame_sampler: sampler;
//
// The module is validated with naga before it reaches the device; a shader
// that fails to compile is reported through the payload's warning callback
// and the pass is disabled until the chain is next rebuilt (a settings
// change or a hot reload).

// postProcess owns the optional post-process pass: the offscreen target the
// frame renders into, and the pipeline that reprocesses it onto the back
// buffer.
type postProcess struct {
	device hal.Device
	queue  hal.Queue

	kind postKind

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
	uniformBuf hal.Buffer

	offscreenTex  hal.Texture
	offscreenView hal.TextureView
	offscreenSize image.Point

	bindGroup hal.BindGroup

	// requiresContinuousRedraw is true when the shader animates over
	// time, telling the host to keep presenting frames.
	requiresContinuousRedraw bool

	startTime time.Time
}

func newPostProcess(device hal.Device, queue hal.Queue) *postProcess {
	return &postProcess{device: device, queue: queue}
}

// Active reports whether a post-process pass runs this frame.
func (pp *postProcess) Active() bool { return pp.kind != postNone }

// recreate rebuilds the chain from the payload's misc settings. Custom
// shader compile failures disable the pass and are reported through the
// warning callback; they never fail the frame.
func (pp *postProcess) recreate(p *RenderPayload) error {
	pp.destroyChain()
	pp.kind = postNone
	pp.requiresContinuousRedraw = false

	var source string
	switch {
	case p.Misc.CustomShaderPath != "":
		data, err := os.ReadFile(p.Misc.CustomShaderPath)
		if err != nil {
			pp.reportShaderFailure(p, err)
			return nil
		}
		source = string(data)

		// Validate before touching the device; naga gives usable
		// diagnostics where a device would reject opaquely.
		if _, err := naga.Compile(source); err != nil {
			pp.reportShaderFailure(p, err)
			return nil
		}

		pp.kind = postCustom
		// Unless the shader reads the time uniform it doesn't need
		// continuous redraw.
		pp.requiresContinuousRedraw = strings.Contains(source, ".time")

	case p.Misc.UseRetroTerminalEffect:
		source = retroShaderSource
		pp.kind = postRetro

	default:
		return nil
	}

	if err := pp.createChain(source); err != nil {
		if pp.kind == postCustom {
			pp.reportShaderFailure(p, err)
			pp.destroyChain()
			pp.kind = postNone
			return nil
		}
		return err
	}
	pp.startTime = time.Now()
	return nil
}

// reportShaderFailure logs and forwards a custom shader failure.
func (pp *postProcess) reportShaderFailure(p *RenderPayload, err error) {
	Logger().Warn("termatlas: custom shader disabled",
		"path", p.Misc.CustomShaderPath, "error", err)
	if p.WarningCallback != nil {
		p.WarningCallback(fmt.Errorf("%w: %s: %v", ErrShaderCompile, p.Misc.CustomShaderPath, err))
	}
}

// createChain builds shader, layouts, sampler, uniform buffer and pipeline.
func (pp *postProcess) createChain(source string) error {
	shader, err := pp.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "post_shader",
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return fmt.Errorf("termatlas: compile post shader: %w", err)
	}
	pp.shader = shader

	bindLayout, err := pp.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "post_bind_layout",
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
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("termatlas: create post bind layout: %w", err)
	}
	pp.bindLayout = bindLayout

	pipeLayout, err := pp.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "post_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{pp.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("termatlas: create post pipeline layout: %w", err)
	}
	pp.pipeLayout = pipeLayout

	sampler, err := pp.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "post_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create post sampler: %w", err)
	}
	pp.sampler = sampler

	uniformBuf, err := pp.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "post_uniforms",
		Size:  postUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create post uniform buffer: %w", err)
	}
	pp.uniformBuf = uniformBuf

	pipeline, err := pp.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "post_pipeline",
		Layout: pp.pipeLayout,
		Vertex: hal.VertexState{
			Module:     pp.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     pp.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA8Unorm,
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
		return fmt.Errorf("termatlas: create post pipeline: %w", err)
	}
	pp.pipeline = pipeline
	return nil
}

// ensureOffscreen (re)creates the offscreen target the frame renders into
// while the pass is active.
func (pp *postProcess) ensureOffscreen(size image.Point) error {
	if pp.offscreenTex != nil && pp.offscreenSize == size {
		return nil
	}
	pp.destroyOffscreen()

	tex, err := pp.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "post_offscreen",
		Size:          hal.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("termatlas: create post offscreen: %w", err)
	}
	view, err := pp.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "post_offscreen_view"})
	if err != nil {
		pp.device.DestroyTexture(tex)
		return fmt.Errorf("termatlas: create post offscreen view: %w", err)
	}
	pp.offscreenTex = tex
	pp.offscreenView = view
	pp.offscreenSize = size

	if pp.bindGroup != nil {
		pp.device.DestroyBindGroup(pp.bindGroup)
		pp.bindGroup = nil
	}
	return nil
}

// ensureBindGroup rebuilds the pass's bind group if needed.
func (pp *postProcess) ensureBindGroup() error {
	if pp.bindGroup != nil {
		return nil
	}
	bg, err := pp.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "post_bind",
		Layout: pp.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: pp.uniformBuf.NativeHandle(), Offset: 0, Size: postUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: pp.offscreenView.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: pp.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("termatlas: create post bind group: %w", err)
	}
	pp.bindGroup = bg
	return nil
}

// updateUniforms rewrites the pass uniforms for this frame.
func (pp *postProcess) updateUniforms(p *RenderPayload) {
	u := postUniforms{
		Time:       float32(time.Since(pp.startTime).Seconds()),
		Scale:      1,
		Resolution: [2]float32{float32(p.TargetSize.X), float32(p.TargetSize.Y)},
		Background: colorToFloats(p.Misc.BackgroundColor),
	}
	pp.queue.WriteBuffer(pp.uniformBuf, 0, safeish.AsBytes(&u))
}

// record encodes the pass into rp: one fullscreen triangle through the
// post shader.
func (pp *postProcess) record(rp hal.RenderPassEncoder) {
	rp.SetPipeline(pp.pipeline)
	rp.SetBindGroup(0, pp.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
}

func (pp *postProcess) destroyOffscreen() {
	if pp.bindGroup != nil {
		pp.device.DestroyBindGroup(pp.bindGroup)
		pp.bindGroup = nil
	}
	if pp.offscreenView != nil {
		pp.device.DestroyTextureView(pp.offscreenView)
		pp.offscreenView = nil
	}
	if pp.offscreenTex != nil {
		pp.device.DestroyTexture(pp.offscreenTex)
		pp.offscreenTex = nil
	}
	pp.offscreenSize = image.Point{}
}

// destroyChain releases everything in reverse creation order.
func (pp *postProcess) destroyChain() {
	pp.destroyOffscreen()
	if pp.pipeline != nil {
		pp.device.DestroyRenderPipeline(pp.pipeline)
		pp.pipeline = nil
	}
	if pp.uniformBuf != nil {
		pp.device.DestroyBuffer(pp.uniformBuf)
		pp.uniformBuf = nil
	}
	if pp.sampler != nil {
		pp.device.DestroySampler(pp.sampler)
		pp.sampler = nil
	}
	if pp.pipeLayout != nil {
		pp.device.DestroyPipelineLayout(pp.pipeLayout)
		pp.pipeLayout = nil
	}
	if pp.bindLayout != nil {
		pp.device.DestroyBindGroupLayout(pp.bindLayout)
		pp.bindLayout = nil
	}
	if pp.shader != nil {
		pp.device.DestroyShaderModule(pp.shader)
		pp.shader = nil
	}
}
