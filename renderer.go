package termatlas

import (
	"fmt"
	"image"
	"math"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termatlas/atlas"
	"github.com/gogpu/termatlas/glyphdev"
	"github.com/gogpu/termatlas/quad"
)

// Config adjusts renderer construction. The zero value is valid.
type Config struct {
	// MaxTextureDim overrides the assumed maximum 2D texture dimension
	// used to clamp the glyph atlas size. 0 uses the default.
	MaxTextureDim int

	// Engine is the vector text engine rasterizing outline glyphs. Nil
	// selects the built-in CPU engine from the glyphdev package.
	Engine atlas.Engine
}

// Renderer renders terminal frames. One goroutine owns a Renderer and all
// of its inputs for the duration of each Render call; no rendering
// operation suspends.
//
// Renderer is not safe for concurrent use. The only cross-thread member is
// the custom-shader invalidation deadline, which a file watcher may poke
// through InvalidateCustomShader.
type Renderer struct {
	device    hal.Device
	queue     hal.Queue
	swapChain SwapChain

	res  *resources
	post *postProcess

	stream *quad.Stream
	atlas  *atlas.Atlas
	cache  *atlas.GlyphCache
	rast   *atlas.Rasterizer

	// Copies of the payload's generation counters; a mismatch triggers a
	// settings sync.
	generation     uint32
	fontGeneration uint32
	miscGeneration uint32
	cellCount      image.Point
	targetSize     image.Point
	haveGeneration bool

	// metrics is the rasterizer view of the current font settings,
	// refreshed at settings sync.
	metrics atlas.FontMetrics

	fontChangedResetAtlas      bool
	skipForegroundBitmapUpload bool

	cursorRects []cursorRect

	// shaderInvalidation holds a unix-nano deadline after which the
	// custom shader is recompiled, or math.MaxInt64 when idle. Written
	// with a compare-and-swap from the watcher callback; this is the only
	// cross-thread state in the renderer.
	shaderInvalidation atomic.Int64

	closed bool
}

// New creates a renderer on an existing device and queue. The swap chain is
// the presentation contract; use NewOffscreenSwapChain for headless
// rendering.
func New(device hal.Device, queue hal.Queue, swapChain SwapChain, cfg Config) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if swapChain == nil {
		return nil, ErrNilSwapChain
	}
	if cfg.Engine == nil {
		cfg.Engine = glyphdev.NewEngine()
	}

	res, err := newResources(device, queue)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		device:    device,
		queue:     queue,
		swapChain: swapChain,
		res:       res,
		post:      newPostProcess(device, queue),
		stream:    quad.NewStream(),
		atlas:     atlas.New(cfg.MaxTextureDim),
		cache:     atlas.NewGlyphCache(),
	}
	r.rast = atlas.NewRasterizer(r.atlas, r.cache, cfg.Engine)
	r.shaderInvalidation.Store(math.MaxInt64)
	Logger().Info("termatlas: renderer created")
	return r, nil
}

// NewFromProvider creates a renderer from a gpucontext device provider
// (e.g. a gogpu application). The provider must expose the underlying
// wgpu/hal device and queue.
func NewFromProvider(provider gpucontext.DeviceProvider, swapChain SwapChain, cfg Config) (*Renderer, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNoHALProvider
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, ErrNoHALProvider
	}
	return New(device, queue, swapChain, cfg)
}

// WaitUntilCanRender blocks until the swap chain can take another frame.
func (r *Renderer) WaitUntilCanRender() {
	if r.swapChain != nil {
		r.swapChain.WaitUntilCanRender()
	}
}

// RequiresContinuousRedraw reports whether the active post-process shader
// animates over time and therefore needs a frame on every vsync.
func (r *Renderer) RequiresContinuousRedraw() bool {
	return r.post.requiresContinuousRedraw
}

// InvalidateCustomShader schedules a custom shader recompile shortly after
// now. Safe to call from any goroutine; intended for file watchers during
// shader development.
func (r *Renderer) InvalidateCustomShader() {
	deadline := time.Now().Add(100 * time.Millisecond).UnixNano()
	r.shaderInvalidation.CompareAndSwap(math.MaxInt64, deadline)
}

// Render produces one frame from the payload. A frame is atomic: it cannot
// be cancelled, and recoverable errors (atlas overflow, custom shader
// failure) are handled within it. Device loss is returned wrapping
// ErrDeviceLost.
func (r *Renderer) Render(p *RenderPayload) error {
	if r.closed {
		return ErrRendererClosed
	}

	if err := r.syncSettings(p); err != nil {
		return err
	}
	r.updateCustomShader(p)

	r.drawBackground(p)
	r.drawCursorPart1(p)
	if err := r.drawText(p); err != nil {
		return err
	}
	r.drawGridlines(p)
	r.drawCursorPart2(p)
	r.drawSelection(p)

	if err := r.flush(p); err != nil {
		return err
	}

	if r.post.Active() {
		if err := r.executePostProcess(p); err != nil {
			return err
		}
	}

	return r.swapChain.Present(p)
}

// syncSettings reconciles the renderer with the payload's generation
// counters, recreating whatever changed.
func (r *Renderer) syncSettings(p *RenderPayload) error {
	if r.haveGeneration && r.generation == p.Generation {
		return nil
	}

	err := r.swapChain.UpdateSettings(p, nil, nil)
	if err != nil {
		return err
	}

	fontChanged := !r.haveGeneration || r.fontGeneration != p.FontGeneration
	miscChanged := !r.haveGeneration || r.miscGeneration != p.MiscGeneration
	cellCountChanged := r.cellCount != p.CellCount
	targetChanged := r.targetSize != p.TargetSize

	if fontChanged {
		r.metrics = p.Font.Metrics()
		r.fontChangedResetAtlas = true
		r.rast.FontChanged()
		// Glyph geometry changed wholesale; restart the instance size
		// regime too.
		r.stream.Reset()
		r.res.resetInstanceBuffer()
	}
	if miscChanged {
		if err := r.post.recreate(p); err != nil {
			return err
		}
	}
	if cellCountChanged {
		if err := r.res.ensureColorBitmap(p.CellCount); err != nil {
			return err
		}
	}
	if r.post.Active() && (targetChanged || miscChanged) {
		if err := r.post.ensureOffscreen(p.TargetSize); err != nil {
			return err
		}
	}

	r.res.updateUniforms(p)

	r.generation = p.Generation
	r.fontGeneration = p.FontGeneration
	r.miscGeneration = p.MiscGeneration
	r.cellCount = p.CellCount
	r.targetSize = p.TargetSize
	r.haveGeneration = true
	return nil
}

// updateCustomShader recompiles the custom post-process shader once the
// watcher-set deadline passes. The previous chain is torn down first, so a
// shader that fails to compile leaves the pass disabled.
func (r *Renderer) updateCustomShader(p *RenderPayload) {
	deadline := r.shaderInvalidation.Load()
	if deadline == math.MaxInt64 || deadline > time.Now().UnixNano() {
		return
	}
	r.shaderInvalidation.Store(math.MaxInt64)

	if err := r.post.recreate(p); err != nil {
		Logger().Warn("termatlas: custom shader reload failed", "error", err)
		return
	}
	if r.post.Active() {
		if err := r.post.ensureOffscreen(p.TargetSize); err != nil {
			Logger().Warn("termatlas: custom shader offscreen target failed", "error", err)
		}
	}
}

// renderTargetView returns the view the cell pass renders into: the
// offscreen target while a post-process pass is active, the back buffer
// otherwise.
func (r *Renderer) renderTargetView() (hal.TextureView, error) {
	if r.post.Active() {
		return r.post.offscreenView, nil
	}
	_, view, err := r.swapChain.Buffer()
	return view, err
}

// flush uploads the atlas, the color bitmap and the instance stream, then
// issues one DrawIndexed per blend span. It may run more than once per
// frame: the atlas-overflow retry path flushes before resetting so emitted
// quads still reference the texels they were packed against.
func (r *Renderer) flush(p *RenderPayload) error {
	if r.stream.Len() == 0 {
		return nil
	}

	// Writes into the atlas image are complete once the drawing bracket
	// closed; upload before sampling.
	if err := r.rast.EndDrawing(); err != nil {
		return err
	}
	if r.atlas.TakeResized() {
		if err := r.res.ensureAtlasTexture(r.atlas.Size()); err != nil {
			return err
		}
	}
	if r.atlas.TakeDirty() {
		r.res.uploadAtlas(r.atlas.Image())
	}

	r.res.uploadColorBitmap(p, r.skipForegroundBitmapUpload)

	if err := r.res.ensureInstanceCapacity(r.stream.Len(), p.CellCount); err != nil {
		return err
	}
	r.queue.WriteBuffer(r.res.instanceBuf, 0, r.stream.Bytes())

	if err := r.res.ensureBindGroup(); err != nil {
		return err
	}
	view, err := r.renderTargetView()
	if err != nil {
		return err
	}

	spans := r.stream.Spans()

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "cell_encoder"})
	if err != nil {
		return fmt.Errorf("termatlas: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("cell_frame"); err != nil {
		return fmt.Errorf("termatlas: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cell_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetVertexBuffer(0, r.res.vertexBuf, 0)
	rp.SetVertexBuffer(1, r.res.instanceBuf, 0)
	rp.SetIndexBuffer(r.res.indexBuf, gputypes.IndexFormatUint16, 0)
	rp.SetBindGroup(0, r.res.bindGroup, nil)

	current := quad.BlendNone
	for _, span := range spans {
		if span.Blend != current {
			switch span.Blend {
			case quad.BlendInvert:
				rp.SetPipeline(r.res.pipeInvert)
			default:
				rp.SetPipeline(r.res.pipeStandard)
			}
			current = span.Blend
		}
		rp.DrawIndexed(6, uint32(span.Count), 0, 0, uint32(span.Start))
	}
	rp.End()

	if err := r.submit(encoder); err != nil {
		return err
	}

	r.stream.Drain()
	Logger().Debug("termatlas: frame flushed", "spans", len(spans))
	return nil
}

// executePostProcess runs the post-process pass from the offscreen target
// onto the back buffer.
func (r *Renderer) executePostProcess(p *RenderPayload) error {
	if err := r.post.ensureOffscreen(p.TargetSize); err != nil {
		return err
	}
	if err := r.post.ensureBindGroup(); err != nil {
		return err
	}
	r.post.updateUniforms(p)

	_, view, err := r.swapChain.Buffer()
	if err != nil {
		return err
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "post_encoder"})
	if err != nil {
		return fmt.Errorf("termatlas: create post encoder: %w", err)
	}
	if err := encoder.BeginEncoding("post_pass"); err != nil {
		return fmt.Errorf("termatlas: begin post encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "post_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		}},
	})
	r.post.record(rp)
	rp.End()

	return r.submit(encoder)
}

// submit finishes the encoder, submits it and waits for retirement.
func (r *Renderer) submit(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("termatlas: end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("termatlas: create fence: %w", err)
	}
	defer r.device.DestroyFence(fence)

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("termatlas: submit: %w", err)
	}
	ok, err := r.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return fmt.Errorf("termatlas: wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

// Atlas exposes the glyph atlas, mainly for tests and diagnostics.
func (r *Renderer) Atlas() *atlas.Atlas { return r.atlas }

// GlyphCache exposes the glyph cache, mainly for tests and diagnostics.
func (r *Renderer) GlyphCache() *atlas.GlyphCache { return r.cache }

// Stream exposes the instance stream, mainly for tests and diagnostics.
func (r *Renderer) Stream() *quad.Stream { return r.stream }

// Close releases all device resources. The renderer cannot render
// afterwards. In-flight GPU work has already retired because every submit
// waits on its fence.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.post.destroyChain()
	r.res.destroy()
	Logger().Info("termatlas: renderer closed")
}
