package termatlas

import "errors"

// Renderer errors.
var (
	// ErrDeviceLost is surfaced when the device was lost during present.
	// The owner must recreate the device and discard this renderer.
	ErrDeviceLost = errors.New("termatlas: graphics device lost")

	// ErrRendererClosed is returned when rendering after Close.
	ErrRendererClosed = errors.New("termatlas: renderer is closed")

	// ErrNilDevice is returned by the constructors for a nil device or
	// queue.
	ErrNilDevice = errors.New("termatlas: nil device or queue")

	// ErrNilSwapChain is returned by the constructors for a nil swap
	// chain.
	ErrNilSwapChain = errors.New("termatlas: nil swap chain")

	// ErrNoHALProvider is returned when a device provider does not expose
	// the underlying wgpu/hal device and queue.
	ErrNoHALProvider = errors.New("termatlas: device provider does not expose HAL types")

	// ErrShaderCompile wraps custom post-process shader compilation
	// failures reported through the payload's warning callback.
	ErrShaderCompile = errors.New("termatlas: custom shader compilation failed")
)
