package splat

import "errors"

var (
	// ErrNoAccelerator is returned when the GPU backend is requested but no
	// accelerator is registered. Import github.com/gogpu/splat/gpu.
	ErrNoAccelerator = errors.New("splat: no GPU accelerator registered")

	// ErrCapacity is returned by LoadSplatsStrict when the splats do not fit.
	ErrCapacity = errors.New("splat: splat capacity exceeded")

	// ErrUnknownPass is returned for a pass name the pipeline does not know.
	ErrUnknownPass = errors.New("splat: unknown render pass")

	// ErrEmptyScene is returned when conversion produced no splats.
	ErrEmptyScene = errors.New("splat: scene produced no splats")

	// ErrClosed is returned by Render after Close.
	ErrClosed = errors.New("splat: renderer is closed")

	// ErrUnsupportedFormat is returned for an unknown point cloud format.
	ErrUnsupportedFormat = errors.New("splat: unsupported point cloud format")
)
