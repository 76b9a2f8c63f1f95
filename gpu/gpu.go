//go:build !nogpu

// Package gpu registers the compute-shader accelerator with the splat
// renderer.
//
// Import this package for its side effect, then select the GPU backend:
//
//	import _ "github.com/gogpu/splat/gpu"
//
//	r, err := splat.NewRenderer(1280, 720, splat.WithBackend(splat.BackendGPU))
//
// Registration never opens a device. NewRenderer initializes the
// accelerator and returns its error when no Vulkan device is available;
// there is no silent CPU fallback. Build with -tags nogpu to exclude the
// GPU stack entirely.
package gpu

import (
	"github.com/gogpu/splat"
	gpuimpl "github.com/gogpu/splat/internal/gpu"
)

func init() {
	if err := splat.RegisterAccelerator(&gpuimpl.SplatAccelerator{}); err != nil {
		splat.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider configures the GPU accelerator to use a shared GPU device
// from an external provider (e.g., gogpu). This avoids creating a separate
// GPU instance.
//
// The provider must also expose HalDevice() and HalQueue() returning the
// wgpu HAL device and queue. Call this before the first NewRenderer with
// the GPU backend.
func SetDeviceProvider(provider splat.DeviceHandle) error {
	return splat.SetAcceleratorDeviceProvider(provider)
}
