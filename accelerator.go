package splat

import (
	"errors"
	"sync"
)

// Accelerator runs the compaction, sort and composite stages of a frame.
//
// The software accelerator is built into every Renderer. A GPU accelerator
// is provided by the gpu package and registered via blank import:
//
//	import _ "github.com/gogpu/splat/gpu"
//
// The frame methods are called in pipeline order from the goroutine that
// calls Renderer.Render. Implementations may keep per-context resources;
// Release is called when the owning Renderer is closed.
type Accelerator interface {
	// Name returns the accelerator name (e.g., "software", "wgpu").
	Name() string

	// Init prepares device resources. It is called by NewRenderer before
	// the first frame and must be idempotent.
	Init() error

	// Close releases all resources.
	Close()

	// Compact culls the loaded splats and packs the survivors. It must
	// call RecordCompaction on rc.
	Compact(rc *RenderContext) error

	// Sort orders the compacted entries by depth key.
	Sort(rc *RenderContext) error

	// Composite writes the draw record and blends the sorted instances into
	// the context G-buffer. It must call RecordDraw on rc.
	Composite(rc *RenderContext) error

	// Release drops the resources held for rc.
	Release(rc *RenderContext)
}

// DeviceProviderAware is an optional interface for accelerators that can
// share a GPU device with a host application.
type DeviceProviderAware interface {
	SetDeviceProvider(provider DeviceHandle) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator registers the GPU accelerator used by
// WithBackend(BackendGPU). Subsequent calls replace and close the previous
// one. Init is deferred to NewRenderer so that a missing device surfaces
// as a renderer error.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("splat: accelerator must not be nil")
	}
	propagateLogger(a, Logger())

	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil && old != a {
		old.Close()
	}
	return nil
}

// RegisteredAccelerator returns the registered GPU accelerator, or nil.
func RegisteredAccelerator() Accelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// SetAcceleratorDeviceProvider passes a shared device to the registered
// accelerator. It is a no-op when none is registered or it cannot share.
func SetAcceleratorDeviceProvider(provider DeviceHandle) error {
	a := RegisteredAccelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
