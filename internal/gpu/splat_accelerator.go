// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/splat"
	"github.com/gogpu/splat/internal/splatcompute"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNotReady is returned by frame operations before Init succeeded.
var ErrNotReady = errors.New("splat compute: accelerator not initialized")

// SplatAccelerator runs the compaction, radix sort and composite stages as
// compute shaders. It implements splat.Accelerator and
// splat.DeviceProviderAware.
//
// Splat data stays resident on the device: it is uploaded again only when
// the context's splat version changes. Each render context gets its own
// buffer set, released with Release.
type SplatAccelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	dispatcher *SplatComputeDispatcher
	contexts   map[*splat.RenderContext]*contextState

	gpuReady       bool
	externalDevice bool // true when using shared device (don't destroy on Close)
	adapterName    string
}

// contextState is the device state of one render context.
type contextState struct {
	bufs     *SplatComputeBuffers
	version  uint64
	uploaded bool
	config   SplatComputeConfig
}

// Interface compliance checks.
var _ splat.Accelerator = (*SplatAccelerator)(nil)
var _ splat.DeviceProviderAware = (*SplatAccelerator)(nil)

// Name returns the accelerator identifier.
func (a *SplatAccelerator) Name() string { return "splat-compute" }

// Init opens a standalone Vulkan device unless a shared device was set via
// SetDeviceProvider, then compiles the pipelines. It is idempotent.
func (a *SplatAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dispatcher != nil && a.dispatcher.Initialized() {
		return nil
	}
	if !a.gpuReady {
		if err := a.initGPU(); err != nil {
			a.destroyDevice()
			return fmt.Errorf("splat compute: %w", err)
		}
	}
	return a.initDispatcher()
}

func (a *SplatAccelerator) initDispatcher() error {
	dispatcher := NewSplatComputeDispatcher(a.device, a.queue)
	if err := dispatcher.Init(); err != nil {
		return fmt.Errorf("splat compute: pipeline init: %w", err)
	}
	a.dispatcher = dispatcher
	return nil
}

// Close releases all GPU resources held by the accelerator.
func (a *SplatAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseAll()
	if a.dispatcher != nil {
		a.dispatcher.Close()
		a.dispatcher = nil
	}
	a.destroyDevice()
}

// destroyDevice drops the device, destroying it only when it is ours.
func (a *SplatAccelerator) destroyDevice() {
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.instance = nil
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
	a.adapterName = ""
}

// releaseAll destroys the buffers of every context.
func (a *SplatAccelerator) releaseAll() {
	for rc, st := range a.contexts {
		a.dispatcher.DestroyBuffers(st.bufs)
		delete(a.contexts, rc)
	}
}

// SetLogger sets the logger for the GPU accelerator and its internal packages.
// Called by splat.SetLogger to propagate logging configuration.
func (a *SplatAccelerator) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// SetDeviceProvider switches the accelerator to a shared GPU device. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. Buffers allocated on the previous device are
// released.
func (a *SplatAccelerator) SetDeviceProvider(provider splat.DeviceHandle) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("splat compute: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("splat compute: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("splat compute: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dispatcher != nil {
		a.releaseAll()
		a.dispatcher.Close()
		a.dispatcher = nil
	}
	a.destroyDevice()

	a.device = device
	a.queue = queue
	a.externalDevice = true
	a.gpuReady = true

	if err := a.initDispatcher(); err != nil {
		return err
	}
	slogger().Debug("splat compute: switched to shared GPU device")
	return nil
}

// Compact uploads changed splat data and the frame uniform, then runs the
// compaction stage and records the visible counter on rc.
func (a *SplatAccelerator) Compact(rc *splat.RenderContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, err := a.contextFor(rc)
	if err != nil {
		return err
	}

	if !st.uploaded || st.version != rc.SplatsVersion() {
		if err := a.dispatcher.UploadSplats(st.bufs, rc.Splats()); err != nil {
			return err
		}
		st.uploaded = true
		st.version = rc.SplatsVersion()
		slogger().Debug("splat compute: splats uploaded", "count", rc.SplatCount(), "version", st.version)
	}

	view := rc.FrameView()
	if view.DepthTest {
		if err := a.dispatcher.UploadDepth(st.bufs, rc.ReferenceDepth()); err != nil {
			return err
		}
	}
	st.config = frameConfig(view, rc.SplatCount(), rc.Capacity())

	visible, err := a.dispatcher.Compact(st.bufs, st.config)
	if err != nil {
		return err
	}
	rc.RecordCompaction(int(visible))
	return nil
}

// Sort orders the compacted pairs on the device.
func (a *SplatAccelerator) Sort(rc *splat.RenderContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, err := a.contextFor(rc)
	if err != nil {
		return err
	}
	return a.dispatcher.Sort(st.bufs, uint32(rc.VisibleCount())) //nolint:gosec // bounded by capacity
}

// Composite writes the draw record, bins and blends the sorted instances per
// tile, then reads the draw record and G-buffer back into rc.
func (a *SplatAccelerator) Composite(rc *splat.RenderContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, err := a.contextFor(rc)
	if err != nil {
		return err
	}
	draw, err := a.dispatcher.Composite(st.bufs, st.config, rc.GBuffer())
	if err != nil {
		return err
	}
	rc.RecordDraw(draw)
	return nil
}

// Release destroys the buffers held for rc.
func (a *SplatAccelerator) Release(rc *splat.RenderContext) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.contexts[rc]
	if !ok {
		return
	}
	a.dispatcher.DestroyBuffers(st.bufs)
	delete(a.contexts, rc)
}

// contextFor returns the device state of rc, allocating it on first use.
func (a *SplatAccelerator) contextFor(rc *splat.RenderContext) (*contextState, error) {
	if a.dispatcher == nil || !a.dispatcher.Initialized() {
		return nil, ErrNotReady
	}
	if st, ok := a.contexts[rc]; ok {
		return st, nil
	}

	layout := SplatComputeLayout{
		Capacity:     uint32(rc.Capacity()), //nolint:gosec // capacity is bounded by MaxSplats
		Width:        uint32(rc.Width()),    //nolint:gosec // positive
		Height:       uint32(rc.Height()),   //nolint:gosec // positive
		TieBreakBits: splatcompute.TieBreakBits(rc.Capacity()),
	}
	bufs, err := a.dispatcher.AllocateBuffers(layout)
	if err != nil {
		return nil, err
	}
	if a.contexts == nil {
		a.contexts = make(map[*splat.RenderContext]*contextState)
	}
	st := &contextState{bufs: bufs}
	a.contexts[rc] = st
	return st, nil
}

// frameConfig builds the frame uniform from the context view.
func frameConfig(v splat.FrameView, splatCount, capacity int) SplatComputeConfig {
	return SplatComputeConfig{
		View:         v.View,
		Projection:   v.Projection,
		NormalMatrix: v.NormalMatrix,
		Width:        uint32(v.Width),  //nolint:gosec // positive
		Height:       uint32(v.Height), //nolint:gosec // positive
		Near:         v.Near,
		Far:          v.Far,
		GaussianStd:  v.GaussianStd,
		Order:        v.Order,
		DepthTest:    v.DepthTest,
		DepthBias:    v.DepthBias,
		SplatCount:   uint32(splatCount), //nolint:gosec // bounded by capacity
		Capacity:     uint32(capacity),   //nolint:gosec // bounded by MaxSplats
	}
}

// initGPU creates a standalone Vulkan device for compute-only use.
func (a *SplatAccelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	a.gpuReady = true
	a.adapterName = selected.Info.Name

	slogger().Info("splat compute: GPU initialized (standalone)", "adapter", a.adapterName)
	return nil
}

// AdapterName returns the name of the standalone adapter, or "" when a
// shared device is used.
func (a *SplatAccelerator) AdapterName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adapterName
}
