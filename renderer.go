package splat

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/internal/parallel"
	"github.com/gogpu/splat/internal/sampler"
)

// FrameStats reports the counters of the last rendered frame.
type FrameStats struct {
	// Total is the number of loaded splats.
	Total int
	// Visible is the number of compacted splats.
	Visible int
	// Dropped is the number of splats lost to capacity.
	Dropped int
	// Drawn is the instance count of the draw record.
	Drawn int

	FrameTime   time.Duration
	PassTimings []PassTiming
}

// Renderer draws a splat cloud through the fixed pass pipeline. It owns a
// RenderContext and a CPU worker pool. A Renderer is not safe for
// concurrent use.
type Renderer struct {
	rc       *RenderContext
	pool     *parallel.WorkerPool
	accel    Accelerator
	backend  Backend
	pipeline *Pipeline
	conv     *conversionPass
	stats    FrameStats
	closed   bool
}

// NewRenderer creates a renderer for a width x height target.
//
// With WithBackend(BackendGPU) the registered accelerator is initialized
// here; a missing accelerator returns ErrNoAccelerator and an Init failure
// is returned as is. There is no CPU fallback.
func NewRenderer(width, height int, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var accel Accelerator
	pool := parallel.NewWorkerPool(o.workers)
	switch o.backend {
	case BackendSoftware:
		accel = newSoftwareAccelerator(pool)
	case BackendGPU:
		a := RegisteredAccelerator()
		if a == nil {
			pool.Close()
			return nil, ErrNoAccelerator
		}
		if err := a.Init(); err != nil {
			pool.Close()
			return nil, fmt.Errorf("splat: %s accelerator init: %w", a.Name(), err)
		}
		accel = a
	default:
		pool.Close()
		return nil, fmt.Errorf("splat: unknown backend %d", int(o.backend))
	}

	rc := NewRenderContext(width, height, o.capacity)
	rc.Config = o.frame
	rc.pool = pool

	conv := &conversionPass{sampler: sampler.Parallel{Pool: pool}, scaleFactor: 1}
	r := &Renderer{
		rc:       rc,
		pool:     pool,
		accel:    accel,
		backend:  o.backend,
		pipeline: newPipeline(accel, conv),
		conv:     conv,
	}
	Logger().Debug("splat: renderer created",
		"width", rc.width, "height", rc.height, "capacity", rc.capacity,
		"backend", o.backend, "accelerator", accel.Name(), "workers", pool.Workers())
	return r, nil
}

// Close releases the worker pool and the accelerator resources held for
// this renderer. The registered GPU accelerator itself stays open.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.accel.Release(r.rc)
	r.pool.Close()
}

// Context returns the render context.
func (r *Renderer) Context() *RenderContext { return r.rc }

// Pipeline returns the pass pipeline.
func (r *Renderer) Pipeline() *Pipeline { return r.pipeline }

// Backend returns the backend selected at creation.
func (r *Renderer) Backend() Backend { return r.backend }

// AcceleratorName returns the name of the accelerator running the frame
// stages.
func (r *Renderer) AcceleratorName() string { return r.accel.Name() }

// SetSplats loads a splat cloud and returns how many splats did not fit.
func (r *Renderer) SetSplats(s []Splat) (dropped int) {
	return r.rc.LoadSplats(s)
}

// SetMeshes sets the meshes converted by the conversion pass and
// rasterized by the depth prepass, and arms conversion. density follows
// Convert: 1 samples the scene diagonal at about 1024 splats.
func (r *Renderer) SetMeshes(meshes []Mesh, density float32) {
	r.rc.SetMeshes(meshes)
	r.rc.depthValid = false
	r.conv.sub = densitySubdivision(meshes, density, DefaultMaxSubdivisions)
	_ = r.pipeline.SetEnabled(PassConversion, len(meshes) > 0)
	r.syncDepthPrepass()
}

// Reconvert arms the conversion pass for the next frame.
func (r *Renderer) Reconvert() {
	_ = r.pipeline.SetEnabled(PassConversion, len(r.rc.meshes) > 0)
}

// SetCamera sets the view and projection of the next frame. A zero Aspect
// uses the target aspect ratio.
func (r *Renderer) SetCamera(c Camera) {
	if c.Aspect <= 0 {
		c.Aspect = float32(r.rc.width) / float32(r.rc.height)
	}
	r.rc.View = c.View()
	r.rc.Projection = c.Projection()
	r.rc.Near, r.rc.Far = c.Near, c.Far
}

// SetModel sets the model matrix applied to splats and meshes.
func (r *Renderer) SetModel(m mgl32.Mat4) { r.rc.Model = m }

// SetGaussianStd sets the splat scale multiplier.
func (r *Renderer) SetGaussianStd(std float32) { r.rc.Config.GaussianStd = std }

// SetRenderMode sets the relighting output.
func (r *Renderer) SetRenderMode(m RenderMode) { r.rc.Config.Mode = m }

// SetLighting sets the light of the lit render mode.
func (r *Renderer) SetLighting(l Lighting) { r.rc.Config.Lighting = l }

// SetSortOrder sets the depth sort direction.
func (r *Renderer) SetSortOrder(o SortOrder) { r.rc.Config.Order = o }

// SetBackground sets the color the splats are composited over.
func (r *Renderer) SetBackground(c color.Color) {
	r.rc.Config.Background = color.RGBAModel.Convert(c).(color.RGBA)
}

// SetDepthTest enables culling against the mesh depth prepass. It only
// takes effect while meshes are set.
func (r *Renderer) SetDepthTest(enabled bool, bias float32) {
	r.rc.Config.DepthTest = enabled
	r.rc.Config.DepthBias = bias
	r.syncDepthPrepass()
}

func (r *Renderer) syncDepthPrepass() {
	on := r.rc.Config.DepthTest && len(r.rc.meshes) > 0
	_ = r.pipeline.SetEnabled(PassDepthPrepass, on)
	if !on {
		r.rc.depthValid = false
	}
}

// EnablePass arms the named pass.
func (r *Renderer) EnablePass(name string) error {
	return r.pipeline.SetEnabled(name, true)
}

// DisablePass disarms the named pass.
func (r *Renderer) DisablePass(name string) error {
	return r.pipeline.SetEnabled(name, false)
}

// Render runs one frame and returns the target image. The image is owned
// by the renderer and overwritten by the next frame.
func (r *Renderer) Render() (*image.RGBA, error) {
	if r.closed {
		return nil, ErrClosed
	}
	start := time.Now()
	err := r.pipeline.Execute(r.rc)

	r.stats = FrameStats{
		Total:       r.rc.SplatCount(),
		Visible:     r.rc.VisibleCount(),
		Dropped:     r.rc.Dropped(),
		Drawn:       int(r.rc.draw.InstanceCount),
		FrameTime:   time.Since(start),
		PassTimings: append([]PassTiming(nil), r.rc.timings...),
	}
	if err != nil {
		return nil, err
	}
	Logger().Debug("splat: frame",
		"total", r.stats.Total, "visible", r.stats.Visible, "drawn", r.stats.Drawn,
		"elapsed", r.stats.FrameTime)
	return r.rc.image, nil
}

// Stats returns the counters of the last frame.
func (r *Renderer) Stats() FrameStats { return r.stats }

// VisibleCount returns the number of splats compacted by the last frame.
func (r *Renderer) VisibleCount() int { return r.rc.VisibleCount() }
