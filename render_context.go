package splat

import (
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
	"github.com/gogpu/splat/internal/splatcompute"
)

// FrameConfig is the per-frame state the passes read. The Renderer setters
// write it between frames.
type FrameConfig struct {
	GaussianStd float32
	Mode        RenderMode
	Order       SortOrder
	Lighting    Lighting
	DepthTest   bool
	DepthBias   float32
	Background  color.RGBA
}

// DefaultFrameConfig returns the initial frame configuration.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		GaussianStd: 0.5,
		Mode:        RenderModeLit,
		Order:       BackToFront,
		Lighting:    DefaultLighting(),
		DepthBias:   0.01,
		Background:  color.RGBA{A: 255},
	}
}

// FrameView is the camera and visibility state handed to accelerators.
type FrameView struct {
	// View is the combined view and model matrix.
	View       mgl32.Mat4
	Projection mgl32.Mat4
	// NormalMatrix takes model normals to world space.
	NormalMatrix mgl32.Mat3

	Width, Height int
	Near, Far     float32
	GaussianStd   float32
	Order         SortOrder
	DepthTest     bool
	DepthBias     float32
}

// PassTiming is the wall-clock duration of one executed pass.
type PassTiming struct {
	Name     string
	Duration time.Duration
}

// RenderContext owns every buffer the pass pipeline reads and writes. All
// buffers are allocated once by NewRenderContext; each pass writes only its
// own region:
//
//	conversion     splats
//	depth_prepass  reference depth
//	compaction     keys, values, quads, visible counter
//	radix_sort     keys, values and their ping-pong twins
//	composite      draw record, G-buffer
//	relighting     target image
//
// A RenderContext is not safe for concurrent use.
type RenderContext struct {
	width, height int
	capacity      int

	splats       []Splat
	splatCount   int
	splatVersion uint64
	loadDropped  int

	meshes []Mesh

	keys, values       []uint32
	keysAlt, valuesAlt []uint32
	sortedValues       []uint32
	quads              []splatcompute.Quad

	depth      []float32
	depthValid bool

	counter atomic.Uint32
	visible int
	dropped int
	draw    DrawIndirectArgs

	gbuf  *GBuffer
	image *image.RGBA

	timings []PassTiming
	pool    *parallel.WorkerPool

	// View, Projection and Model are the camera matrices of the next frame.
	View, Projection, Model mgl32.Mat4
	Near, Far               float32

	// Config is the frame configuration of the next frame.
	Config FrameConfig
}

// NewRenderContext allocates a context for a width x height target holding
// up to capacity splats. A capacity below 1 uses MaxSplats.
func NewRenderContext(width, height, capacity int) *RenderContext {
	if capacity <= 0 {
		capacity = MaxSplats
	}
	width, height = max(width, 1), max(height, 1)
	cam := DefaultCamera(float32(width) / float32(height))
	return &RenderContext{
		width:      width,
		height:     height,
		capacity:   capacity,
		splats:     make([]Splat, capacity),
		keys:       make([]uint32, capacity),
		values:     make([]uint32, capacity),
		keysAlt:    make([]uint32, capacity),
		valuesAlt:  make([]uint32, capacity),
		quads:      make([]splatcompute.Quad, capacity),
		depth:      make([]float32, width*height),
		gbuf:       core.NewGBuffer(width, height),
		image:      image.NewRGBA(image.Rect(0, 0, width, height)),
		View:       cam.View(),
		Projection: cam.Projection(),
		Model:      mgl32.Ident4(),
		Near:       cam.Near,
		Far:        cam.Far,
		Config:     DefaultFrameConfig(),
	}
}

// Width returns the target width in pixels.
func (rc *RenderContext) Width() int { return rc.width }

// Height returns the target height in pixels.
func (rc *RenderContext) Height() int { return rc.height }

// Capacity returns the maximum number of splats.
func (rc *RenderContext) Capacity() int { return rc.capacity }

// SplatCount returns the number of loaded splats.
func (rc *RenderContext) SplatCount() int { return rc.splatCount }

// VisibleCount returns the number of splats compacted by the last frame.
func (rc *RenderContext) VisibleCount() int { return rc.visible }

// Dropped returns the number of splats lost to capacity in the last load
// and the last compaction.
func (rc *RenderContext) Dropped() int { return rc.loadDropped + rc.dropped }

// DrawArgs returns the draw record of the last frame.
func (rc *RenderContext) DrawArgs() DrawIndirectArgs { return rc.draw }

// SortedValues returns the splat indices of the last frame in draw order.
// It is nil when the sort ran on a GPU.
func (rc *RenderContext) SortedValues() []uint32 { return rc.sortedValues }

// GBuffer returns the composited attributes of the last frame.
func (rc *RenderContext) GBuffer() *GBuffer { return rc.gbuf }

// Image returns the relit target image.
func (rc *RenderContext) Image() *image.RGBA { return rc.image }

// Splats returns the loaded splats. The slice aliases the context storage.
func (rc *RenderContext) Splats() []Splat { return rc.splats[:rc.splatCount] }

// SplatsVersion changes every time splats are loaded.
func (rc *RenderContext) SplatsVersion() uint64 { return rc.splatVersion }

// Meshes returns the meshes used by conversion and the depth prepass.
func (rc *RenderContext) Meshes() []Mesh { return rc.meshes }

// SetMeshes replaces the source meshes.
func (rc *RenderContext) SetMeshes(meshes []Mesh) { rc.meshes = meshes }

// ReferenceDepth returns the depth prepass buffer, or nil when the prepass
// has not produced one.
func (rc *RenderContext) ReferenceDepth() []float32 {
	if !rc.depthValid {
		return nil
	}
	return rc.depth
}

// Timings returns the pass timings of the last frame.
func (rc *RenderContext) Timings() []PassTiming { return rc.timings }

// LoadSplats copies at most Capacity splats into the context and returns
// how many did not fit.
func (rc *RenderContext) LoadSplats(s []Splat) (dropped int) {
	n := copy(rc.splats, s)
	rc.splatCount = n
	rc.splatVersion++
	rc.loadDropped = len(s) - n
	if rc.loadDropped > 0 {
		Logger().Warn("splat: capacity exceeded on load", "capacity", rc.capacity, "dropped", rc.loadDropped)
	}
	return rc.loadDropped
}

// LoadSplatsStrict is LoadSplats that refuses input larger than Capacity.
func (rc *RenderContext) LoadSplatsStrict(s []Splat) error {
	if len(s) > rc.capacity {
		return ErrCapacity
	}
	rc.LoadSplats(s)
	return nil
}

// FrameView returns the camera state of the next frame.
func (rc *RenderContext) FrameView() FrameView {
	return FrameView{
		View:         rc.View.Mul4(rc.Model),
		Projection:   rc.Projection,
		NormalMatrix: rc.Model.Mat3().Inv().Transpose(),
		Width:        rc.width,
		Height:       rc.height,
		Near:         rc.Near,
		Far:          rc.Far,
		GaussianStd:  rc.Config.GaussianStd,
		Order:        rc.Config.Order,
		DepthTest:    rc.Config.DepthTest && rc.depthValid,
		DepthBias:    rc.Config.DepthBias,
	}
}

// viewParams converts the frame view for the CPU stages.
func (rc *RenderContext) viewParams() splatcompute.ViewParams {
	v := rc.FrameView()
	p := splatcompute.ViewParams{
		View:         v.View,
		Proj:         v.Projection,
		NormalMatrix: v.NormalMatrix,
		Width:        v.Width,
		Height:       v.Height,
		Near:         v.Near,
		Far:          v.Far,
		GaussianStd:  v.GaussianStd,
		Order:        v.Order,
		DepthTest:    v.DepthTest,
		DepthBias:    v.DepthBias,
	}
	if v.DepthTest {
		p.Depth = rc.depth
	}
	return p
}

// RecordCompaction stores the result of a compaction run. visible is the
// final counter value, which may exceed the capacity.
func (rc *RenderContext) RecordCompaction(visible int) {
	count := min(visible, rc.capacity)
	if d := visible - count; d > 0 && d != rc.dropped {
		Logger().Warn("splat: visible splats exceed capacity", "capacity", rc.capacity, "dropped", d)
	}
	rc.visible = count
	rc.dropped = visible - count
}

// RecordDraw stores the draw record written by the composite stage.
func (rc *RenderContext) RecordDraw(args DrawIndirectArgs) {
	rc.draw = args
}
