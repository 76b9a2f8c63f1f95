package splat

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxSplats is the default splat capacity of a RenderContext.
const MaxSplats = 1 << 21

// Backend selects where the compaction, sort and composite stages run.
type Backend int

const (
	// BackendSoftware runs every stage on the CPU worker pool.
	BackendSoftware Backend = iota

	// BackendGPU runs compaction, sort and composite on the registered
	// GPU accelerator.
	BackendGPU
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendSoftware:
		return "Software"
	case BackendGPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Lighting is the point light of the lit render mode.
type Lighting struct {
	Enabled   bool
	Position  mgl32.Vec3 // world space
	Color     mgl32.Vec3
	Intensity float32
}

// DefaultLighting returns a white light above and in front of the origin.
func DefaultLighting() Lighting {
	return Lighting{
		Enabled:   true,
		Position:  mgl32.Vec3{2, 4, 4},
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 3,
	}
}

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := splat.NewRenderer(1280, 720,
//	    splat.WithCapacity(1<<20),
//	    splat.WithSortOrder(splat.FrontToBack),
//	)
type Option func(*options)

type options struct {
	capacity int
	backend  Backend
	workers  int
	frame    FrameConfig
}

func defaultOptions() options {
	return options{
		capacity: MaxSplats,
		backend:  BackendSoftware,
		frame:    DefaultFrameConfig(),
	}
}

// WithCapacity sets the maximum number of splats the renderer holds.
// Values below 1 keep the default MaxSplats.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithBackend selects the stage backend. BackendGPU requires a registered
// accelerator; NewRenderer fails when it is missing or cannot initialize.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithWorkers sets the CPU worker count. Zero or less uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithSortOrder sets the depth sort direction.
func WithSortOrder(order SortOrder) Option {
	return func(o *options) {
		o.frame.Order = order
	}
}

// WithGaussianStd sets the splat scale multiplier used for projection.
func WithGaussianStd(std float32) Option {
	return func(o *options) {
		o.frame.GaussianStd = std
	}
}

// WithRenderMode sets the initial render mode.
func WithRenderMode(m RenderMode) Option {
	return func(o *options) {
		o.frame.Mode = m
	}
}

// WithLighting sets the light of the lit render mode.
func WithLighting(l Lighting) Option {
	return func(o *options) {
		o.frame.Lighting = l
	}
}

// WithDepthTest enables culling against the mesh depth prepass. bias is
// the view-space distance a splat may lie behind the mesh surface.
func WithDepthTest(enabled bool, bias float32) Option {
	return func(o *options) {
		o.frame.DepthTest = enabled
		o.frame.DepthBias = bias
	}
}

// WithBackground sets the color the splats are composited over.
func WithBackground(c color.Color) Option {
	return func(o *options) {
		o.frame.Background = color.RGBAModel.Convert(c).(color.RGBA)
	}
}
