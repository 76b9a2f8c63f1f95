package splat

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discard drops every record and reports every level disabled.
type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(discard{}))
}

// SetLogger routes the log events of the renderer, the converter and an
// installed GPU accelerator to l. Nil turns logging off again, which is
// also the state at program start. It may be called at any time.
//
// Events by level:
//
//   - Warn "splat: capacity exceeded on load" and "splat: visible splats
//     exceed capacity", with the capacity and the number of splats dropped.
//     The gpu package warns "GPU accelerator not available" when it cannot
//     open a device and frames stay on the CPU.
//   - Info "splat: converted" after [Convert] writes a point cloud and
//     "splat: meshes converted" when a frame samples its meshes. The GPU
//     accelerator logs adapter selection and pipeline setup.
//   - Debug "splat: renderer created" and one "splat: frame" per
//     [Renderer.Render] with the total, visible and drawn counts, plus the
//     accelerator's buffer allocations and per-stage dispatches.
//
// Mesh-to-splat conversion logs at most one line, so an Info handler is
// enough for batch tools:
//
//	splat.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discard{})
	}
	loggerPtr.Store(l)

	if a := RegisteredAccelerator(); a != nil {
		propagateLogger(a, l)
	}
}

// Logger returns the logger set by [SetLogger].
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by accelerators that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger hands l to a whose frames log through it.
func propagateLogger(a Accelerator, l *slog.Logger) {
	if ls, ok := a.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
