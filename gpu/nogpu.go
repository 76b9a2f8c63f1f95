//go:build nogpu

// Package gpu is empty in nogpu builds. Renderers created with
// splat.BackendGPU fail with splat.ErrNoAccelerator.
package gpu
