// Package splat converts triangle meshes into gaussian splats and renders
// splat clouds with depth-sorted alpha blending.
//
// # Overview
//
// A mesh face is covered by a barycentric lattice of flat gaussian disks.
// Each disk takes its color, normal and PBR terms from the face material at
// its UV. The resulting cloud is drawn by a fixed pass pipeline:
//
//	conversion -> depth_prepass -> compaction -> radix_sort -> composite -> relighting
//
// Compaction culls splats against the frustum and an optional depth buffer
// and packs the survivors with one atomic increment each. The radix sort
// orders them by view depth, and the composite stage blends exactly as many
// instances as the indirect draw record says. Relighting resolves the
// composited G-buffer into an image for the selected RenderMode.
//
// # Quick Start
//
//	import "github.com/gogpu/splat"
//
//	// Convert a GLB into a PLY point cloud.
//	err := splat.Convert(ctx, "model.glb", "model.ply", 1.0, splat.FormatPBR)
//
//	// Render a splat cloud.
//	r, err := splat.NewRenderer(1280, 720)
//	defer r.Close()
//	r.SetSplats(splats)
//	r.SetCamera(splat.FrameBounds(bbox, 0.6, 0.3, 16.0/9.0))
//	img, err := r.Render()
//
// # Backends
//
// The software backend runs every stage on a work-stealing CPU pool and is
// the default. The GPU backend runs compaction, sort and composite as wgpu
// compute shaders. It is registered by importing the gpu package:
//
//	import _ "github.com/gogpu/splat/gpu"
//
// and selected with WithBackend(BackendGPU). A GPU that fails to initialize
// is reported as an error; the renderer does not fall back to the CPU.
//
// # Coordinate System
//
// World space is right handed with Y up. The camera looks down -Z. Pixel
// coordinates have their origin at the top-left corner.
package splat

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
