// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package core holds the data model shared by the sampler, the compute
// stages, the loaders and the point-cloud codecs.
//
// It has no dependencies on the rest of the module so that every stage can
// exchange splats and meshes without import cycles. The root splat package
// re-exports these types under the same names.
//
// # Key Types
//
//   - Splat: one oriented, scaled, colored gaussian disk
//   - Face, Mesh, Material, Texture: triangle input with PBR material layers
//   - BBox: axis-aligned bounds used by the density heuristic and camera framing
//   - DrawIndirectArgs: the indirect draw record written by the sort pipeline
//   - GBuffer: per-pixel attribute planes filled by the composite stage
package core
