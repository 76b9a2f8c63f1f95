// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package ply reads and writes gaussian splat point clouds in the binary
// little-endian PLY layouts used by splat viewers:
//
//   - Standard: the 3D gaussian splatting layout with position, normal,
//     DC color, logit opacity, log scale and a w-first rotation quaternion.
//   - PBR: Standard plus metallic, roughness, occlusion and emissive.
//   - CompressedPBR: 256-splat chunks with per-chunk bounds and packed
//     32-bit position, rotation, scale, color, normal and PBR words.
//
// Read accepts any vertex property order and ignores unknown properties,
// so files with higher-order spherical harmonics load with their DC term.
package ply
