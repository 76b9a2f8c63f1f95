// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package sampler turns mesh triangles into gaussian splats.
//
// Every face with subdivision m is covered by a triangular barycentric
// lattice of (m+1)(m+2)/2 points. Each point becomes one flat, isotropic
// splat oriented by the face basis and shaded by one material sample at the
// interpolated UV.
//
// The per-triangle routine is pure and deterministic. Two Sampler
// implementations share it: Sequential walks the faces on one goroutine,
// and Parallel pre-sizes the output from the lattice counts and fills
// disjoint regions on a worker pool. Both produce the same splats in the
// same order.
package sampler
