// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sampler

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
)

// Subdivision chooses the lattice subdivision factor for a face.
type Subdivision func(f *core.Face) int

// Fixed subdivides every face m times.
func Fixed(m int) Subdivision {
	return func(*core.Face) int { return m }
}

// Spacing subdivides each face so that neighbouring lattice points along the
// longest edge are at most spacing apart, with m clamped to [1, maxM].
func Spacing(spacing float32, maxM int) Subdivision {
	maxM = max(maxM, 1)
	return func(f *core.Face) int {
		if spacing <= 0 {
			return 1
		}
		m := math32.Ceil(f.LongestEdge() / spacing)
		if m != m || m < 1 {
			return 1
		}
		if m > float32(maxM) {
			return maxM
		}
		return int(m)
	}
}

// Sampler converts meshes into splats.
//
// Implementations must return the splats of every face in mesh order, face
// order and lattice order, so that all implementations are interchangeable.
type Sampler interface {
	Sample(meshes []core.Mesh, sub Subdivision, scaleFactor float32) []core.Splat
}

// Sequential samples every face on the calling goroutine.
type Sequential struct{}

// Sample implements Sampler.
func (Sequential) Sample(meshes []core.Mesh, sub Subdivision, scaleFactor float32) []core.Splat {
	var out []core.Splat
	for mi := range meshes {
		mesh := &meshes[mi]
		for fi := range mesh.Faces {
			f := &mesh.Faces[fi]
			out = SampleTriangle(out, f, &mesh.Material, sub(f), scaleFactor)
		}
	}
	return out
}

// faceBlock is the number of faces one parallel work item samples.
const faceBlock = 512

// Parallel samples faces concurrently on a worker pool.
//
// The output is allocated once from the exact per-face counts; each block of
// faces writes a disjoint region, so no synchronization beyond the pool's
// completion barrier is needed.
type Parallel struct {
	Pool *parallel.WorkerPool
}

// Sample implements Sampler.
func (p Parallel) Sample(meshes []core.Mesh, sub Subdivision, scaleFactor float32) []core.Splat {
	type faceRef struct {
		mesh, face int
		m          int
	}

	var refs []faceRef
	for mi := range meshes {
		for fi := range meshes[mi].Faces {
			f := &meshes[mi].Faces[fi]
			refs = append(refs, faceRef{mesh: mi, face: fi, m: sub(f)})
		}
	}

	// Exclusive scan of per-face counts gives each face its output offset.
	offsets := make([]int, len(refs)+1)
	for i, r := range refs {
		f := &meshes[r.mesh].Faces[r.face]
		offsets[i+1] = offsets[i] + FaceCount(f, r.m)
	}
	total := offsets[len(refs)]
	if total == 0 {
		return nil
	}

	out := make([]core.Splat, total)
	parallel.ForBlocks(p.Pool, len(refs), faceBlock, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			r := refs[i]
			mesh := &meshes[r.mesh]
			region := out[offsets[i]:offsets[i]:offsets[i+1]]
			SampleTriangle(region, &mesh.Faces[r.face], &mesh.Material, r.m, scaleFactor)
		}
	})
	return out
}
