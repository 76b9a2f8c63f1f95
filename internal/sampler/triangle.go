// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sampler

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

// LatticeCount returns the number of barycentric lattice points of a
// triangle subdivided m times.
func LatticeCount(m int) int {
	if m <= 0 {
		return 0
	}
	return (m + 1) * (m + 2) / 2
}

// FaceCount returns how many splats SampleTriangle emits for f with
// subdivision m: LatticeCount(m), or 0 for a degenerate face.
func FaceCount(f *core.Face, m int) int {
	if m <= 0 {
		return 0
	}
	e1 := f.Positions[1].Sub(f.Positions[0])
	e2 := f.Positions[2].Sub(f.Positions[0])
	if e1.Cross(e2).Len() < degenerateEpsilon {
		return 0
	}
	return LatticeCount(m)
}

// SampleTriangle appends one splat per lattice point of f to dst and returns
// the extended slice. Degenerate faces and m <= 0 append nothing.
func SampleTriangle(dst []core.Splat, f *core.Face, mat *core.Material, m int, scaleFactor float32) []core.Splat {
	if m <= 0 {
		return dst
	}
	p0, p1, p2 := f.Positions[0], f.Positions[1], f.Positions[2]
	e1 := p1.Sub(p0)
	e2 := p2.Sub(p0)

	x, y, z, ok := faceBasis(e1, e2)
	if !ok {
		return dst
	}
	rotation := BasisQuat(x, y, z)

	inv := 1 / float32(m)
	su := e1.Len() * inv * scaleFactor
	sv := e2.Sub(x.Mul(e2.Dot(x))).Len() * inv * scaleFactor
	s := max((su+sv)*0.5, core.MinScale)
	scale := mgl32.Vec3{s, s, core.MinScale}

	for u := 0; u <= m; u++ {
		for v := 0; v <= m-u; v++ {
			fu := float32(u) * inv
			fv := float32(v) * inv
			fw := 1 - fu - fv

			pos := p0.Mul(fw).Add(p1.Mul(fu)).Add(p2.Mul(fv))

			n := f.Normals[0].Mul(fw).Add(f.Normals[1].Mul(fu)).Add(f.Normals[2].Mul(fv))
			if n.Len() < degenerateEpsilon {
				n = z
			} else {
				n = n.Normalize()
			}

			uv := f.UVs[0].Mul(fw).Add(f.UVs[1].Mul(fu)).Add(f.UVs[2].Mul(fv))

			t4 := f.Tangents[0].Mul(fw).Add(f.Tangents[1].Mul(fu)).Add(f.Tangents[2].Mul(fv))
			t3 := t4.Vec3()
			if t3.Len() < degenerateEpsilon {
				t3 = x
			} else {
				t3 = t3.Normalize()
			}
			tangent := mgl32.Vec4{t3[0], t3[1], t3[2], handedness(t4[3])}

			color, normal, pbr := EvaluateMaterial(mat, uv, n, tangent)

			dst = append(dst, core.Splat{
				Position: pos,
				Scale:    scale,
				Rotation: rotation,
				Color:    color,
				Normal:   normal,
				PBR:      pbr,
			})
		}
	}
	return dst
}
