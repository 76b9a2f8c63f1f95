// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package glb

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

// minUVDet is the smallest UV determinant inverted when deriving tangents.
const minUVDet = 1e-8

// faceTangents derives corner tangents from the UV parameterization of f.
// Each tangent is orthogonalized against its corner normal and carries the
// bitangent handedness in W. Faces with degenerate UVs use a unit
// reciprocal determinant; a tangent that collapses to zero is left zero.
func faceTangents(f *core.Face) {
	e1 := f.Positions[1].Sub(f.Positions[0])
	e2 := f.Positions[2].Sub(f.Positions[0])
	d1 := f.UVs[1].Sub(f.UVs[0])
	d2 := f.UVs[2].Sub(f.UVs[0])

	det := d1[0]*d2[1] - d2[0]*d1[1]
	r := float32(1)
	if math32.Abs(det) >= minUVDet {
		r = 1 / det
	}
	t := e1.Mul(d2[1]).Sub(e2.Mul(d1[1])).Mul(r)
	b := e2.Mul(d1[0]).Sub(e1.Mul(d2[0])).Mul(r)

	for c := range 3 {
		n := f.Normals[c]
		tc := t.Sub(n.Mul(n.Dot(t)))
		l := tc.Len()
		if !(l > 0) {
			f.Tangents[c] = mgl32.Vec4{}
			continue
		}
		tc = tc.Mul(1 / l)
		w := float32(1)
		if n.Cross(tc).Dot(b) < 0 {
			w = -1
		}
		f.Tangents[c] = tc.Vec4(w)
	}
}
