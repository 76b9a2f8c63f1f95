// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sampler

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// degenerateEpsilon rejects triangles whose edge cross product is
	// shorter than this.
	degenerateEpsilon = 1e-6

	// parallelEpsilon detects an X axis that is parallel to the normal.
	parallelEpsilon = 1e-6
)

// faceBasis builds the orthonormal frame of a triangle from its edges:
// Z is the face normal, X follows e1 and Y completes a right-handed frame.
// ok is false for degenerate triangles.
func faceBasis(e1, e2 mgl32.Vec3) (x, y, z mgl32.Vec3, ok bool) {
	n := e1.Cross(e2)
	if n.Len() < degenerateEpsilon {
		return x, y, z, false
	}
	z = n.Normalize()
	x = e1.Normalize()

	if z.Cross(x).Len() < parallelEpsilon {
		axis := mgl32.Vec3{1, 0, 0}
		if math32.Abs(z[0]) >= 0.9 {
			axis = mgl32.Vec3{0, 1, 0}
		}
		y = z.Cross(axis).Normalize()
		x = y.Cross(z).Normalize()
	}
	y = z.Cross(x).Normalize()
	return x, y, z, true
}

// BasisQuat converts the rotation matrix with columns x, y, z into a unit
// quaternion. The branch is chosen on the trace and the largest diagonal
// element so the divisor never approaches zero. The result is canonicalized
// to W >= 0.
func BasisQuat(x, y, z mgl32.Vec3) mgl32.Quat {
	m00, m01, m02 := x[0], y[0], z[0]
	m10, m11, m12 := x[1], y[1], z[1]
	m20, m21, m22 := x[2], y[2], z[2]

	var q mgl32.Quat
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 0.5 / math32.Sqrt(trace+1)
		q.W = 0.25 / s
		q.V = mgl32.Vec3{(m21 - m12) * s, (m02 - m20) * s, (m10 - m01) * s}
	case m00 > m11 && m00 > m22:
		s := 2 * math32.Sqrt(1+m00-m11-m22)
		q.W = (m21 - m12) / s
		q.V = mgl32.Vec3{0.25 * s, (m01 + m10) / s, (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math32.Sqrt(1+m11-m00-m22)
		q.W = (m02 - m20) / s
		q.V = mgl32.Vec3{(m01 + m10) / s, 0.25 * s, (m12 + m21) / s}
	default:
		s := 2 * math32.Sqrt(1+m22-m00-m11)
		q.W = (m10 - m01) / s
		q.V = mgl32.Vec3{(m02 + m20) / s, (m12 + m21) / s, 0.25 * s}
	}

	q = q.Normalize()
	if q.W < 0 {
		q = mgl32.Quat{W: -q.W, V: q.V.Mul(-1)}
	}
	return q
}
