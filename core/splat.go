// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package core

import "github.com/go-gl/mathgl/mgl32"

// MinScale is the floor applied to every scale component. The normal axis of
// a surface splat sits at this value, which keeps the ellipsoid determinant
// non-zero.
const MinScale float32 = 1e-7

// Splat is a single gaussian primitive.
//
// Invariants: all Scale components are > 0, Rotation has unit length,
// Color.W (opacity) is in [0,1] and Color RGB is in [0,1].
type Splat struct {
	// Position is the world-space center.
	Position mgl32.Vec3

	// Scale holds the half-extents along the local X, Y and Z axes.
	// Surface splats are flat: Z is MinScale.
	Scale mgl32.Vec3

	// Rotation orients the local axes. Local X and Y span the tangent plane
	// and local Z is the surface normal.
	Rotation mgl32.Quat

	// Color is the flat (zeroth SH band) color with opacity in W.
	Color mgl32.Vec4

	// Normal is the shading normal after normal mapping.
	Normal mgl32.Vec3

	// PBR holds metallic, roughness, occlusion and emissive terms.
	PBR mgl32.Vec4
}

// Opacity returns the splat opacity.
func (s *Splat) Opacity() float32 { return s.Color[3] }

// Metallic returns the metallic term.
func (s *Splat) Metallic() float32 { return s.PBR[0] }

// Roughness returns the roughness term.
func (s *Splat) Roughness() float32 { return s.PBR[1] }
