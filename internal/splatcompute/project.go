// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splatcompute

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

const (
	// MinAlpha is the smallest opacity that contributes to a pixel.
	MinAlpha = 1.0 / 255.0

	// MaxAlpha caps per-sample alpha so no splat fully occludes on its own.
	MaxAlpha = 0.99

	// GuardBand widens the NDC frustum test so that splats centered just
	// off-screen still contribute their footprint.
	GuardBand = 1.3

	// lowPass is added to the screen-space covariance diagonal so every
	// footprint covers at least about one pixel.
	lowPass = 0.3

	// footprintSigma is the quad half-size in standard deviations.
	footprintSigma = 3
)

// ViewParams is the per-frame camera and visibility configuration read by
// the compaction stage.
type ViewParams struct {
	// View is the model-view matrix. The camera looks down -Z.
	View mgl32.Mat4
	// Proj is the perspective projection matrix.
	Proj mgl32.Mat4
	// NormalMatrix takes splat normals to world space. The zero matrix
	// leaves them unchanged.
	NormalMatrix mgl32.Mat3

	Width, Height int
	Near, Far     float32

	// GaussianStd multiplies every splat scale before projection.
	GaussianStd float32

	Order core.SortOrder

	// DepthTest culls splats behind the reference depth buffer Depth
	// (view depth per pixel, +Inf where empty) by more than DepthBias.
	DepthTest bool
	Depth     []float32
	DepthBias float32
}

// Quad is the projected footprint of one visible splat, together with the
// attributes the composite stage blends.
type Quad struct {
	Center mgl32.Vec2 // pixel coordinates, y down
	Conic  mgl32.Vec3 // inverse 2D covariance (a, b, c)
	Radius float32    // pixels
	Depth  float32    // view depth
	Index  uint32     // source splat index

	Color  mgl32.Vec4
	Normal mgl32.Vec3
	PBR    mgl32.Vec4
}

func (p *ViewParams) focal() (fx, fy float32) {
	return p.Proj[0] * float32(p.Width) * 0.5, p.Proj[5] * float32(p.Height) * 0.5
}

// Project applies the visibility predicate to s and, when it passes, returns
// its screen-space footprint. A splat is visible when its depth is inside
// (Near, Far), its center is inside the guard-banded frustum, its opacity
// is at least MinAlpha, its projected covariance is invertible with a
// non-empty footprint that overlaps the viewport, and, with DepthTest set,
// it is not behind the reference depth.
func Project(s *core.Splat, p *ViewParams) (Quad, bool) {
	var q Quad
	if s.Opacity() < MinAlpha {
		return q, false
	}

	v := p.View.Mul4x1(s.Position.Vec4(1))
	depth := -v[2]
	if !(depth > p.Near && depth < p.Far) {
		return q, false
	}

	clip := p.Proj.Mul4x1(v)
	if clip[3] <= 0 {
		return q, false
	}
	ndcX, ndcY := clip[0]/clip[3], clip[1]/clip[3]
	if math32.Abs(ndcX) > GuardBand || math32.Abs(ndcY) > GuardBand {
		return q, false
	}

	w, h := float32(p.Width), float32(p.Height)
	cx := (ndcX*0.5 + 0.5) * w
	cy := (0.5 - ndcY*0.5) * h

	a, b, c, ok := screenCovariance(s, p, v, depth)
	if !ok {
		return q, false
	}
	det := a*c - b*b
	if !(det > 0) {
		return q, false
	}
	mid := 0.5 * (a + c)
	lambda := mid + math32.Sqrt(max(0.1, mid*mid-det))
	radius := math32.Ceil(footprintSigma * math32.Sqrt(lambda))
	if !(radius > 0) {
		return q, false
	}
	if cx+radius < 0 || cx-radius >= w || cy+radius < 0 || cy-radius >= h {
		return q, false
	}

	// The depth test samples the pixel under the center. Centers off the
	// viewport are not depth-tested.
	if p.DepthTest && len(p.Depth) == p.Width*p.Height {
		ix, iy := int(math32.Floor(cx)), int(math32.Floor(cy))
		if ix >= 0 && ix < p.Width && iy >= 0 && iy < p.Height {
			if depth > p.Depth[iy*p.Width+ix]+p.DepthBias {
				return q, false
			}
		}
	}

	normal := s.Normal
	if p.NormalMatrix != (mgl32.Mat3{}) {
		if n := p.NormalMatrix.Mul3x1(normal); n.Len() > 0 {
			normal = n.Normalize()
		}
	}

	inv := 1 / det
	q = Quad{
		Center: mgl32.Vec2{cx, cy},
		Conic:  mgl32.Vec3{c * inv, -b * inv, a * inv},
		Radius: radius,
		Depth:  depth,
		Color:  s.Color,
		Normal: normal,
		PBR:    s.PBR,
	}
	return q, true
}

// screenCovariance projects the splat's 3D covariance R S S^T R^T into
// pixel space through the local affine approximation J W of the
// perspective transform. It returns the symmetric 2x2 matrix [a b; b c].
func screenCovariance(s *core.Splat, p *ViewParams, v mgl32.Vec4, depth float32) (a, b, c float32, ok bool) {
	std := p.GaussianStd
	if std <= 0 {
		std = 1
	}
	sx, sy, sz := s.Scale[0]*std, s.Scale[1]*std, s.Scale[2]*std

	r := s.Rotation.Normalize().Mat4().Mat3()
	m := mgl32.Mat3FromCols(r.Col(0).Mul(sx), r.Col(1).Mul(sy), r.Col(2).Mul(sz))
	sigma := m.Mul3(m.Transpose())

	fx, fy := p.focal()
	// Limit the Jacobian to the guard band so that off-axis splats do not
	// explode in size.
	limX := GuardBand * depth / p.Proj[0]
	limY := GuardBand * depth / p.Proj[5]
	tx := mgl32.Clamp(v[0], -limX, limX)
	ty := mgl32.Clamp(v[1], -limY, limY)
	z2 := depth * depth

	j0 := mgl32.Vec3{fx / depth, 0, fx * tx / z2}
	j1 := mgl32.Vec3{0, -fy / depth, -fy * ty / z2}

	wt := p.View.Mat3().Transpose()
	t0 := wt.Mul3x1(j0)
	t1 := wt.Mul3x1(j1)

	st0 := sigma.Mul3x1(t0)
	st1 := sigma.Mul3x1(t1)
	a = t0.Dot(st0) + lowPass
	b = t0.Dot(st1)
	c = t1.Dot(st1) + lowPass
	if a != a || b != b || c != c {
		return 0, 0, 0, false
	}
	return a, b, c, true
}
