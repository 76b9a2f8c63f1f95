// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sampler

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

// minNormalMapLength skips normal-map texels that decode to a vector too
// short to carry a direction.
const minNormalMapLength = 0.1

// EvaluateMaterial samples every material layer at uv.
//
// n is the unit interpolated vertex normal and t the interpolated tangent
// with handedness in W. It returns the clamped base color with opacity,
// the shading normal and the PBR terms (metallic, roughness, occlusion,
// emissive).
func EvaluateMaterial(m *core.Material, uv mgl32.Vec2, n mgl32.Vec3, t mgl32.Vec4) (color mgl32.Vec4, normal mgl32.Vec3, pbr mgl32.Vec4) {
	base := SampleTexture(&m.BaseColor, uv)
	for i := range 4 {
		color[i] = clamp01(base[i] * m.BaseColorFactor[i])
	}

	// glTF packs roughness in G and metallic in B.
	mr := SampleTexture(&m.MetallicRoughness, uv)
	pbr[0] = clamp01(mr[2] * m.MetallicFactor)
	pbr[1] = clamp01(mr[1] * m.RoughnessFactor)

	pbr[2] = 1
	if !m.Occlusion.Empty() {
		ao := SampleTexture(&m.Occlusion, uv)[0]
		pbr[2] = clamp01(1 + m.OcclusionStrength*(ao-1))
	}

	if m.EmissiveFactor != (mgl32.Vec3{}) {
		e := SampleTexture(&m.Emissive, uv)
		pbr[3] = max(0, luminance(mgl32.Vec3{
			e[0] * m.EmissiveFactor[0],
			e[1] * m.EmissiveFactor[1],
			e[2] * m.EmissiveFactor[2],
		}))
	}

	normal = n
	if !m.Normal.Empty() {
		normal = perturbNormal(SampleTexture(&m.Normal, uv), m.NormalScale, n, t)
	}
	return color, normal, pbr
}

// perturbNormal rotates a tangent-space normal-map texel into world space
// through the TBN frame. The bitangent is cross(n, t.xyz) * t.w.
func perturbNormal(texel mgl32.Vec4, scale float32, n mgl32.Vec3, t mgl32.Vec4) mgl32.Vec3 {
	ts := mgl32.Vec3{
		(texel[0]*2 - 1) * scale,
		(texel[1]*2 - 1) * scale,
		texel[2]*2 - 1,
	}
	if ts.Len() < minNormalMapLength {
		return n
	}

	tangent := tangentFrame(n, t.Vec3())
	bitangent := n.Cross(tangent).Mul(handedness(t[3]))

	tbn := mgl32.Mat3FromCols(tangent, bitangent, n)
	world := tbn.Mul3x1(ts)
	if world.Len() < degenerateEpsilon {
		return n
	}
	return world.Normalize()
}

// tangentFrame returns t made orthogonal to n and normalized. A tangent that
// is zero or parallel to n is replaced by an arbitrary perpendicular axis.
func tangentFrame(n, t mgl32.Vec3) mgl32.Vec3 {
	ortho := t.Sub(n.Mul(n.Dot(t)))
	if ortho.Len() < degenerateEpsilon {
		axis := mgl32.Vec3{1, 0, 0}
		if n[0] >= 0.9 || n[0] <= -0.9 {
			axis = mgl32.Vec3{0, 1, 0}
		}
		ortho = axis.Sub(n.Mul(n.Dot(axis)))
	}
	return ortho.Normalize()
}

func handedness(w float32) float32 {
	if w < 0 {
		return -1
	}
	return 1
}

func luminance(c mgl32.Vec3) float32 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}

func clamp01(v float32) float32 {
	if v != v {
		return 0
	}
	return mgl32.Clamp(v, 0, 1)
}
