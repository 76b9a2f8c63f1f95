// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sampler

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

// neutralTexel is returned for missing textures so that factors pass
// through unchanged.
var neutralTexel = mgl32.Vec4{1, 1, 1, 1}

// SampleTexture returns the nearest texel at uv as normalized RGBA.
//
// UV is wrapped into [0,1) and the pixel index is clamped to the texture
// so no input can index outside Pix. One-channel textures are gray, two
// channels are gray plus alpha, and three channels have opaque alpha.
func SampleTexture(t *core.Texture, uv mgl32.Vec2) mgl32.Vec4 {
	if t.Empty() {
		return neutralTexel
	}
	x := texelIndex(uv[0], t.Width)
	y := texelIndex(uv[1], t.Height)
	i := (y*t.Width + x) * t.Channels
	px := t.Pix[i : i+t.Channels]

	const inv = 1.0 / 255.0
	switch t.Channels {
	case 1:
		g := float32(px[0]) * inv
		return mgl32.Vec4{g, g, g, 1}
	case 2:
		g := float32(px[0]) * inv
		return mgl32.Vec4{g, g, g, float32(px[1]) * inv}
	case 3:
		return mgl32.Vec4{float32(px[0]) * inv, float32(px[1]) * inv, float32(px[2]) * inv, 1}
	default:
		return mgl32.Vec4{float32(px[0]) * inv, float32(px[1]) * inv, float32(px[2]) * inv, float32(px[3]) * inv}
	}
}

// texelIndex maps a texture coordinate to a pixel index in [0, dim-1].
func texelIndex(u float32, dim int) int {
	if math32.IsNaN(u) || math32.IsInf(u, 0) {
		return 0
	}
	d := float32(dim)
	f := math32.Floor(u * d)
	f -= math32.Floor(f/d) * d
	i := int(f)
	if i < 0 {
		return 0
	}
	if i >= dim {
		return dim - 1
	}
	return i
}
