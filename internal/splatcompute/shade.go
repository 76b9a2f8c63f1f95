// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splatcompute

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
)

// Light is a point light for the lit render mode.
type Light struct {
	Enabled   bool
	Position  mgl32.Vec3 // world space
	Color     mgl32.Vec3
	Intensity float32
}

// ShadeParams configures the G-buffer resolve.
type ShadeParams struct {
	Mode       core.RenderMode
	Light      Light
	Background color.RGBA

	// View and Proj are the matrices the G-buffer was composited with.
	View, Proj mgl32.Mat4
	Near, Far  float32
}

const ambient = 0.08

// Shade resolves the G-buffer into dst according to p.Mode and composites
// the result over the background using the accumulated coverage. dst must
// have the G-buffer size.
func Shade(pool *parallel.WorkerPool, g *core.GBuffer, p *ShadeParams, dst *image.RGBA) {
	invView := p.View.Inv()
	eye := invView.Col(3).Vec3()
	bg := mgl32.Vec4{
		float32(p.Background.R) / 255,
		float32(p.Background.G) / 255,
		float32(p.Background.B) / 255,
		float32(p.Background.A) / 255,
	}

	parallel.ForChunks(pool, g.Height, 8, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			row := dst.Pix[y*dst.Stride:]
			for x := range g.Width {
				i := (y*g.Width + x) * 4
				cov := g.Color[i+3]
				var rgb mgl32.Vec3
				if cov > 0 {
					rgb = shadePixel(g, i, cov, x, y, p, invView, eye)
					for k := range 3 {
						rgb[k] = mgl32.Clamp(rgb[k], 0, 1)
					}
				}
				// dst is premultiplied.
				inv := 1 - cov
				o := x * 4
				row[o+0] = toByte(rgb[0]*cov + bg[0]*inv)
				row[o+1] = toByte(rgb[1]*cov + bg[1]*inv)
				row[o+2] = toByte(rgb[2]*cov + bg[2]*inv)
				row[o+3] = toByte(cov + bg[3]*inv)
			}
		}
	})
}

func shadePixel(g *core.GBuffer, i int, cov float32, x, y int, p *ShadeParams, invView mgl32.Mat4, eye mgl32.Vec3) mgl32.Vec3 {
	inv := 1 / cov
	albedo := mgl32.Vec3{g.Color[i] * inv, g.Color[i+1] * inv, g.Color[i+2] * inv}
	normal := mgl32.Vec3{g.Normal[i], g.Normal[i+1], g.Normal[i+2]}
	if l := normal.Len(); l > 1e-6 {
		normal = normal.Mul(1 / l)
	}
	emissive := g.Normal[i+3] * inv
	metallic := g.Surface[i] * inv
	roughness := g.Surface[i+1] * inv
	depth := g.Surface[i+2] * inv
	occlusion := g.Surface[i+3] * inv

	switch p.Mode {
	case core.RenderModeAlbedo:
		return albedo
	case core.RenderModeNormal:
		return normal.Mul(0.5).Add(mgl32.Vec3{0.5, 0.5, 0.5})
	case core.RenderModeDepth:
		d := 1 - mgl32.Clamp((depth-p.Near)/(p.Far-p.Near), 0, 1)
		return mgl32.Vec3{d, d, d}
	case core.RenderModeMetallic:
		return mgl32.Vec3{metallic, metallic, metallic}
	case core.RenderModeRoughness:
		return mgl32.Vec3{roughness, roughness, roughness}
	case core.RenderModeOcclusion:
		return mgl32.Vec3{occlusion, occlusion, occlusion}
	}

	glow := albedo.Mul(emissive)
	if !p.Light.Enabled {
		return albedo.Mul(occlusion).Add(glow)
	}

	world := reconstructWorld(x, y, depth, g.Width, g.Height, p.Proj, invView)
	l := p.Light.Position.Sub(world)
	dist2 := max(l.Dot(l), 1e-6)
	l = l.Mul(1 / math32.Sqrt(dist2))
	v := safeNormalize(eye.Sub(world), normal)
	h := safeNormalize(l.Add(v), normal)

	ndl := max(normal.Dot(l), 0)
	ndh := max(normal.Dot(h), 0)

	f0 := mgl32.Vec3{0.04, 0.04, 0.04}.Mul(1 - metallic).Add(albedo.Mul(metallic))
	diffuse := albedo.Mul(1 - metallic)
	r4 := max(roughness*roughness*roughness*roughness, 1e-4)
	shininess := mgl32.Clamp(2/r4-2, 1, 2048)
	specular := (shininess + 8) / (8 * math32.Pi) * math32.Pow(ndh, shininess)

	radiance := p.Light.Color.Mul(p.Light.Intensity)
	out := mgl32.Vec3{}
	for k := range 3 {
		direct := (diffuse[k]/math32.Pi + f0[k]*specular) * radiance[k] * ndl
		out[k] = ambient*albedo[k]*occlusion + direct + glow[k]
	}
	return out
}

// reconstructWorld recovers the world position of pixel (x, y) at the given
// view depth.
func reconstructWorld(x, y int, depth float32, width, height int, proj, invView mgl32.Mat4) mgl32.Vec3 {
	ndcX := (float32(x)+0.5)/float32(width)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(height)*2
	viewPos := mgl32.Vec4{ndcX * depth / proj[0], ndcY * depth / proj[5], -depth, 1}
	return invView.Mul4x1(viewPos).Vec3()
}

func safeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	if l := v.Len(); l > 1e-6 {
		return v.Mul(1 / l)
	}
	return fallback
}

func toByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
