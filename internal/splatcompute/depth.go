// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splatcompute

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
)

// depthBand is the number of rows one depth prepass work item owns.
const depthBand = 32

// screenTri is a triangle after projection: pixel x, y and reciprocal view
// depth per corner.
type screenTri struct {
	x, y, invZ [3]float32
	minY, maxY int
}

// RasterizeDepth fills depth with the nearest mesh view depth per pixel, or
// +Inf where no triangle covers the pixel center. Triangles crossing the
// near plane are skipped. The buffer is split into row bands that run in
// parallel; each band writes only its own rows.
func RasterizeDepth(pool *parallel.WorkerPool, meshes []core.Mesh, view, proj mgl32.Mat4, near float32, width, height int, depth []float32) {
	inf := math32.Inf(1)
	for i := range depth[:width*height] {
		depth[i] = inf
	}

	tris := projectTriangles(meshes, proj.Mul4(view), near, width, height)
	if len(tris) == 0 {
		return
	}

	parallel.ForBlocks(pool, height, depthBand, func(_, lo, hi int) {
		for i := range tris {
			rasterizeBand(&tris[i], lo, hi, width, depth)
		}
	})
}

func projectTriangles(meshes []core.Mesh, mvp mgl32.Mat4, near float32, width, height int) []screenTri {
	w, h := float32(width), float32(height)
	var tris []screenTri
	for mi := range meshes {
		for fi := range meshes[mi].Faces {
			f := &meshes[mi].Faces[fi]
			var t screenTri
			ok := true
			for k := range 3 {
				c := mvp.Mul4x1(f.Positions[k].Vec4(1))
				if c[3] <= near {
					ok = false
					break
				}
				t.x[k] = (c[0]/c[3]*0.5 + 0.5) * w
				t.y[k] = (0.5 - c[1]/c[3]*0.5) * h
				t.invZ[k] = 1 / c[3]
			}
			if !ok {
				continue
			}
			t.minY = max(int(math32.Floor(min(t.y[0], t.y[1], t.y[2]))), 0)
			t.maxY = min(int(math32.Ceil(max(t.y[0], t.y[1], t.y[2]))), height-1)
			if t.minY > t.maxY {
				continue
			}
			tris = append(tris, t)
		}
	}
	return tris
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// rasterizeBand writes the depth of t into rows [lo, hi).
func rasterizeBand(t *screenTri, lo, hi, width int, depth []float32) {
	y0 := max(t.minY, lo)
	y1 := min(t.maxY, hi-1)
	if y0 > y1 {
		return
	}
	area := edge(t.x[0], t.y[0], t.x[1], t.y[1], t.x[2], t.y[2])
	if math32.Abs(area) < 1e-12 {
		return
	}
	x0 := max(int(math32.Floor(min(t.x[0], t.x[1], t.x[2]))), 0)
	x1 := min(int(math32.Ceil(max(t.x[0], t.x[1], t.x[2]))), width-1)
	invArea := 1 / area

	for y := y0; y <= y1; y++ {
		py := float32(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float32(x) + 0.5
			w0 := edge(t.x[1], t.y[1], t.x[2], t.y[2], px, py) * invArea
			w1 := edge(t.x[2], t.y[2], t.x[0], t.y[0], px, py) * invArea
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			invZ := w0*t.invZ[0] + w1*t.invZ[1] + w2*t.invZ[2]
			if invZ <= 0 {
				continue
			}
			d := 1 / invZ
			i := y*width + x
			if d < depth[i] {
				depth[i] = d
			}
		}
	}
}
