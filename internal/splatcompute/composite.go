// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splatcompute

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
)

// TileSize is the edge length in pixels of one composite tile.
const TileSize = 16

// Finalize writes the compacted count into the indirect draw record.
func Finalize(count int, draw *core.DrawIndirectArgs) {
	draw.VertexCount = core.QuadVertexCount
	draw.InstanceCount = uint32(max(count, 0))
	draw.FirstVertex = 0
	draw.FirstInstance = 0
}

// Compositor blends sorted splat footprints into a GBuffer. It keeps its
// tile binning scratch between frames.
type Compositor struct {
	tileCounts []uint32
	tileStart  []uint32
	entries    []uint32
}

// Composite draws exactly draw.InstanceCount instances. Instance k is the
// splat values[k], whose footprint is quads[values[k]]. Splats are blended
// strictly in instance order: the over operator for BackToFront and the
// under operator for FrontToBack, which yield the same image for the same
// depth order. Tiles are independent and run in parallel.
func (c *Compositor) Composite(pool *parallel.WorkerPool, quads []Quad, values []uint32, draw core.DrawIndirectArgs, g *core.GBuffer, order core.SortOrder) {
	g.Clear()
	n := min(int(draw.InstanceCount), len(values))
	if n == 0 || g.Width <= 0 || g.Height <= 0 {
		return
	}

	tilesX := (g.Width + TileSize - 1) / TileSize
	tilesY := (g.Height + TileSize - 1) / TileSize
	c.bin(quads, values[:n], tilesX, tilesY, g.Width, g.Height)

	parallel.ForBlocks(pool, tilesX*tilesY, 4, func(_, lo, hi int) {
		for t := lo; t < hi; t++ {
			list := c.entries[c.tileStart[t]:c.tileStart[t+1]]
			tx, ty := t%tilesX, t/tilesX
			x0, y0 := tx*TileSize, ty*TileSize
			x1, y1 := min(x0+TileSize, g.Width), min(y0+TileSize, g.Height)
			for _, idx := range list {
				blendQuad(g, &quads[idx], x0, y0, x1, y1, order)
			}
		}
	})
}

// tileRect returns the inclusive tile range covered by q.
func tileRect(q *Quad, tilesX, tilesY, width, height int) (tx0, ty0, tx1, ty1 int, ok bool) {
	x0 := max(int(math32.Floor(q.Center[0]-q.Radius)), 0)
	y0 := max(int(math32.Floor(q.Center[1]-q.Radius)), 0)
	x1 := min(int(math32.Ceil(q.Center[0]+q.Radius)), width-1)
	y1 := min(int(math32.Ceil(q.Center[1]+q.Radius)), height-1)
	if x0 > x1 || y0 > y1 {
		return 0, 0, 0, 0, false
	}
	return x0 / TileSize, y0 / TileSize, min(x1/TileSize, tilesX-1), min(y1/TileSize, tilesY-1), true
}

// bin builds per-tile instance lists that preserve the sorted order.
func (c *Compositor) bin(quads []Quad, sorted []uint32, tilesX, tilesY, width, height int) {
	tiles := tilesX * tilesY
	c.tileCounts = grow(c.tileCounts, tiles)
	c.tileStart = grow(c.tileStart, tiles+1)
	clear(c.tileCounts)

	for _, idx := range sorted {
		tx0, ty0, tx1, ty1, ok := tileRect(&quads[idx], tilesX, tilesY, width, height)
		if !ok {
			continue
		}
		for ty := ty0; ty <= ty1; ty++ {
			for tx := tx0; tx <= tx1; tx++ {
				c.tileCounts[ty*tilesX+tx]++
			}
		}
	}

	var sum uint32
	for t := range tiles {
		c.tileStart[t] = sum
		sum += c.tileCounts[t]
	}
	c.tileStart[tiles] = sum
	c.entries = grow(c.entries, int(sum))

	cursor := c.tileCounts
	copy(cursor, c.tileStart[:tiles])
	for _, idx := range sorted {
		tx0, ty0, tx1, ty1, ok := tileRect(&quads[idx], tilesX, tilesY, width, height)
		if !ok {
			continue
		}
		for ty := ty0; ty <= ty1; ty++ {
			for tx := tx0; tx <= tx1; tx++ {
				t := ty*tilesX + tx
				c.entries[cursor[t]] = idx
				cursor[t]++
			}
		}
	}
}

func grow(s []uint32, n int) []uint32 {
	if cap(s) < n {
		return make([]uint32, n)
	}
	return s[:n]
}

// Alpha evaluates the footprint of q at pixel center (px, py). It returns 0
// for samples below MinAlpha.
func (q *Quad) Alpha(px, py float32) float32 {
	dx := px - q.Center[0]
	dy := py - q.Center[1]
	power := -0.5*(q.Conic[0]*dx*dx+q.Conic[2]*dy*dy) - q.Conic[1]*dx*dy
	if power > 0 {
		return 0
	}
	alpha := min(MaxAlpha, q.Color[3]*math32.Exp(power))
	if alpha < MinAlpha {
		return 0
	}
	return alpha
}

// blendQuad blends q into the pixels of the clip rectangle [x0,x1)x[y0,y1).
func blendQuad(g *core.GBuffer, q *Quad, x0, y0, x1, y1 int, order core.SortOrder) {
	qx0 := max(x0, int(math32.Floor(q.Center[0]-q.Radius)))
	qy0 := max(y0, int(math32.Floor(q.Center[1]-q.Radius)))
	qx1 := min(x1, int(math32.Ceil(q.Center[0]+q.Radius))+1)
	qy1 := min(y1, int(math32.Ceil(q.Center[1]+q.Radius))+1)

	attrs := [12]float32{
		q.Color[0], q.Color[1], q.Color[2], 1,
		q.Normal[0], q.Normal[1], q.Normal[2], q.PBR[3],
		q.PBR[0], q.PBR[1], q.Depth, q.PBR[2],
	}

	for y := qy0; y < qy1; y++ {
		for x := qx0; x < qx1; x++ {
			alpha := q.Alpha(float32(x)+0.5, float32(y)+0.5)
			if alpha == 0 {
				continue
			}
			i := (y*g.Width + x) * 4
			col := g.Color[i : i+4 : i+4]
			nrm := g.Normal[i : i+4 : i+4]
			srf := g.Surface[i : i+4 : i+4]

			if order == core.FrontToBack {
				w := alpha * (1 - col[3])
				for k := range 4 {
					col[k] += attrs[k] * w
					nrm[k] += attrs[4+k] * w
					srf[k] += attrs[8+k] * w
				}
				continue
			}
			inv := 1 - alpha
			for k := range 4 {
				col[k] = attrs[k]*alpha + col[k]*inv
				nrm[k] = attrs[4+k]*alpha + nrm[k]*inv
				srf[k] = attrs[8+k]*alpha + srf[k]*inv
			}
		}
	}
}
