// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ply

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

// ChunkSize is the number of splats sharing one set of quantization bounds.
const ChunkSize = 256

// maxLogScale clamps log scales so a near-zero normal extent does not
// swamp the chunk scale range.
const maxLogScale = 20

var chunkProps = []string{
	"min_x", "min_y", "min_z", "max_x", "max_y", "max_z",
	"min_scale_x", "min_scale_y", "min_scale_z", "max_scale_x", "max_scale_y", "max_scale_z",
	"min_r", "min_g", "min_b", "max_r", "max_g", "max_b",
}

var packedProps = []string{
	"packed_position", "packed_rotation", "packed_scale",
	"packed_color", "packed_normal", "packed_pbr",
}

// chunkBounds holds the quantization ranges of one chunk.
type chunkBounds struct {
	minPos, maxPos     mgl32.Vec3
	minScale, maxScale mgl32.Vec3
	minColor, maxColor mgl32.Vec3
}

func (c *chunkBounds) values() [18]float32 {
	var v [18]float32
	copy(v[0:3], c.minPos[:])
	copy(v[3:6], c.maxPos[:])
	copy(v[6:9], c.minScale[:])
	copy(v[9:12], c.maxScale[:])
	copy(v[12:15], c.minColor[:])
	copy(v[15:18], c.maxColor[:])
	return v
}

func logScale(s float32) float32 {
	return mgl32.Clamp(math32.Log(max(s, core.MinScale)), -maxLogScale, maxLogScale)
}

func computeBounds(splats []core.Splat) chunkBounds {
	inf := math32.Inf(1)
	lo, hi := mgl32.Vec3{inf, inf, inf}, mgl32.Vec3{-inf, -inf, -inf}
	c := chunkBounds{lo, hi, lo, hi, lo, hi}
	for i := range splats {
		s := &splats[i]
		for k := range 3 {
			ls := logScale(s.Scale[k])
			col := clamp01(s.Color[k])
			c.minPos[k], c.maxPos[k] = min(c.minPos[k], s.Position[k]), max(c.maxPos[k], s.Position[k])
			c.minScale[k], c.maxScale[k] = min(c.minScale[k], ls), max(c.maxScale[k], ls)
			c.minColor[k], c.maxColor[k] = min(c.minColor[k], col), max(c.maxColor[k], col)
		}
	}
	return c
}

// quantize maps v in [lo, hi] to an integer in [0, 2^bits-1].
func quantize(v, lo, hi float32, bits uint) uint32 {
	maxQ := float32(uint32(1)<<bits - 1)
	t := float32(0)
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	return uint32(clamp01(t)*maxQ + 0.5)
}

func dequantize(q uint32, lo, hi float32, bits uint) float32 {
	maxQ := float32(uint32(1)<<bits - 1)
	return lo + float32(q)/maxQ*(hi-lo)
}

// pack111011 packs a vector as 11, 10 and 11 bits.
func pack111011(v, lo, hi mgl32.Vec3) uint32 {
	return quantize(v[0], lo[0], hi[0], 11)<<21 |
		quantize(v[1], lo[1], hi[1], 10)<<11 |
		quantize(v[2], lo[2], hi[2], 11)
}

func unpack111011(p uint32, lo, hi mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		dequantize(p>>21&0x7ff, lo[0], hi[0], 11),
		dequantize(p>>11&0x3ff, lo[1], hi[1], 10),
		dequantize(p&0x7ff, lo[2], hi[2], 11),
	}
}

func pack8888(v mgl32.Vec4, lo, hi mgl32.Vec4) uint32 {
	return quantize(v[0], lo[0], hi[0], 8)<<24 |
		quantize(v[1], lo[1], hi[1], 8)<<16 |
		quantize(v[2], lo[2], hi[2], 8)<<8 |
		quantize(v[3], lo[3], hi[3], 8)
}

func unpack8888(p uint32, lo, hi mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{
		dequantize(p>>24&0xff, lo[0], hi[0], 8),
		dequantize(p>>16&0xff, lo[1], hi[1], 8),
		dequantize(p>>8&0xff, lo[2], hi[2], 8),
		dequantize(p&0xff, lo[3], hi[3], 8),
	}
}

// smallest-three rotation range: the three smaller components of a unit
// quaternion lie in [-1/sqrt2, 1/sqrt2].
const rotRange = 1 / math.Sqrt2

// packRotation stores the index of the largest component in the top two
// bits and the other three with 10 bits each, in (w, x, y, z) order.
func packRotation(q mgl32.Quat) uint32 {
	q = canonical(q)
	c := [4]float32{q.W, q.V[0], q.V[1], q.V[2]}
	largest := 0
	for i := 1; i < 4; i++ {
		if math32.Abs(c[i]) > math32.Abs(c[largest]) {
			largest = i
		}
	}
	if c[largest] < 0 {
		for i := range c {
			c[i] = -c[i]
		}
	}
	p := uint32(largest) << 30
	shift := uint(20)
	for i := range 4 {
		if i == largest {
			continue
		}
		p |= quantize(c[i], -rotRange, rotRange, 10) << shift
		shift -= 10
	}
	return p
}

func unpackRotation(p uint32) mgl32.Quat {
	largest := int(p >> 30)
	var c [4]float32
	shift := uint(20)
	sum := float32(0)
	for i := range 4 {
		if i == largest {
			continue
		}
		c[i] = dequantize(p>>shift&0x3ff, -rotRange, rotRange, 10)
		sum += c[i] * c[i]
		shift -= 10
	}
	c[largest] = math32.Sqrt(max(0, 1-sum))
	return canonical(mgl32.Quat{W: c[0], V: mgl32.Vec3{c[1], c[2], c[3]}})
}

var (
	unitLo = mgl32.Vec3{-1, -1, -1}
	unitHi = mgl32.Vec3{1, 1, 1}
	zero4  = mgl32.Vec4{}
	one4   = mgl32.Vec4{1, 1, 1, 1}
)

func writeCompressed(w io.Writer, splats []core.Splat) error {
	nChunks := (len(splats) + ChunkSize - 1) / ChunkSize
	chunk := newElement("chunk", nChunks, "float", chunkProps...)
	vertex := newElement("vertex", len(splats), "uint", packedProps...)
	if err := writeHeader(w, CompressedPBR, chunk, vertex); err != nil {
		return err
	}

	bounds := make([]chunkBounds, nChunks)
	row := make([]byte, chunk.rowSize)
	for ci := range bounds {
		lo, hi := ci*ChunkSize, min((ci+1)*ChunkSize, len(splats))
		bounds[ci] = computeBounds(splats[lo:hi])
		for k, f := range bounds[ci].values() {
			binary.LittleEndian.PutUint32(row[k*4:], math.Float32bits(f))
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}

	row = make([]byte, vertex.rowSize)
	for i := range splats {
		s := &splats[i]
		b := &bounds[i/ChunkSize]
		ls := mgl32.Vec3{logScale(s.Scale[0]), logScale(s.Scale[1]), logScale(s.Scale[2])}
		words := [6]uint32{
			pack111011(s.Position, b.minPos, b.maxPos),
			packRotation(s.Rotation),
			pack111011(ls, b.minScale, b.maxScale),
			pack8888(s.Color, b.minColor.Vec4(0), b.maxColor.Vec4(1)),
			pack111011(s.Normal, unitLo, unitHi),
			pack8888(s.PBR, zero4, one4),
		}
		for k, v := range words {
			binary.LittleEndian.PutUint32(row[k*4:], v)
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func readChunks(r io.Reader, e *element) ([]chunkBounds, error) {
	col := make([]int, len(chunkProps))
	for k, n := range chunkProps {
		col[k] = e.index(n)
	}
	return decodeRows(r, e, func(_ int, row []byte, c *chunkBounds) {
		var v [18]float32
		for k := range v {
			v[k] = float32(e.value(row, col[k]))
		}
		*c = chunkBounds{
			minPos:   mgl32.Vec3{v[0], v[1], v[2]},
			maxPos:   mgl32.Vec3{v[3], v[4], v[5]},
			minScale: mgl32.Vec3{v[6], v[7], v[8]},
			maxScale: mgl32.Vec3{v[9], v[10], v[11]},
			minColor: mgl32.Vec3{v[12], v[13], v[14]},
			maxColor: mgl32.Vec3{v[15], v[16], v[17]},
		}
	})
}

func readPacked(r io.Reader, e *element, chunks []chunkBounds) ([]core.Splat, error) {
	if need := (e.count + ChunkSize - 1) / ChunkSize; len(chunks) < need {
		return nil, fmt.Errorf("%d chunks for %d splats", len(chunks), e.count)
	}
	for _, p := range packedProps {
		if t := e.props[e.index(p)].typ; typeSizes[t] != 4 {
			return nil, fmt.Errorf("%s has type %s", p, t)
		}
	}
	var col [6]int
	for k, n := range packedProps {
		col[k] = e.index(n)
	}

	return decodeRows(r, e, func(i int, row []byte, s *core.Splat) {
		b := &chunks[i/ChunkSize]
		s.Position = unpack111011(e.word(row, col[0]), b.minPos, b.maxPos)
		s.Rotation = unpackRotation(e.word(row, col[1]))
		ls := unpack111011(e.word(row, col[2]), b.minScale, b.maxScale)
		for k := range 3 {
			s.Scale[k] = decodeScale(ls[k])
		}
		s.Color = unpack8888(e.word(row, col[3]), b.minColor.Vec4(0), b.maxColor.Vec4(1))
		n := unpack111011(e.word(row, col[4]), unitLo, unitHi)
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		s.Normal = n
		s.PBR = unpack8888(e.word(row, col[5]), zero4, one4)
	})
}
