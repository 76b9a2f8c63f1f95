// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package core

import "encoding/binary"

// QuadVertexCount is the number of vertices emitted per splat instance:
// two triangles forming a screen-aligned quad.
const QuadVertexCount = 6

// DrawIndirectArgs is the indirect draw record. The sort pipeline writes
// InstanceCount from the compacted splat count and the composite stage
// processes exactly that many instances.
type DrawIndirectArgs struct {
	// VertexCount is the number of vertices per instance.
	VertexCount uint32

	// InstanceCount is the number of splats to draw.
	InstanceCount uint32

	// FirstVertex is the first vertex index.
	FirstVertex uint32

	// FirstInstance is the first instance index.
	FirstInstance uint32
}

// Size returns the byte size of DrawIndirectArgs.
func (d DrawIndirectArgs) Size() uint64 {
	return 16 // 4 * sizeof(uint32)
}

// Bytes encodes the record in the little-endian GPU layout.
func (d DrawIndirectArgs) Bytes() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], d.VertexCount)
	binary.LittleEndian.PutUint32(buf[4:8], d.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], d.FirstVertex)
	binary.LittleEndian.PutUint32(buf[12:16], d.FirstInstance)
	return buf
}

// DrawIndirectArgsFromBytes decodes a record written by Bytes or by a GPU.
func DrawIndirectArgsFromBytes(b []byte) DrawIndirectArgs {
	return DrawIndirectArgs{
		VertexCount:   binary.LittleEndian.Uint32(b[0:4]),
		InstanceCount: binary.LittleEndian.Uint32(b[4:8]),
		FirstVertex:   binary.LittleEndian.Uint32(b[8:12]),
		FirstInstance: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// GBuffer holds the composited splat attributes, four float32 per pixel per
// plane, all premultiplied by coverage:
//
//   - Color: r, g, b, coverage
//   - Normal: nx, ny, nz, unused
//   - Surface: metallic, roughness, view depth, occlusion
type GBuffer struct {
	Width, Height int
	Color         []float32
	Normal        []float32
	Surface       []float32
}

// NewGBuffer allocates a cleared GBuffer.
func NewGBuffer(width, height int) *GBuffer {
	n := width * height * 4
	return &GBuffer{
		Width:   width,
		Height:  height,
		Color:   make([]float32, n),
		Normal:  make([]float32, n),
		Surface: make([]float32, n),
	}
}

// Clear zeroes every plane.
func (g *GBuffer) Clear() {
	clear(g.Color)
	clear(g.Normal)
	clear(g.Surface)
}
