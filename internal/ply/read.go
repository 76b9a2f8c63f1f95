// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ply

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
)

const (
	// maxRows bounds the element size accepted from a header.
	maxRows = 1 << 28

	// preallocRows caps the rows reserved before any are read. Larger
	// elements grow as their rows arrive.
	preallocRows = 1 << 16
)

// Read decodes a point cloud and reports the layout it found. Standard
// files without normals get the rotated +Z axis as normal; non-PBR files
// get the default material terms.
func Read(r io.Reader) ([]core.Splat, Format, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	elems, err := readHeader(br)
	if err != nil {
		return nil, Standard, err
	}

	var vertex, chunk *element
	for _, e := range elems {
		if e.count > maxRows {
			return nil, Standard, fmt.Errorf("%w: element %s has %d rows", ErrFormat, e.name, e.count)
		}
		switch e.name {
		case "vertex":
			vertex = e
		case "chunk":
			chunk = e
		}
	}
	if vertex == nil {
		return nil, Standard, fmt.Errorf("%w: no vertex element", ErrFormat)
	}

	format, err := detectFormat(vertex, chunk)
	if err != nil {
		return nil, Standard, err
	}

	var chunks []chunkBounds
	var splats []core.Splat
	for _, e := range elems {
		switch {
		case e == chunk && format == CompressedPBR:
			chunks, err = readChunks(br, e)
		case e == vertex && format == CompressedPBR:
			splats, err = readPacked(br, e, chunks)
		case e == vertex:
			splats, err = readFloat(br, e, format)
		default:
			_, err = io.CopyN(io.Discard, br, int64(e.count)*int64(e.rowSize))
		}
		if err != nil {
			return nil, format, fmt.Errorf("%w: element %s: %v", ErrFormat, e.name, err)
		}
	}
	return splats, format, nil
}

func detectFormat(vertex, chunk *element) (Format, error) {
	if chunk != nil && vertex.has(packedProps...) {
		if !chunk.has(chunkProps...) {
			return CompressedPBR, fmt.Errorf("%w: incomplete chunk element", ErrFormat)
		}
		return CompressedPBR, nil
	}
	required := []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"}
	if !vertex.has(required...) {
		return Standard, fmt.Errorf("%w: vertex element lacks gaussian properties", ErrFormat)
	}
	if vertex.has(pbrProps...) {
		return PBR, nil
	}
	return Standard, nil
}

// decodeRows reads every row of e from r and decodes it into a new T with
// fn. A body shorter than the header claims fails with what was reserved
// so far, never with a slice of e.count entries.
func decodeRows[T any](r io.Reader, e *element, fn func(i int, row []byte, dst *T)) ([]T, error) {
	out := make([]T, 0, min(e.count, preallocRows))
	row := make([]byte, e.rowSize)
	for i := range e.count {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		var v T
		out = append(out, v)
		fn(i, row, &out[i])
	}
	return out, nil
}

// decodeScale turns a stored log-scale into a scale no smaller than
// core.MinScale.
func decodeScale(logScale float32) float32 {
	return max(math32.Exp(logScale), core.MinScale)
}

func readFloat(r io.Reader, e *element, format Format) ([]core.Splat, error) {
	col := make([]int, len(standardProps)+len(pbrProps))
	for k, n := range standardProps {
		col[k] = e.index(n)
	}
	for k, n := range pbrProps {
		col[len(standardProps)+k] = e.index(n)
	}
	get := func(row []byte, k int, def float32) float32 {
		if col[k] < 0 {
			return def
		}
		return float32(e.value(row, col[k]))
	}
	hasNormal := e.has("nx", "ny", "nz")

	return decodeRows(r, e, func(_ int, row []byte, s *core.Splat) {
		s.Position = mgl32.Vec3{get(row, 0, 0), get(row, 1, 0), get(row, 2, 0)}
		for k := range 3 {
			s.Color[k] = clamp01(0.5 + SHC0*get(row, 6+k, 0))
			s.Scale[k] = decodeScale(get(row, 10+k, 0))
		}
		s.Color[3] = sigmoid(get(row, 9, 0))
		s.Rotation = canonical(mgl32.Quat{
			W: get(row, 13, 1),
			V: mgl32.Vec3{get(row, 14, 0), get(row, 15, 0), get(row, 16, 0)},
		})
		if hasNormal {
			s.Normal = mgl32.Vec3{get(row, 3, 0), get(row, 4, 0), get(row, 5, 0)}
		} else {
			s.Normal = s.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
		}
		s.PBR = mgl32.Vec4{0, 1, 1, 0}
		if format == PBR {
			n := len(standardProps)
			s.PBR = mgl32.Vec4{get(row, n, 0), get(row, n+1, 1), get(row, n+2, 1), get(row, n+3, 0)}
		}
	})
}

// canonical normalizes q and flips it into the W >= 0 hemisphere. A zero
// quaternion becomes the identity.
func canonical(q mgl32.Quat) mgl32.Quat {
	l := q.Len()
	if !(l > 0) {
		return mgl32.QuatIdent()
	}
	q = q.Scale(1 / l)
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return q
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
