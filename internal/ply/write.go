// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ply

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"

	"github.com/gogpu/splat/core"
)

// SHC0 is the zeroth-order spherical harmonics basis constant relating a
// DC coefficient to its color: c = 0.5 + SHC0*f_dc.
const SHC0 = 0.28209479177387814

// opacityEps keeps logit finite for fully opaque or transparent splats.
const opacityEps = 1e-6

var standardProps = []string{
	"x", "y", "z",
	"nx", "ny", "nz",
	"f_dc_0", "f_dc_1", "f_dc_2",
	"opacity",
	"scale_0", "scale_1", "scale_2",
	"rot_0", "rot_1", "rot_2", "rot_3",
}

var pbrProps = []string{"metallic", "roughness", "occlusion", "emissive"}

// Write encodes splats in the given format.
func Write(w io.Writer, splats []core.Splat, format Format) error {
	switch format {
	case Standard, PBR:
		return writeFloat(w, splats, format)
	case CompressedPBR:
		return writeCompressed(w, splats)
	default:
		return fmt.Errorf("%w: unknown format %d", ErrFormat, int(format))
	}
}

func writeFloat(w io.Writer, splats []core.Splat, format Format) error {
	names := standardProps
	if format == PBR {
		names = append(append([]string(nil), standardProps...), pbrProps...)
	}
	v := newElement("vertex", len(splats), "float", names...)
	if err := writeHeader(w, format, v); err != nil {
		return err
	}

	vals := make([]float32, len(names))
	row := make([]byte, v.rowSize)
	for i := range splats {
		s := &splats[i]
		encodeStandard(s, vals)
		if format == PBR {
			copy(vals[len(standardProps):], s.PBR[:])
		}
		for k, f := range vals {
			binary.LittleEndian.PutUint32(row[k*4:], math.Float32bits(f))
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// encodeStandard fills the first len(standardProps) entries of dst.
func encodeStandard(s *core.Splat, dst []float32) {
	copy(dst[0:3], s.Position[:])
	copy(dst[3:6], s.Normal[:])
	for k := range 3 {
		dst[6+k] = (s.Color[k] - 0.5) / SHC0
	}
	dst[9] = logit(s.Opacity())
	for k := range 3 {
		dst[10+k] = math32.Log(max(s.Scale[k], core.MinScale))
	}
	q := s.Rotation.Normalize()
	dst[13], dst[14], dst[15], dst[16] = q.W, q.V[0], q.V[1], q.V[2]
}

func logit(a float32) float32 {
	a = min(max(a, opacityEps), 1-opacityEps)
	return math32.Log(a / (1 - a))
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
