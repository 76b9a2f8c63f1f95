// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ply

import (
	"errors"
	"strconv"
	"strings"
)

// ErrFormat is returned for input that is not a readable splat PLY.
var ErrFormat = errors.New("ply: malformed point cloud")

// Format selects a point cloud layout.
type Format int

const (
	// Standard is the 3D gaussian splatting layout.
	Standard Format = iota

	// PBR is Standard plus per-splat material terms.
	PBR

	// CompressedPBR is the chunk-quantized layout with packed material terms.
	CompressedPBR
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case Standard:
		return "standard"
	case PBR:
		return "pbr"
	case CompressedPBR:
		return "compressed-pbr"
	default:
		return "unknown"
	}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f >= Standard && f <= CompressedPBR
}

// ParseFormat accepts a format name or its numeric id.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if f := Format(n); f.Valid() {
			return f, nil
		}
		return Standard, ErrFormat
	}
	for f := Standard; f <= CompressedPBR; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return Standard, ErrFormat
}
