// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Face is one triangle with per-corner attributes.
// Tangents carry the bitangent handedness sign in W.
type Face struct {
	Positions [3]mgl32.Vec3
	UVs       [3]mgl32.Vec2
	Normals   [3]mgl32.Vec3
	Tangents  [3]mgl32.Vec4
}

// LongestEdge returns the length of the longest triangle edge.
func (f *Face) LongestEdge() float32 {
	a := f.Positions[1].Sub(f.Positions[0]).Len()
	b := f.Positions[2].Sub(f.Positions[1]).Len()
	c := f.Positions[0].Sub(f.Positions[2]).Len()
	return max(a, b, c)
}

// Mesh is a named list of faces sharing one material.
type Mesh struct {
	Name     string
	Faces    []Face
	Material Material
	BBox     BBox
}

// ComputeBBox recomputes m.BBox from the face positions.
func (m *Mesh) ComputeBBox() {
	b := EmptyBBox()
	for i := range m.Faces {
		for _, p := range m.Faces[i].Positions {
			b = b.Extend(p)
		}
	}
	m.BBox = b
}

// BBox is an axis-aligned bounding box. An empty box has Min > Max.
type BBox struct {
	Min, Max mgl32.Vec3
}

// EmptyBBox returns a box that contains nothing. Extending it by a point
// yields a zero-size box at that point.
func EmptyBBox() BBox {
	inf := float32(math.Inf(1))
	return BBox{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Empty reports whether the box contains no points.
func (b BBox) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend returns the box grown to include p.
func (b BBox) Extend(p mgl32.Vec3) BBox {
	for i := range 3 {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	if o.Empty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Diagonal returns the length of the box diagonal, or 0 for an empty box.
func (b BBox) Diagonal() float32 {
	if b.Empty() {
		return 0
	}
	return b.Max.Sub(b.Min).Len()
}

// Center returns the box center, or the origin for an empty box.
func (b BBox) Center() mgl32.Vec3 {
	if b.Empty() {
		return mgl32.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// SceneBBox returns the union of the mesh bounds.
func SceneBBox(meshes []Mesh) BBox {
	b := EmptyBBox()
	for i := range meshes {
		b = b.Union(meshes[i].BBox)
	}
	return b
}
