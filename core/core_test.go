// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// =============================================================================
// BBox Tests
// =============================================================================

func TestBBox_Empty(t *testing.T) {
	b := EmptyBBox()
	if !b.Empty() {
		t.Fatal("EmptyBBox() should be empty")
	}
	if b.Diagonal() != 0 {
		t.Errorf("empty Diagonal() = %v, want 0", b.Diagonal())
	}
	if b.Center() != (mgl32.Vec3{}) {
		t.Errorf("empty Center() = %v, want origin", b.Center())
	}

	b = b.Extend(mgl32.Vec3{1, 2, 3})
	if b.Empty() {
		t.Fatal("box with one point should not be empty")
	}
	if b.Min != b.Max {
		t.Errorf("single point box Min=%v Max=%v, want equal", b.Min, b.Max)
	}
}

func TestBBox_ExtendUnion(t *testing.T) {
	a := EmptyBBox().Extend(mgl32.Vec3{0, 0, 0}).Extend(mgl32.Vec3{1, 2, 2})
	if got := a.Diagonal(); !mgl32.FloatEqualThreshold(got, 3, 1e-6) {
		t.Errorf("Diagonal() = %v, want 3", got)
	}
	if got := a.Center(); !got.ApproxEqualThreshold(mgl32.Vec3{0.5, 1, 1}, 1e-6) {
		t.Errorf("Center() = %v, want (0.5,1,1)", got)
	}

	b := EmptyBBox().Extend(mgl32.Vec3{-1, -1, -1})
	u := a.Union(b).Union(EmptyBBox())
	if u.Min != (mgl32.Vec3{-1, -1, -1}) || u.Max != (mgl32.Vec3{1, 2, 2}) {
		t.Errorf("Union() = %+v", u)
	}
}

func TestMesh_ComputeBBox(t *testing.T) {
	m := Mesh{Faces: []Face{
		{Positions: [3]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}},
		{Positions: [3]mgl32.Vec3{{0, 0, -4}, {1, 0, 0}, {0, 1, 0}}},
	}}
	m.ComputeBBox()
	if m.BBox.Min != (mgl32.Vec3{0, 0, -4}) || m.BBox.Max != (mgl32.Vec3{1, 1, 0}) {
		t.Errorf("BBox = %+v", m.BBox)
	}

	scene := SceneBBox([]Mesh{m, {BBox: EmptyBBox()}})
	if scene != m.BBox {
		t.Errorf("SceneBBox = %+v, want %+v", scene, m.BBox)
	}
}

func TestFace_LongestEdge(t *testing.T) {
	f := Face{Positions: [3]mgl32.Vec3{{0, 0, 0}, {3, 0, 0}, {0, 4, 0}}}
	if got := f.LongestEdge(); !mgl32.FloatEqualThreshold(got, 5, 1e-6) {
		t.Errorf("LongestEdge() = %v, want 5", got)
	}
}

// =============================================================================
// Texture / Material Tests
// =============================================================================

func TestTexture_Empty(t *testing.T) {
	tests := []struct {
		name string
		tex  *Texture
		want bool
	}{
		{"nil", nil, true},
		{"zero", &Texture{}, true},
		{"short pix", &Texture{Width: 2, Height: 2, Channels: 4, Pix: make([]byte, 8)}, true},
		{"valid", &Texture{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 12)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tex.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultMaterial(t *testing.T) {
	m := DefaultMaterial()
	if m.BaseColorFactor != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("BaseColorFactor = %v", m.BaseColorFactor)
	}
	if m.MetallicFactor != 1 || m.RoughnessFactor != 1 || m.NormalScale != 1 || m.OcclusionStrength != 1 {
		t.Errorf("factors = %v %v %v %v", m.MetallicFactor, m.RoughnessFactor, m.NormalScale, m.OcclusionStrength)
	}
	if m.EmissiveFactor != (mgl32.Vec3{}) {
		t.Errorf("EmissiveFactor = %v, want zero", m.EmissiveFactor)
	}
}

// =============================================================================
// DrawIndirectArgs / GBuffer Tests
// =============================================================================

func TestDrawIndirectArgs_Bytes(t *testing.T) {
	d := DrawIndirectArgs{VertexCount: QuadVertexCount, InstanceCount: 0x01020304, FirstInstance: 7}
	b := d.Bytes()
	if uint64(len(b)) != d.Size() {
		t.Fatalf("len(Bytes()) = %d, want %d", len(b), d.Size())
	}
	if b[4] != 0x04 || b[7] != 0x01 {
		t.Errorf("InstanceCount not little-endian: % x", b[4:8])
	}
	if got := DrawIndirectArgsFromBytes(b); got != d {
		t.Errorf("decoded %+v, want %+v", got, d)
	}
}

func TestGBuffer_Clear(t *testing.T) {
	g := NewGBuffer(3, 2)
	if len(g.Color) != 24 || len(g.Normal) != 24 || len(g.Surface) != 24 {
		t.Fatalf("plane sizes = %d %d %d, want 24", len(g.Color), len(g.Normal), len(g.Surface))
	}
	g.Color[5], g.Normal[6], g.Surface[7] = 1, 1, 1
	g.Clear()
	for i := range g.Color {
		if g.Color[i] != 0 || g.Normal[i] != 0 || g.Surface[i] != 0 {
			t.Fatalf("plane value at %d not cleared", i)
		}
	}
}
