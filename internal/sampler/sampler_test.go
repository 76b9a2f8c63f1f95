// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sampler

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
)

const tol = 1e-4

func flatFace(p0, p1, p2 mgl32.Vec3) core.Face {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Len() > 0 {
		n = n.Normalize()
	}
	t := p1.Sub(p0)
	if t.Len() > 0 {
		t = t.Normalize()
	}
	t4 := mgl32.Vec4{t[0], t[1], t[2], 1}
	return core.Face{
		Positions: [3]mgl32.Vec3{p0, p1, p2},
		UVs:       [3]mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}},
		Normals:   [3]mgl32.Vec3{n, n, n},
		Tangents:  [3]mgl32.Vec4{t4, t4, t4},
	}
}

func unitTriangle() core.Face {
	return flatFace(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
}

func randomVec(r *rand.Rand, scale float32) mgl32.Vec3 {
	return mgl32.Vec3{
		(r.Float32()*2 - 1) * scale,
		(r.Float32()*2 - 1) * scale,
		(r.Float32()*2 - 1) * scale,
	}
}

// testMeshes builds a reproducible scene of random, axis-aligned and
// degenerate faces.
func testMeshes() []core.Mesh {
	r := rand.New(rand.NewSource(7))
	var faces []core.Face
	faces = append(faces,
		unitTriangle(),
		flatFace(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}),
		flatFace(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}),
		flatFace(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2}), // collinear
	)
	for range 200 {
		faces = append(faces, flatFace(randomVec(r, 5), randomVec(r, 5), randomVec(r, 5)))
	}

	tinted := core.DefaultMaterial()
	tinted.BaseColorFactor = mgl32.Vec4{0.8, 1.4, 0.2, 0.5}
	tinted.BaseColor = checker(4, 4)

	return []core.Mesh{
		{Name: "a", Faces: faces[:100], Material: core.DefaultMaterial()},
		{Name: "b", Faces: faces[100:], Material: tinted},
	}
}

func checker(w, h int) core.Texture {
	pix := make([]byte, w*h*4)
	for i := range w * h {
		v := byte(255 * ((i + i/w) % 2))
		pix[i*4+0] = v
		pix[i*4+1] = 255 - v
		pix[i*4+2] = 128
		pix[i*4+3] = 255
	}
	return core.Texture{Width: w, Height: h, Channels: 4, Pix: pix}
}

// samplers returns every Sampler implementation. The property suite below
// runs against each one.
func samplers(t *testing.T) map[string]Sampler {
	pool := parallel.NewWorkerPool(4)
	t.Cleanup(pool.Close)
	return map[string]Sampler{
		"Sequential":  Sequential{},
		"Parallel":    Parallel{Pool: pool},
		"ParallelNil": Parallel{},
	}
}

// =============================================================================
// Property Suite (runs against every Sampler)
// =============================================================================

func TestSampler_LatticeCount(t *testing.T) {
	for name, s := range samplers(t) {
		t.Run(name, func(t *testing.T) {
			for m := -1; m <= 8; m++ {
				got := len(s.Sample([]core.Mesh{{Faces: []core.Face{unitTriangle()}, Material: core.DefaultMaterial()}}, Fixed(m), 1))
				want := 0
				if m > 0 {
					want = (m + 1) * (m + 2) / 2
				}
				if got != want {
					t.Errorf("m=%d: got %d splats, want %d", m, got, want)
				}
			}

			collinear := flatFace(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{2, 2, 2})
			if got := len(s.Sample([]core.Mesh{{Faces: []core.Face{collinear}}}, Fixed(4), 1)); got != 0 {
				t.Errorf("collinear face: got %d splats, want 0", got)
			}
		})
	}
}

func TestSampler_UnitInvariants(t *testing.T) {
	meshes := testMeshes()
	for name, s := range samplers(t) {
		t.Run(name, func(t *testing.T) {
			out := s.Sample(meshes, Fixed(3), 1)
			if len(out) == 0 {
				t.Fatal("no splats produced")
			}
			for i, sp := range out {
				if l := sp.Rotation.Len(); l < 1-tol || l > 1+tol {
					t.Fatalf("splat %d: |rotation| = %v", i, l)
				}
				for k := range 3 {
					if !(sp.Scale[k] > 0) {
						t.Fatalf("splat %d: scale[%d] = %v", i, k, sp.Scale[k])
					}
					if sp.Color[k] < 0 || sp.Color[k] > 1 {
						t.Fatalf("splat %d: color[%d] = %v", i, k, sp.Color[k])
					}
				}
				if a := sp.Opacity(); a < 0 || a > 1 {
					t.Fatalf("splat %d: opacity = %v", i, a)
				}
				if l := sp.Normal.Len(); l < 1-tol || l > 1+tol {
					t.Fatalf("splat %d: |normal| = %v", i, l)
				}
			}
		})
	}
}

func TestSampler_BasisRotatesZOntoNormal(t *testing.T) {
	meshes := testMeshes()
	for name, s := range samplers(t) {
		t.Run(name, func(t *testing.T) {
			for mi := range meshes {
				for fi := range meshes[mi].Faces {
					f := meshes[mi].Faces[fi]
					out := s.Sample([]core.Mesh{{Faces: []core.Face{f}}}, Fixed(1), 1)
					if len(out) == 0 {
						continue
					}
					n := f.Positions[1].Sub(f.Positions[0]).Cross(f.Positions[2].Sub(f.Positions[0])).Normalize()
					got := out[0].Rotation.Rotate(mgl32.Vec3{0, 0, 1})
					if !got.ApproxEqualThreshold(n, tol) {
						t.Fatalf("face %d/%d: R*Z = %v, want %v", mi, fi, got, n)
					}
				}
			}
		})
	}
}

func TestSampler_UnitTriangleScenario(t *testing.T) {
	mat := core.DefaultMaterial()
	mat.BaseColorFactor = mgl32.Vec4{1, 1, 1, 0.75}

	for name, s := range samplers(t) {
		t.Run(name, func(t *testing.T) {
			out := s.Sample([]core.Mesh{{Faces: []core.Face{unitTriangle()}, Material: mat}}, Fixed(2), 1)
			if len(out) != 6 {
				t.Fatalf("got %d splats, want 6", len(out))
			}
			ident := mgl32.QuatIdent()
			for i, sp := range out {
				if !sp.Normal.ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, tol) {
					t.Errorf("splat %d: normal = %v", i, sp.Normal)
				}
				if !sp.Rotation.ApproxEqualThreshold(ident, tol) {
					t.Errorf("splat %d: rotation = %v, want identity", i, sp.Rotation)
				}
				if !sp.Color.ApproxEqualThreshold(mgl32.Vec4{1, 1, 1, 0.75}, tol) {
					t.Errorf("splat %d: color = %v", i, sp.Color)
				}
				if sp.Position[2] != 0 {
					t.Errorf("splat %d: position %v not on the plane", i, sp.Position)
				}
			}

			// su = 1/2, sv = 1/2, so the in-plane scale is 0.5.
			if !mgl32.FloatEqualThreshold(out[0].Scale[0], 0.5, tol) || out[0].Scale[0] != out[0].Scale[1] {
				t.Errorf("scale = %v, want (0.5, 0.5, eps)", out[0].Scale)
			}
			if out[0].Scale[2] != core.MinScale {
				t.Errorf("normal scale = %v, want %v", out[0].Scale[2], core.MinScale)
			}
		})
	}
}

func TestSampler_ImplementationsAgree(t *testing.T) {
	meshes := testMeshes()
	sub := Spacing(0.7, 16)

	want := Sequential{}.Sample(meshes, sub, 1.5)
	for name, s := range samplers(t) {
		t.Run(name, func(t *testing.T) {
			got := s.Sample(meshes, sub, 1.5)
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("splat %d differs:\n got  %+v\n want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

// =============================================================================
// Subdivision Tests
// =============================================================================

func TestSpacing(t *testing.T) {
	f := flatFace(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{4, 0, 0}, mgl32.Vec3{0, 1, 0})
	tests := []struct {
		spacing float32
		maxM    int
		want    int
	}{
		{1, 64, 5}, // longest edge is sqrt(17)
		{0.01, 64, 64},
		{100, 64, 1},
		{0, 64, 1},
		{1, 0, 1},
	}
	for _, tt := range tests {
		if got := Spacing(tt.spacing, tt.maxM)(&f); got != tt.want {
			t.Errorf("Spacing(%v, %d) = %d, want %d", tt.spacing, tt.maxM, got, tt.want)
		}
	}
}

func TestFaceCount(t *testing.T) {
	f := unitTriangle()
	if got := FaceCount(&f, 3); got != 10 {
		t.Errorf("FaceCount(m=3) = %d, want 10", got)
	}
	if got := FaceCount(&f, 0); got != 0 {
		t.Errorf("FaceCount(m=0) = %d, want 0", got)
	}
	if got := LatticeCount(-2); got != 0 {
		t.Errorf("LatticeCount(-2) = %d, want 0", got)
	}
}
