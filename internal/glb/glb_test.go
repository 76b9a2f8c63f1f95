// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package glb

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/gogpu/splat/core"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(1, 1, color.NRGBA{255, 255, 255, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// quadDocument builds a unit quad in the XY plane with UVs, an embedded
// base color texture and no normals or tangents.
func quadDocument(t *testing.T) *gltf.Document {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 0, 2, 3})
	img, err := modeler.WriteImage(doc, "albedo", "image/png", bytes.NewReader(encodePNG(t)))
	if err != nil {
		t.Fatal(err)
	}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(uint32(img))}}
	doc.Materials = []*gltf.Material{{
		Name: "painted",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float32{1, 0.5, 0.5, 1},
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
			MetallicFactor:   gltf.Float(0.25),
			RoughnessFactor:  gltf.Float(0.75),
		},
		EmissiveFactor: [3]float32{0.1, 0.2, 0.3},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "quad",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]uint32{
				gltf.POSITION:   uint32(pos),
				gltf.TEXCOORD_0: uint32(uv),
			},
			Indices:  gltf.Index(uint32(idx)),
			Material: gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

func saveGLB(t *testing.T, doc *gltf.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("SaveBinary() error = %v", err)
	}
	return path
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_Quad(t *testing.T) {
	meshes, err := Load(context.Background(), saveGLB(t, quadDocument(t)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("Load() = %d meshes, want 1", len(meshes))
	}
	m := meshes[0]
	if m.Name != "quad" {
		t.Errorf("Name = %q, want quad", m.Name)
	}
	if len(m.Faces) != 2 {
		t.Fatalf("Faces = %d, want 2", len(m.Faces))
	}
	if m.BBox.Min != (mgl32.Vec3{0, 0, 0}) || m.BBox.Max != (mgl32.Vec3{1, 1, 0}) {
		t.Errorf("BBox = %+v", m.BBox)
	}

	f := m.Faces[0]
	if f.Positions[2] != (mgl32.Vec3{1, 1, 0}) || f.UVs[2] != (mgl32.Vec2{1, 1}) {
		t.Errorf("face 0 corner 2 = %v %v", f.Positions[2], f.UVs[2])
	}
	for c := range 3 {
		if !f.Normals[c].ApproxEqual(mgl32.Vec3{0, 0, 1}) {
			t.Errorf("Normals[%d] = %v, want flat +Z", c, f.Normals[c])
		}
		if !f.Tangents[c].ApproxEqual(mgl32.Vec4{1, 0, 0, 1}) {
			t.Errorf("Tangents[%d] = %v, want +X right-handed", c, f.Tangents[c])
		}
	}

	mat := m.Material
	if mat.Name != "painted" {
		t.Errorf("Material.Name = %q", mat.Name)
	}
	if mat.BaseColorFactor != (mgl32.Vec4{1, 0.5, 0.5, 1}) {
		t.Errorf("BaseColorFactor = %v", mat.BaseColorFactor)
	}
	if mat.MetallicFactor != 0.25 || mat.RoughnessFactor != 0.75 {
		t.Errorf("metallic/roughness = %v/%v", mat.MetallicFactor, mat.RoughnessFactor)
	}
	if mat.EmissiveFactor != (mgl32.Vec3{0.1, 0.2, 0.3}) {
		t.Errorf("EmissiveFactor = %v", mat.EmissiveFactor)
	}
	if mat.NormalScale != 1 || mat.OcclusionStrength != 1 {
		t.Errorf("defaults = %v/%v, want 1/1", mat.NormalScale, mat.OcclusionStrength)
	}
	tex := mat.BaseColor
	if tex.Width != 2 || tex.Height != 2 || tex.Channels != 4 || len(tex.Pix) != 16 {
		t.Fatalf("BaseColor = %dx%dx%d (%d bytes)", tex.Width, tex.Height, tex.Channels, len(tex.Pix))
	}
	if got := tex.Pix[0:4]; !bytes.Equal(got, []byte{255, 0, 0, 255}) {
		t.Errorf("texel (0,0) = %v, want red", got)
	}
	if got := tex.Pix[8:12]; !bytes.Equal(got, []byte{0, 0, 255, 255}) {
		t.Errorf("texel (0,1) = %v, want blue", got)
	}
	if !mat.Normal.Empty() || !mat.MetallicRoughness.Empty() {
		t.Error("unreferenced textures should stay empty")
	}
}

func TestLoad_NoMaterial(t *testing.T) {
	doc := quadDocument(t)
	doc.Meshes[0].Primitives[0].Material = nil
	doc.Meshes[0].Primitives = append(doc.Meshes[0].Primitives, &gltf.Primitive{
		Attributes: doc.Meshes[0].Primitives[0].Attributes,
		Mode:       gltf.PrimitiveLines,
	})
	meshes, err := Load(context.Background(), saveGLB(t, doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("Load() = %d meshes, want line primitive skipped", len(meshes))
	}
	if meshes[0].Material.BaseColorFactor != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("Material = %+v, want default", meshes[0].Material)
	}
	if meshes[0].Name != "quad/0" {
		t.Errorf("Name = %q, want quad/0", meshes[0].Name)
	}
	if len(meshes[0].Faces) != 2 {
		t.Errorf("Faces = %d, want 2", len(meshes[0].Faces))
	}
}

func TestLoad_MissingPosition(t *testing.T) {
	doc := quadDocument(t)
	prim := doc.Meshes[0].Primitives[0]
	prim.Attributes = map[string]uint32{gltf.TEXCOORD_0: prim.Attributes[gltf.TEXCOORD_0]}
	_, err := Load(context.Background(), saveGLB(t, doc))
	if !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("Load() error = %v, want ErrMissingAttribute", err)
	}
}

func TestLoad_NotGLTF(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data []byte
	}{
		{"image.png", encodePNG(t)},
		{"notes.txt", []byte("just some text\n")},
		{"empty.glb", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(context.Background(), path)
			if !errors.Is(err, ErrNotGLTF) {
				t.Errorf("Load() error = %v, want ErrNotGLTF", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.glb"))
	if err == nil || errors.Is(err, ErrNotGLTF) {
		t.Errorf("Load() error = %v, want a file error", err)
	}
}

func TestDecode_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, quadDocument(t), "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Decode() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want bool
	}{
		{"glb", []byte("glTF\x02\x00\x00\x00"), true},
		{"json", []byte("  \n{\"asset\":{}}"), true},
		{"json bom", []byte("\xef\xbb\xbf{}"), true},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR"), false},
		{"text", []byte("hello"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if _, got := Sniff(tt.head); got != tt.want {
			t.Errorf("Sniff(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTriangulate(t *testing.T) {
	idx := []uint32{0, 1, 2, 3, 4}
	tests := []struct {
		mode gltf.PrimitiveMode
		want []uint32
	}{
		{gltf.PrimitiveTriangles, idx},
		{gltf.PrimitiveTriangleStrip, []uint32{0, 1, 2, 2, 1, 3, 2, 3, 4}},
		{gltf.PrimitiveTriangleFan, []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4}},
	}
	for _, tt := range tests {
		got := triangulate(idx, tt.mode)
		if len(got) != len(tt.want) {
			t.Errorf("mode %v: got %v, want %v", tt.mode, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("mode %v: got %v, want %v", tt.mode, got, tt.want)
				break
			}
		}
	}
}

func TestFaceTangents(t *testing.T) {
	n := mgl32.Vec3{0, 0, 1}
	base := core.Face{
		Positions: [3]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   [3]mgl32.Vec3{n, n, n},
	}

	t.Run("mirrored", func(t *testing.T) {
		f := base
		f.UVs = [3]mgl32.Vec2{{1, 0}, {0, 0}, {1, 1}}
		faceTangents(&f)
		for c := range 3 {
			if !f.Tangents[c].ApproxEqual(mgl32.Vec4{-1, 0, 0, -1}) {
				t.Errorf("Tangents[%d] = %v, want -X left-handed", c, f.Tangents[c])
			}
		}
	})

	t.Run("flipped v", func(t *testing.T) {
		f := base
		f.UVs = [3]mgl32.Vec2{{0, 1}, {1, 1}, {0, 0}}
		faceTangents(&f)
		if !f.Tangents[0].ApproxEqual(mgl32.Vec4{1, 0, 0, -1}) {
			t.Errorf("Tangents[0] = %v, want +X left-handed", f.Tangents[0])
		}
	})

	t.Run("degenerate uv", func(t *testing.T) {
		f := base
		faceTangents(&f)
		for c := range 3 {
			if f.Tangents[c] != (mgl32.Vec4{}) {
				t.Errorf("Tangents[%d] = %v, want zero", c, f.Tangents[c])
			}
		}
	})
}
