// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package glb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/gogpu/splat/core"
)

var (
	// ErrNotGLTF is returned when the input is not a glTF document.
	ErrNotGLTF = errors.New("glb: not a glTF file")

	// ErrMissingAttribute is returned for a triangle primitive without
	// positions.
	ErrMissingAttribute = errors.New("glb: missing vertex attribute")
)

// sniffBytes is the prefix read to detect the container type.
const sniffBytes = 262

var glbType = filetype.NewType("glb", "model/gltf-binary")

func init() {
	filetype.AddMatcher(glbType, func(buf []byte) bool {
		return len(buf) >= 4 && string(buf[:4]) == "glTF"
	})
}

// Sniff reports whether head, the first bytes of a file, starts a glTF
// document, either a GLB container or a JSON object.
func Sniff(head []byte) (types.Type, bool) {
	kind, _ := filetype.Match(head)
	if kind == glbType {
		return kind, true
	}
	if kind == filetype.Unknown {
		if trimmed := bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf"); len(trimmed) > 0 && trimmed[0] == '{' {
			return types.NewType("gltf", "model/gltf+json"), true
		}
	}
	return kind, false
}

// Load reads the glTF file at path and returns its triangle meshes with
// materials and decoded textures.
func Load(ctx context.Context, path string) ([]core.Mesh, error) {
	if err := sniffFile(path); err != nil {
		return nil, err
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("glb: open %s: %w", path, err)
	}
	return Decode(ctx, doc, filepath.Dir(path))
}

func sniffFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("glb: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("glb: read %s: %w", path, err)
	}
	if kind, ok := Sniff(head[:n]); !ok {
		if kind == filetype.Unknown {
			return fmt.Errorf("%w: %s", ErrNotGLTF, path)
		}
		return fmt.Errorf("%w: %s is %s", ErrNotGLTF, path, kind.MIME.Value)
	}
	return nil
}

// Decode converts a parsed document. dir resolves relative image URIs.
func Decode(ctx context.Context, doc *gltf.Document, dir string) ([]core.Mesh, error) {
	textures, err := decodeTextures(ctx, doc, dir)
	if err != nil {
		return nil, err
	}

	var meshes []core.Mesh
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !isTriangles(prim.Mode) {
				continue
			}
			faces, err := readFaces(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("glb: mesh %d primitive %d: %w", mi, pi, err)
			}
			mesh := core.Mesh{
				Name:     primitiveName(m, mi, pi),
				Faces:    faces,
				Material: core.DefaultMaterial(),
			}
			if prim.Material != nil && int(*prim.Material) < len(doc.Materials) {
				mesh.Material = convertMaterial(doc.Materials[*prim.Material], textures)
			}
			mesh.ComputeBBox()
			meshes = append(meshes, mesh)
		}
	}
	return meshes, nil
}

func primitiveName(m *gltf.Mesh, mi, pi int) string {
	name := m.Name
	if name == "" {
		name = fmt.Sprintf("mesh%d", mi)
	}
	if len(m.Primitives) > 1 {
		name = fmt.Sprintf("%s/%d", name, pi)
	}
	return name
}

func isTriangles(mode gltf.PrimitiveMode) bool {
	switch mode {
	case gltf.PrimitiveTriangles, gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
		return true
	default:
		return false
	}
}

// readFaces expands an indexed primitive into faces.
func readFaces(doc *gltf.Document, prim *gltf.Primitive) ([]core.Face, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, gltf.POSITION)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", gltf.POSITION, err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read %s: %w", gltf.NORMAL, err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read %s: %w", gltf.TEXCOORD_0, err)
		}
	}
	var tangents [][4]float32
	if idx, ok := prim.Attributes[gltf.TANGENT]; ok {
		if tangents, err = modeler.ReadTangent(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("read %s: %w", gltf.TANGENT, err)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	tris := triangulate(indices, prim.Mode)

	faces := make([]core.Face, 0, len(tris)/3)
	for t := 0; t+2 < len(tris); t += 3 {
		var f core.Face
		valid := true
		for c := range 3 {
			v := int(tris[t+c])
			if v >= len(positions) {
				valid = false
				break
			}
			f.Positions[c] = positions[v]
			if v < len(uvs) {
				f.UVs[c] = uvs[v]
			}
			if v < len(normals) {
				f.Normals[c] = normals[v]
			}
			if v < len(tangents) {
				f.Tangents[c] = tangents[v]
			}
		}
		if !valid {
			return nil, fmt.Errorf("index out of range in triangle %d", t/3)
		}
		if len(normals) == 0 {
			flatNormals(&f)
		}
		if len(tangents) == 0 {
			faceTangents(&f)
		}
		faces = append(faces, f)
	}
	return faces, nil
}

// triangulate turns strip and fan index lists into a triangle list.
func triangulate(idx []uint32, mode gltf.PrimitiveMode) []uint32 {
	switch mode {
	case gltf.PrimitiveTriangleStrip:
		out := make([]uint32, 0, 3*max(len(idx)-2, 0))
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				out = append(out, idx[i], idx[i+1], idx[i+2])
			} else {
				out = append(out, idx[i+1], idx[i], idx[i+2])
			}
		}
		return out
	case gltf.PrimitiveTriangleFan:
		out := make([]uint32, 0, 3*max(len(idx)-2, 0))
		for i := 1; i+1 < len(idx); i++ {
			out = append(out, idx[0], idx[i], idx[i+1])
		}
		return out
	default:
		return idx
	}
}

func flatNormals(f *core.Face) {
	n := f.Positions[1].Sub(f.Positions[0]).Cross(f.Positions[2].Sub(f.Positions[0]))
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}
	f.Normals = [3]mgl32.Vec3{n, n, n}
}
