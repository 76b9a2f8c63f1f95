// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package glb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/h2non/filetype"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/webp" // register WebP

	"github.com/gogpu/splat/core"
)

// decodeTextures decodes every texture referenced by a material, once each.
// The result is indexed like doc.Textures; unreferenced entries stay empty.
func decodeTextures(ctx context.Context, doc *gltf.Document, dir string) ([]core.Texture, error) {
	used := make([]bool, len(doc.Textures))
	mark := func(idx *uint32) {
		if idx != nil && int(*idx) < len(used) {
			used[*idx] = true
		}
	}
	for _, m := range doc.Materials {
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorTexture != nil {
				mark(&pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				mark(&pbr.MetallicRoughnessTexture.Index)
			}
		}
		if m.NormalTexture != nil {
			mark(m.NormalTexture.Index)
		}
		if m.OcclusionTexture != nil {
			mark(m.OcclusionTexture.Index)
		}
		if m.EmissiveTexture != nil {
			mark(&m.EmissiveTexture.Index)
		}
	}

	out := make([]core.Texture, len(doc.Textures))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tex := range doc.Textures {
		if !used[i] || tex.Source == nil || int(*tex.Source) >= len(doc.Images) {
			continue
		}
		img := doc.Images[*tex.Source]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := imageData(doc, img, dir)
			if err != nil {
				return fmt.Errorf("glb: texture %d: %w", i, err)
			}
			t, err := decodeImage(data)
			if err != nil {
				return fmt.Errorf("glb: texture %d: %w", i, err)
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// imageData returns the encoded bytes of img from a buffer view, a data
// URI or a file next to the document.
func imageData(doc *gltf.Document, img *gltf.Image, dir string) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", *img.BufferView)
		}
		return modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
	case img.IsEmbeddedResource():
		return img.MarshalData()
	case img.URI != "":
		name, err := url.PathUnescape(img.URI)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	default:
		return nil, fmt.Errorf("image %q has no data", img.Name)
	}
}

// decodeImage decodes to a 4-channel non-premultiplied texture.
func decodeImage(data []byte) (core.Texture, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if kind, _ := filetype.Match(data); kind != filetype.Unknown {
			return core.Texture{}, fmt.Errorf("decode %s: %w", kind.MIME.Value, err)
		}
		return core.Texture{}, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	nrgba, ok := src.(*image.NRGBA)
	if !ok || nrgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	}
	return core.Texture{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: 4,
		Pix:      nrgba.Pix[:4*b.Dx()*b.Dy()],
	}, nil
}

// convertMaterial maps a glTF material onto core.Material. Absent factors
// keep the glTF defaults.
func convertMaterial(m *gltf.Material, textures []core.Texture) core.Material {
	out := core.DefaultMaterial()
	if m.Name != "" {
		out.Name = m.Name
	}
	tex := func(idx uint32) core.Texture {
		if int(idx) < len(textures) {
			return textures[idx]
		}
		return core.Texture{}
	}

	if pbr := m.PBRMetallicRoughness; pbr != nil {
		out.BaseColorFactor = pbr.BaseColorFactorOrDefault()
		out.MetallicFactor = pbr.MetallicFactorOrDefault()
		out.RoughnessFactor = pbr.RoughnessFactorOrDefault()
		if pbr.BaseColorTexture != nil {
			out.BaseColor = tex(pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			out.MetallicRoughness = tex(pbr.MetallicRoughnessTexture.Index)
		}
	}
	if nt := m.NormalTexture; nt != nil && nt.Index != nil {
		out.NormalScale = nt.ScaleOrDefault()
		out.Normal = tex(*nt.Index)
	}
	if ot := m.OcclusionTexture; ot != nil && ot.Index != nil {
		out.OcclusionStrength = ot.StrengthOrDefault()
		out.Occlusion = tex(*ot.Index)
	}
	out.EmissiveFactor = m.EmissiveFactor
	if m.EmissiveTexture != nil {
		out.Emissive = tex(m.EmissiveTexture.Index)
	}
	return out
}
