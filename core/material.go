// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package core

import "github.com/go-gl/mathgl/mgl32"

// Texture is a decoded 8-bit image. Pix is row-major with Channels
// interleaved components per pixel and no row padding.
type Texture struct {
	Width, Height int
	Channels      int
	Pix           []byte
}

// Empty reports whether the texture has no usable pixels.
func (t *Texture) Empty() bool {
	return t == nil || t.Width <= 0 || t.Height <= 0 || t.Channels <= 0 ||
		len(t.Pix) < t.Width*t.Height*t.Channels
}

// Material is a metallic-roughness PBR material.
//
// The metallic-roughness texture follows the glTF channel convention:
// roughness in G and metallic in B.
type Material struct {
	Name string

	BaseColorFactor   mgl32.Vec4
	MetallicFactor    float32
	RoughnessFactor   float32
	NormalScale       float32
	OcclusionStrength float32
	EmissiveFactor    mgl32.Vec3

	BaseColor         Texture
	MetallicRoughness Texture
	Normal            Texture
	Occlusion         Texture
	Emissive          Texture
}

// DefaultMaterial returns a white material with the glTF default factors.
func DefaultMaterial() Material {
	return Material{
		Name:              "default",
		BaseColorFactor:   mgl32.Vec4{1, 1, 1, 1},
		MetallicFactor:    1,
		RoughnessFactor:   1,
		NormalScale:       1,
		OcclusionStrength: 1,
	}
}
