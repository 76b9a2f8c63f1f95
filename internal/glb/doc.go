// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package glb loads triangle meshes and metallic-roughness materials from
// glTF 2.0 files, binary (.glb) or JSON (.gltf) with external buffers.
//
// Every triangle primitive becomes one core.Mesh, in document order. Node
// transforms are not applied; positions are used in mesh space. Missing
// normals fall back to the flat face normal and missing tangents are
// derived from the UV deltas of each face.
//
// Textures referenced by materials are decoded concurrently. PNG, JPEG,
// WebP and BMP images are supported.
package glb
