package splat

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/splat/core"
)

// Data model aliases. The definitions live in the core package so that
// internal packages can share them without importing the root.
type (
	// Splat is one oriented gaussian disk.
	Splat = core.Splat

	// Face is a mesh triangle with per-corner attributes.
	Face = core.Face

	// Mesh is a list of faces sharing one material.
	Mesh = core.Mesh

	// Material holds PBR factors and textures.
	Material = core.Material

	// Texture is an 8-bit interleaved image.
	Texture = core.Texture

	// BBox is an axis-aligned bounding box.
	BBox = core.BBox

	// DrawIndirectArgs is the indirect draw record written by the sort pipeline.
	DrawIndirectArgs = core.DrawIndirectArgs

	// GBuffer holds the composited splat attributes.
	GBuffer = core.GBuffer
)

// RenderMode selects which attribute the relighting pass shows.
type RenderMode = core.RenderMode

// Render modes.
const (
	RenderModeLit       = core.RenderModeLit
	RenderModeAlbedo    = core.RenderModeAlbedo
	RenderModeNormal    = core.RenderModeNormal
	RenderModeDepth     = core.RenderModeDepth
	RenderModeMetallic  = core.RenderModeMetallic
	RenderModeRoughness = core.RenderModeRoughness
	RenderModeOcclusion = core.RenderModeOcclusion
)

// SortOrder selects the depth sort direction and the blend operator.
type SortOrder = core.SortOrder

// Sort orders.
const (
	BackToFront = core.BackToFront
	FrontToBack = core.FrontToBack
)

// DeviceHandle is a GPU device shared by a host application. Accelerators
// that implement DeviceProviderAware reuse it instead of opening their own.
type DeviceHandle = gpucontext.DeviceProvider
