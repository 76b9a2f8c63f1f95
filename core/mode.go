// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package core

// RenderMode selects which composited attribute the shading pass shows.
type RenderMode int

const (
	// RenderModeLit shades albedo with the configured light.
	RenderModeLit RenderMode = iota

	// RenderModeAlbedo shows the unlit base color.
	RenderModeAlbedo

	// RenderModeNormal shows normals remapped to [0,1].
	RenderModeNormal

	// RenderModeDepth shows view depth, near is white.
	RenderModeDepth

	// RenderModeMetallic shows the metallic term as gray.
	RenderModeMetallic

	// RenderModeRoughness shows the roughness term as gray.
	RenderModeRoughness

	// RenderModeOcclusion shows ambient occlusion as gray.
	RenderModeOcclusion
)

// String returns the render mode name.
func (m RenderMode) String() string {
	switch m {
	case RenderModeLit:
		return "Lit"
	case RenderModeAlbedo:
		return "Albedo"
	case RenderModeNormal:
		return "Normal"
	case RenderModeDepth:
		return "Depth"
	case RenderModeMetallic:
		return "Metallic"
	case RenderModeRoughness:
		return "Roughness"
	case RenderModeOcclusion:
		return "Occlusion"
	default:
		return "Unknown"
	}
}

// SortOrder selects the direction of the depth sort and, with it, the
// blend operator of the composite stage.
type SortOrder int

const (
	// BackToFront draws the farthest splat first with the over operator.
	BackToFront SortOrder = iota

	// FrontToBack draws the nearest splat first with the under operator.
	FrontToBack
)

// String returns the sort order name.
func (o SortOrder) String() string {
	switch o {
	case BackToFront:
		return "BackToFront"
	case FrontToBack:
		return "FrontToBack"
	default:
		return "Unknown"
	}
}
