// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package gpu runs the splat frame stages as WebGPU compute shaders.
//
// It is used through the public splat/gpu package, which registers a
// SplatAccelerator with the splat renderer. Devices come from
// gogpu/wgpu (Pure Go, zero CGO): either a standalone Vulkan device opened
// by Init, or a device shared by the host via SetDeviceProvider.
//
// # Pipeline
//
// Six WGSL stages mirror the CPU reference in internal/splatcompute:
//
//	compact -> (histogram -> scan -> scatter) x passes -> finalize -> composite
//
//   - compact: one invocation per splat. Visible splats claim a slot with
//     atomicAdd and write their depth key, index and screen footprint.
//   - histogram, scan, scatter: one stable 8-bit LSD radix pass each. The
//     tie-break passes over the index bits run before the key passes.
//   - finalize: writes the indirect draw record from the counter.
//   - composite: one workgroup per 16x16 tile blends the sorted instances
//     into the three G-buffer planes.
//
// Each frame operation is one submit followed by a fence wait. The counter
// and the G-buffer are read back so that relighting runs on the host.
//
// # Resources
//
// Buffers are allocated once per render context and stay resident. Splat
// data is uploaded only when the context's splat version changes.
package gpu
