// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package splatcompute is the CPU implementation of the per-frame splat
// stages: visibility compaction, depth radix sort, indirect composite, the
// mesh depth prepass and the G-buffer shading resolve.
//
// Each stage mirrors one compute shader of internal/gpu and communicates
// with the next only through caller-owned buffers, so the software and GPU
// backends are interchangeable behind the same RenderContext. Stages run
// data-parallel on an internal/parallel.WorkerPool; a nil pool runs them on
// the calling goroutine with identical results.
package splatcompute
