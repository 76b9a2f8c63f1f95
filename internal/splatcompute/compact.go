// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splatcompute

import (
	"math"
	"sync/atomic"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/parallel"
)

// CompactBlock is the number of splats one compaction work item tests,
// matching the compute workgroup size.
const CompactBlock = 256

// DepthKey maps a view depth to an unsigned key whose ascending order is
// the draw order: farthest first for BackToFront, nearest first for
// FrontToBack. The mapping is monotonic over all finite floats.
func DepthKey(depth float32, order core.SortOrder) uint32 {
	k := orderedBits(depth)
	if order == core.BackToFront {
		return ^k
	}
	return k
}

// orderedBits flips the IEEE-754 bits of f so that unsigned integer order
// equals float order.
func orderedBits(f float32) uint32 {
	b := math.Float32bits(f)
	if b&0x80000000 != 0 {
		return ^b
	}
	return b | 0x80000000
}

// CompactResult reports the outcome of one compaction run.
type CompactResult struct {
	// Count is the number of compacted entries, at most the key capacity.
	Count int
	// Dropped is the number of visible splats that found no free slot.
	Dropped int
}

// Compact tests every splat against the visibility predicate. Each visible
// splat claims the next slot of counter with one atomic increment and
// writes its depth key to keys[slot] and its index to values[slot]; its
// footprint goes to quads[index]. Slots at or beyond len(keys) are dropped.
//
// counter is reset to zero first. Its final value is the number of visible
// splats, which can exceed the capacity; the returned Count is capped.
// quads must be at least as long as splats.
func Compact(pool *parallel.WorkerPool, splats []core.Splat, p *ViewParams, keys, values []uint32, quads []Quad, counter *atomic.Uint32) CompactResult {
	counter.Store(0)
	capacity := uint32(min(len(keys), len(values)))

	parallel.ForBlocks(pool, len(splats), CompactBlock, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			q, ok := Project(&splats[i], p)
			if !ok {
				continue
			}
			slot := counter.Add(1) - 1
			if slot >= capacity {
				continue
			}
			q.Index = uint32(i)
			quads[i] = q
			keys[slot] = DepthKey(q.Depth, p.Order)
			values[slot] = uint32(i)
		}
	})

	claimed := counter.Load()
	count := min(claimed, capacity)
	return CompactResult{Count: int(count), Dropped: int(claimed - count)}
}
