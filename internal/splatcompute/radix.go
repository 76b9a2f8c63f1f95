// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splatcompute

import (
	"math/bits"

	"github.com/gogpu/splat/internal/parallel"
)

const (
	// RadixBits is the digit width of one counting pass.
	RadixBits = 8

	// RadixBuckets is the number of distinct digit values.
	RadixBuckets = 1 << RadixBits

	// KeyPasses is the number of digit passes over a 32-bit key.
	KeyPasses = 32 / RadixBits

	// sortBlock is the number of elements per histogram/scatter work item.
	sortBlock = 2048
)

// TieBreakBits returns the number of value bits needed to order splat
// indices below capacity. Sorting on these bits before the key keeps the
// order of equal depth keys independent of the compaction slot order.
func TieBreakBits(capacity int) int {
	if capacity <= 1 {
		return 0
	}
	return bits.Len(uint(capacity - 1))
}

// Passes returns the fixed number of digit passes for the given tie-break
// width. It depends only on the widths, never on the data.
func Passes(tieBreakBits int) int {
	return (tieBreakBits+RadixBits-1)/RadixBits + KeyPasses
}

// RadixSorter is a stable least-significant-digit radix sort over
// (key, value) pairs. The zero value is ready to use; it keeps its
// histogram scratch between calls.
type RadixSorter struct {
	hist []uint32
}

// Sort orders the first n pairs of keys/values ascending by key. keysAlt and
// valuesAlt are the ping-pong buffers and must hold at least n entries.
//
// With tieBreakBits > 0 the low tieBreakBits of each value form a secondary
// key: pairs with equal keys end up ordered by value. With 0 the sort keeps
// the input order of equal keys.
//
// The returned slices are the buffers holding the result, either the
// primary pair or the alternates depending on the pass count.
func (s *RadixSorter) Sort(pool *parallel.WorkerPool, keys, values, keysAlt, valuesAlt []uint32, n, tieBreakBits int) (sortedKeys, sortedValues []uint32) {
	if n <= 0 {
		return keys[:0], values[:0]
	}
	blocks := parallel.BlockCount(n, sortBlock)
	if need := blocks * RadixBuckets; cap(s.hist) < need {
		s.hist = make([]uint32, need)
	}
	hist := s.hist[:blocks*RadixBuckets]

	srcK, srcV := keys[:n], values[:n]
	dstK, dstV := keysAlt[:n], valuesAlt[:n]

	for shift := 0; shift < tieBreakBits; shift += RadixBits {
		radixPass(pool, srcK, srcV, dstK, dstV, hist, uint(shift), true)
		srcK, srcV, dstK, dstV = dstK, dstV, srcK, srcV
	}
	for pass := range KeyPasses {
		radixPass(pool, srcK, srcV, dstK, dstV, hist, uint(pass*RadixBits), false)
		srcK, srcV, dstK, dstV = dstK, dstV, srcK, srcV
	}
	return srcK, srcV
}

// RadixSort sorts keys/values in place through the alternate buffers, with
// no tie-break. The result is always left in keys/values.
func RadixSort(pool *parallel.WorkerPool, keys, values, keysAlt, valuesAlt []uint32, n int) {
	var s RadixSorter
	sk, sv := s.Sort(pool, keys, values, keysAlt, valuesAlt, n, 0)
	if n > 0 && &sk[0] != &keys[0] {
		copy(keys, sk)
		copy(values, sv)
	}
}

// radixPass is one stable counting pass: per-block histograms, a
// digit-major exclusive scan across blocks, then a per-block scatter that
// walks its elements in order.
func radixPass(pool *parallel.WorkerPool, srcK, srcV, dstK, dstV, hist []uint32, shift uint, byValue bool) {
	n := len(srcK)
	digit := func(i int) uint32 {
		if byValue {
			return (srcV[i] >> shift) & (RadixBuckets - 1)
		}
		return (srcK[i] >> shift) & (RadixBuckets - 1)
	}

	parallel.ForBlocks(pool, n, sortBlock, func(b, lo, hi int) {
		h := hist[b*RadixBuckets : (b+1)*RadixBuckets]
		clear(h)
		for i := lo; i < hi; i++ {
			h[digit(i)]++
		}
	})

	blocks := len(hist) / RadixBuckets
	var sum uint32
	for d := range RadixBuckets {
		for b := range blocks {
			c := hist[b*RadixBuckets+d]
			hist[b*RadixBuckets+d] = sum
			sum += c
		}
	}

	parallel.ForBlocks(pool, n, sortBlock, func(b, lo, hi int) {
		off := hist[b*RadixBuckets : (b+1)*RadixBuckets]
		for i := lo; i < hi; i++ {
			d := digit(i)
			dst := off[d]
			off[d]++
			dstK[dst] = srcK[i]
			dstV[dst] = srcV[i]
		}
	})
}
