package parallel

// BlockCount returns how many blocks of size block cover n items.
func BlockCount(n, block int) int {
	if n <= 0 || block <= 0 {
		return 0
	}
	return (n + block - 1) / block
}

// ForBlocks splits [0, n) into blocks of the given size and calls fn once per
// block with the block index and its half-open range. Blocks run on the pool
// in any order; fn must only write to state owned by its block.
func ForBlocks(p *WorkerPool, n, block int, fn func(b, lo, hi int)) {
	count := BlockCount(n, block)
	if count == 0 {
		return
	}
	work := make([]func(), count)
	for b := range count {
		lo := b * block
		hi := min(lo+block, n)
		work[b] = func() { fn(b, lo, hi) }
	}
	p.ExecuteAll(work)
}

// ForChunks splits [0, n) into about one chunk per worker, each no smaller
// than minChunk, and calls fn with each chunk's range.
func ForChunks(p *WorkerPool, n, minChunk int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := max((n+p.Workers()-1)/p.Workers(), minChunk, 1)
	ForBlocks(p, n, chunk, func(_, lo, hi int) { fn(lo, hi) })
}
