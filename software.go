package splat

import (
	"github.com/gogpu/splat/internal/parallel"
	"github.com/gogpu/splat/internal/splatcompute"
)

// softwareAccelerator runs compaction, sort and composite on the CPU
// worker pool. Scratch state is reused across frames.
type softwareAccelerator struct {
	pool       *parallel.WorkerPool
	sorter     splatcompute.RadixSorter
	compositor splatcompute.Compositor
	view       splatcompute.ViewParams
}

var _ Accelerator = (*softwareAccelerator)(nil)

func newSoftwareAccelerator(pool *parallel.WorkerPool) *softwareAccelerator {
	return &softwareAccelerator{pool: pool}
}

func (a *softwareAccelerator) Name() string { return "software" }

func (a *softwareAccelerator) Init() error { return nil }

func (a *softwareAccelerator) Close() {}

func (a *softwareAccelerator) Release(*RenderContext) {}

func (a *softwareAccelerator) Compact(rc *RenderContext) error {
	a.view = rc.viewParams()
	splatcompute.Compact(a.pool, rc.Splats(), &a.view, rc.keys, rc.values, rc.quads, &rc.counter)
	rc.RecordCompaction(int(rc.counter.Load()))
	return nil
}

func (a *softwareAccelerator) Sort(rc *RenderContext) error {
	_, rc.sortedValues = a.sorter.Sort(a.pool, rc.keys, rc.values, rc.keysAlt, rc.valuesAlt,
		rc.visible, splatcompute.TieBreakBits(rc.capacity))
	return nil
}

func (a *softwareAccelerator) Composite(rc *RenderContext) error {
	var draw DrawIndirectArgs
	splatcompute.Finalize(rc.visible, &draw)
	rc.RecordDraw(draw)
	a.compositor.Composite(a.pool, rc.quads, rc.sortedValues, draw, rc.gbuf, rc.Config.Order)
	return nil
}
