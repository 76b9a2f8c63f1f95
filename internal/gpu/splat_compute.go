// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// splat_compute.go defines the GPU dispatch orchestration for the splat
// frame pipeline. It manages shader compilation, buffer allocation, and the
// compact -> sort -> bin -> composite dispatch sequence that mirrors the
// CPU reference in internal/splatcompute.

package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/splatcompute"
)

// =============================================================================
// Embedded WGSL Shader Sources
// =============================================================================

//go:embed shaders/splat_compact.wgsl
var shaderCompact string

//go:embed shaders/splat_histogram.wgsl
var shaderHistogram string

//go:embed shaders/splat_scan.wgsl
var shaderScan string

//go:embed shaders/splat_scatter.wgsl
var shaderScatter string

//go:embed shaders/splat_finalize.wgsl
var shaderFinalize string

//go:embed shaders/splat_tile_emit.wgsl
var shaderTileEmit string

//go:embed shaders/splat_tile_scan.wgsl
var shaderTileScan string

//go:embed shaders/splat_composite.wgsl
var shaderComposite string

// =============================================================================
// Constants
// =============================================================================

const (
	// compactWGSize matches @workgroup_size in splat_compact.wgsl.
	compactWGSize = splatcompute.CompactBlock

	// sortWGSize is the workgroup size of the histogram and scatter stages.
	// Each invocation owns one block of sortBlockSize entries.
	sortWGSize = 64

	// sortBlockSize matches BLOCK_SIZE in the sort shaders.
	sortBlockSize = 256

	// tileEmitWGSize matches @workgroup_size in splat_tile_emit.wgsl.
	tileEmitWGSize = 256

	// tileEntriesPerSplat sizes the tile entry list relative to the
	// capacity. Frames whose instances cover more tiles in total lose
	// the excess entries.
	tileEntriesPerSplat = 4

	// splatStride is the number of f32 words per uploaded splat.
	splatStride = 24

	// quadStride is the number of f32 words per projected footprint.
	quadStride = 20

	// gbufferPlanes is the number of vec4 planes in the G-buffer.
	gbufferPlanes = 3

	// splatFenceTimeout is the maximum time to wait for GPU work to complete.
	splatFenceTimeout = 5 * time.Second
)

// =============================================================================
// SplatComputeStage
// =============================================================================

// SplatComputeStage identifies one compute stage of the splat pipeline.
type SplatComputeStage int

const (
	// SplatStageCompact tests visibility and compacts visible splats.
	// Input: config + splats + reference depth. Output: counter, keys, values, quads.
	SplatStageCompact SplatComputeStage = iota

	// SplatStageHistogram counts radix digits per block.
	// Input: pass + keys/values. Output: hist.
	SplatStageHistogram

	// SplatStageScan turns the block histograms into scatter offsets.
	// Input: pass + hist. Output: hist.
	SplatStageScan

	// SplatStageScatter moves every pair to its digit offset.
	// Input: pass + keys/values + hist. Output: alternate keys/values.
	SplatStageScatter

	// SplatStageFinalize writes the indirect draw record.
	// Input: config + counter. Output: draw.
	SplatStageFinalize

	// SplatStageTileEmit appends one (tile, rank) entry per tile each
	// sorted instance covers, and counts the entries per tile.
	// Input: config + quads + sorted values + draw. Output: tile counter,
	// tile counts, tile keys/values.
	SplatStageTileEmit

	// SplatStageTileScan turns the tile counts into tile start offsets.
	// Input: config + tile counts. Output: tile start.
	SplatStageTileScan

	// SplatStageComposite blends each 16x16 tile's entries in rank order.
	// Input: config + quads + sorted values + tile start + tile values.
	// Output: gbuffer.
	SplatStageComposite

	// SplatStageCount is the total number of stages.
	SplatStageCount
)

// String returns the shader name of the stage.
func (s SplatComputeStage) String() string {
	switch s {
	case SplatStageCompact:
		return "compact"
	case SplatStageHistogram:
		return "histogram"
	case SplatStageScan:
		return "scan"
	case SplatStageScatter:
		return "scatter"
	case SplatStageFinalize:
		return "finalize"
	case SplatStageTileEmit:
		return "tile_emit"
	case SplatStageTileScan:
		return "tile_scan"
	case SplatStageComposite:
		return "composite"
	default:
		return fmt.Sprintf("SplatComputeStage(%d)", int(s))
	}
}

// =============================================================================
// SplatComputeConfig
// =============================================================================

// SplatComputeConfig is the per-frame uniform shared by the compact,
// finalize, tile and composite stages. It must match the Config struct in
// the WGSL sources.
type SplatComputeConfig struct {
	View         mgl32.Mat4
	Projection   mgl32.Mat4
	NormalMatrix mgl32.Mat3

	Width, Height uint32
	Near, Far     float32
	GaussianStd   float32
	Order         core.SortOrder
	DepthTest     bool
	DepthBias     float32
	SplatCount    uint32
	Capacity      uint32

	// TileEntries is the length of the tile entry list. Compact fills it
	// from the buffer layout.
	TileEntries uint32
}

// sizeInBytes returns the std140 size of the uniform: two mat4, one mat3
// with 16-byte column stride, and thirteen scalars rounded up to the
// 16-byte struct alignment.
func (c SplatComputeConfig) sizeInBytes() uint64 {
	return 64 + 64 + 48 + 16*4
}

// tilesX returns the number of composite tiles per row.
func (c SplatComputeConfig) tilesX() uint32 {
	return (c.Width + splatcompute.TileSize - 1) / splatcompute.TileSize
}

func (c SplatComputeConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	off := 0
	putF := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	putU := func(u uint32) {
		binary.LittleEndian.PutUint32(buf[off:], u)
		off += 4
	}

	for _, f := range c.View {
		putF(f)
	}
	for _, f := range c.Projection {
		putF(f)
	}
	for col := range 3 {
		for row := range 3 {
			putF(c.NormalMatrix.At(row, col))
		}
		off += 4 // column padding
	}

	putU(c.Width)
	putU(c.Height)
	putF(c.Near)
	putF(c.Far)
	putF(c.GaussianStd)
	putU(uint32(c.Order)) //nolint:gosec // two-valued enum
	putU(boolU32(c.DepthTest))
	putF(c.DepthBias)
	putU(c.SplatCount)
	putU(c.Capacity)
	putU(c.tilesX())
	putU(boolU32(c.NormalMatrix != mgl32.Mat3{}))
	putU(c.TileEntries)
	return buf
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// sortPassParams is the uniform of one radix pass. It must match the
// SortPass struct in the sort shaders.
type sortPassParams struct {
	Shift   uint32
	ByValue bool
	Count   uint32
	Blocks  uint32
}

func (p sortPassParams) toBytes() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], p.Shift)
	binary.LittleEndian.PutUint32(buf[4:], boolU32(p.ByValue))
	binary.LittleEndian.PutUint32(buf[8:], p.Count)
	binary.LittleEndian.PutUint32(buf[12:], p.Blocks)
	return buf
}

// depthKeyBits is the width of the depth sort key.
const depthKeyBits = 32

// digitPasses returns the number of radix passes over width bits.
func digitPasses(width int) int {
	return (width + splatcompute.RadixBits - 1) / splatcompute.RadixBits
}

// sortPlan returns the uniform of every radix pass for count entries: the
// passes over the low valueBits of the value first, then the passes over
// the low keyBits of the key.
func sortPlan(count uint32, valueBits, keyBits int) []sortPassParams {
	blocks := (count + sortBlockSize - 1) / sortBlockSize
	passes := make([]sortPassParams, 0, digitPasses(valueBits)+digitPasses(keyBits))
	for shift := 0; shift < valueBits; shift += splatcompute.RadixBits {
		passes = append(passes, sortPassParams{Shift: uint32(shift), ByValue: true, Count: count, Blocks: blocks}) //nolint:gosec // shift < 32
	}
	for shift := 0; shift < keyBits; shift += splatcompute.RadixBits {
		passes = append(passes, sortPassParams{Shift: uint32(shift), Count: count, Blocks: blocks}) //nolint:gosec // shift < 32
	}
	return passes
}

// packSplats converts splats to the splat_compact.wgsl layout: position,
// scale, rotation (x, y, z, w), color, normal, PBR, padded to splatStride.
func packSplats(splats []core.Splat) []byte {
	buf := make([]byte, len(splats)*splatStride*4)
	for i := range splats {
		s := &splats[i]
		words := [splatStride]float32{
			s.Position[0], s.Position[1], s.Position[2],
			s.Scale[0], s.Scale[1], s.Scale[2],
			s.Rotation.V[0], s.Rotation.V[1], s.Rotation.V[2], s.Rotation.W,
			s.Color[0], s.Color[1], s.Color[2], s.Color[3],
			s.Normal[0], s.Normal[1], s.Normal[2],
			s.PBR[0], s.PBR[1], s.PBR[2], s.PBR[3],
		}
		base := i * splatStride * 4
		for k, f := range words {
			binary.LittleEndian.PutUint32(buf[base+k*4:], math.Float32bits(f))
		}
	}
	return buf
}

// unpackGBuffer splits the three readback planes into g.
func unpackGBuffer(data []byte, g *core.GBuffer) {
	planes := [gbufferPlanes][]float32{g.Color, g.Normal, g.Surface}
	off := 0
	for _, plane := range planes {
		for i := range plane {
			plane[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
	}
}

// =============================================================================
// SplatComputeBuffers
// =============================================================================

// SplatComputeLayout describes the fixed sizes of one render context.
type SplatComputeLayout struct {
	Capacity      uint32
	Width, Height uint32
	TieBreakBits  int
}

// tiles returns the number of 16x16 composite tiles.
func (l SplatComputeLayout) tiles() uint32 {
	ts := uint32(splatcompute.TileSize)
	return ((l.Width + ts - 1) / ts) * ((l.Height + ts - 1) / ts)
}

// tileBits returns the key width that orders tile indices.
func (l SplatComputeLayout) tileBits() int {
	if l.tiles() <= 1 {
		return 0
	}
	return bits.Len32(l.tiles() - 1)
}

// tileEntries returns the length of the tile entry list.
func (l SplatComputeLayout) tileEntries() uint32 {
	return l.Capacity * tileEntriesPerSplat
}

// depthPasses and tilePasses return the radix pass counts of the depth
// sort and the tile sort. Both depend only on the layout.
func (l SplatComputeLayout) depthPasses() int {
	return splatcompute.Passes(l.TieBreakBits)
}

func (l SplatComputeLayout) tilePasses() int {
	return digitPasses(l.TieBreakBits) + digitPasses(l.tileBits())
}

// maxBlocks returns the histogram block count of the longer sort, the
// one over a full tile entry list.
func (l SplatComputeLayout) maxBlocks() uint32 {
	return (l.tileEntries() + sortBlockSize - 1) / sortBlockSize
}

// gbufferBytes returns the size of all G-buffer planes.
func (l SplatComputeLayout) gbufferBytes() uint64 {
	return uint64(l.Width) * uint64(l.Height) * 4 * 4 * gbufferPlanes
}

// SplatComputeBuffers holds the device buffers of one render context.
// They live as long as the context; only the uniforms and the splat data
// are rewritten between frames.
type SplatComputeBuffers struct {
	Layout SplatComputeLayout

	Config    hal.Buffer
	Splats    hal.Buffer
	Depth     hal.Buffer
	Counter   hal.Buffer
	Keys      hal.Buffer
	Values    hal.Buffer
	KeysAlt   hal.Buffer
	ValuesAlt hal.Buffer
	Quads     hal.Buffer
	Hist      hal.Buffer
	Draw      hal.Buffer
	GBuffer   hal.Buffer

	// Tile binning: the entry counter, per-tile counts and start offsets,
	// and the (tile, rank) entry pairs with their sort alternates.
	TileCounter   hal.Buffer
	TileCounts    hal.Buffer
	TileStart     hal.Buffer
	TileKeys      hal.Buffer
	TileValues    hal.Buffer
	TileKeysAlt   hal.Buffer
	TileValuesAlt hal.Buffer

	// SortPasses and TileSortPasses hold one uniform per radix pass of the
	// depth sort and the tile sort.
	SortPasses     []hal.Buffer
	TileSortPasses []hal.Buffer

	// CounterStaging and OutputStaging are the readback targets. The
	// output staging buffer holds the draw record followed by the G-buffer.
	CounterStaging hal.Buffer
	OutputStaging  hal.Buffer
}

// sortedInAlt reports whether the depth sort leaves its result in the
// alternate buffers.
func (b *SplatComputeBuffers) sortedInAlt() bool {
	return b.Layout.depthPasses()%2 == 1
}

// sortedValues returns the buffer holding the depth-sorted splat indices.
func (b *SplatComputeBuffers) sortedValues() hal.Buffer {
	if b.sortedInAlt() {
		return b.ValuesAlt
	}
	return b.Values
}

// tileValues returns the buffer holding the tile-sorted ranks.
func (b *SplatComputeBuffers) tileValues() hal.Buffer {
	if b.Layout.tilePasses()%2 == 1 {
		return b.TileValuesAlt
	}
	return b.TileValues
}

// =============================================================================
// SplatComputeDispatcher
// =============================================================================

// SplatComputeDispatcher owns the compute pipelines of the splat frame and
// records their dispatches. It is safe for concurrent use; buffers passed
// to it must not be shared between concurrent frames.
type SplatComputeDispatcher struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue

	shaderSources   [SplatStageCount]string
	shaderModules   [SplatStageCount]hal.ShaderModule
	bgLayouts       [SplatStageCount]hal.BindGroupLayout
	pipelineLayouts [SplatStageCount]hal.PipelineLayout
	pipelines       [SplatStageCount]hal.ComputePipeline

	initialized bool
}

// NewSplatComputeDispatcher creates a dispatcher for the given device.
// Init must be called before any dispatch.
func NewSplatComputeDispatcher(device hal.Device, queue hal.Queue) *SplatComputeDispatcher {
	return &SplatComputeDispatcher{
		device: device,
		queue:  queue,
		shaderSources: [SplatStageCount]string{
			SplatStageCompact:   shaderCompact,
			SplatStageHistogram: shaderHistogram,
			SplatStageScan:      shaderScan,
			SplatStageScatter:   shaderScatter,
			SplatStageFinalize:  shaderFinalize,
			SplatStageTileEmit:  shaderTileEmit,
			SplatStageTileScan:  shaderTileScan,
			SplatStageComposite: shaderComposite,
		},
	}
}

// stageBindGroupLayoutEntries returns the bind group layout of a stage.
// Binding 0 is always the stage uniform.
func stageBindGroupLayoutEntries(stage SplatComputeStage) []gputypes.BindGroupLayoutEntry {
	uniform := gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch stage {
	case SplatStageCompact:
		// splats, depth_ref | counter, keys, values, quads
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(1), storageRO(2), storageRW(3), storageRW(4), storageRW(5), storageRW(6),
		}

	case SplatStageHistogram:
		// keys_src, values_src | hist
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(1), storageRO(2), storageRW(3),
		}

	case SplatStageScan:
		// hist
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRW(1),
		}

	case SplatStageScatter:
		// keys_src, values_src | hist, keys_dst, values_dst
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(1), storageRO(2), storageRW(3), storageRW(4), storageRW(5),
		}

	case SplatStageFinalize:
		// counter, draw
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRW(1), storageRW(2),
		}

	case SplatStageTileEmit:
		// quads, sorted_values, draw | counter, tile_counts, tile_keys, tile_values
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(1), storageRO(2), storageRO(3),
			storageRW(4), storageRW(5), storageRW(6), storageRW(7),
		}

	case SplatStageTileScan:
		// tile_counts | tile_start
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(1), storageRW(2),
		}

	case SplatStageComposite:
		// quads, sorted_values, tile_start, tile_values | gbuffer
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(1), storageRO(2), storageRO(3), storageRO(4), storageRW(5),
		}

	default:
		return nil
	}
}

// Init compiles all WGSL shaders and creates the compute pipelines. It is
// safe to call Init multiple times.
func (d *SplatComputeDispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	for i := SplatComputeStage(0); i < SplatStageCount; i++ {
		src := d.shaderSources[i]
		if src == "" {
			return fmt.Errorf("splat compute: missing shader source for stage %s", i)
		}

		stageName := "splat_" + i.String()

		module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  stageName,
			Source: hal.ShaderSource{WGSL: src},
		})
		if err != nil {
			d.destroyPartialInit(i)
			return fmt.Errorf("splat compute: create shader module for %s: %w", i, err)
		}
		d.shaderModules[i] = module

		entries := stageBindGroupLayoutEntries(i)
		bgLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   stageName + "_bgl",
			Entries: entries,
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("splat compute: create bind group layout for %s: %w", i, err)
		}
		d.bgLayouts[i] = bgLayout

		pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            stageName + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("splat compute: create pipeline layout for %s: %w", i, err)
		}
		d.pipelineLayouts[i] = pipelineLayout

		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  stageName,
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("splat compute: create compute pipeline for %s: %w", i, err)
		}
		d.pipelines[i] = pipeline

		slogger().Debug("splat compute: pipeline created",
			"stage", i.String(),
			"bindings", len(entries),
			"shader_bytes", len(src))
	}

	slogger().Info("splat compute: all pipelines initialized", "stages", int(SplatStageCount))
	d.initialized = true
	return nil
}

// destroyPartialInit releases resources of the stages below upTo.
func (d *SplatComputeDispatcher) destroyPartialInit(upTo SplatComputeStage) {
	for j := SplatComputeStage(0); j < upTo; j++ {
		d.destroyStage(j)
	}
}

func (d *SplatComputeDispatcher) destroyStage(j SplatComputeStage) {
	if d.pipelines[j] != nil {
		d.device.DestroyComputePipeline(d.pipelines[j])
		d.pipelines[j] = nil
	}
	if d.pipelineLayouts[j] != nil {
		d.device.DestroyPipelineLayout(d.pipelineLayouts[j])
		d.pipelineLayouts[j] = nil
	}
	if d.bgLayouts[j] != nil {
		d.device.DestroyBindGroupLayout(d.bgLayouts[j])
		d.bgLayouts[j] = nil
	}
	if d.shaderModules[j] != nil {
		d.device.DestroyShaderModule(d.shaderModules[j])
		d.shaderModules[j] = nil
	}
}

// Close releases all pipelines. Buffers allocated by the dispatcher must
// be destroyed separately.
func (d *SplatComputeDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := SplatComputeStage(0); i < SplatStageCount; i++ {
		d.destroyStage(i)
	}
	d.initialized = false
}

// Initialized reports whether Init completed.
func (d *SplatComputeDispatcher) Initialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// ComputeWorkgroupCount returns the number of workgroups a stage needs for
// elementCount elements:
//
//   - compact, tile_emit: one invocation per splat.
//   - histogram, scatter: one invocation per sort block (elementCount = blocks).
//   - scan, finalize, tile_scan: a single workgroup.
//   - composite: one workgroup per tile (elementCount = tiles).
func (d *SplatComputeDispatcher) ComputeWorkgroupCount(stage SplatComputeStage, elementCount uint32) uint32 {
	if elementCount == 0 {
		return 0
	}

	switch stage {
	case SplatStageCompact:
		return (elementCount + compactWGSize - 1) / compactWGSize
	case SplatStageHistogram, SplatStageScatter:
		return (elementCount + sortWGSize - 1) / sortWGSize
	case SplatStageTileEmit:
		return (elementCount + tileEmitWGSize - 1) / tileEmitWGSize
	case SplatStageScan, SplatStageFinalize, SplatStageTileScan:
		return 1
	case SplatStageComposite:
		return elementCount
	default:
		return 0
	}
}

func (d *SplatComputeDispatcher) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	const minBufSize = 4
	if size < minBufSize {
		size = minBufSize
	}
	return d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
}

// AllocateBuffers creates the device buffers for one render context. The
// caller must call DestroyBuffers when the context is released.
func (d *SplatComputeDispatcher) AllocateBuffers(layout SplatComputeLayout) (*SplatComputeBuffers, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil, fmt.Errorf("splat compute: dispatcher not initialized, call Init() first")
	}
	if layout.Capacity == 0 || layout.Width == 0 || layout.Height == 0 {
		return nil, fmt.Errorf("splat compute: invalid layout %+v", layout)
	}

	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	staging := gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst

	capacity := uint64(layout.Capacity)
	pixels := uint64(layout.Width) * uint64(layout.Height)
	tiles := uint64(layout.tiles())
	entries := uint64(layout.tileEntries())
	bufs := &SplatComputeBuffers{Layout: layout}

	type bufSpec struct {
		dst   *hal.Buffer
		label string
		size  uint64
		usage gputypes.BufferUsage
	}
	specs := []bufSpec{
		{&bufs.Config, "splat_config", SplatComputeConfig{}.sizeInBytes(), uniform},
		{&bufs.Splats, "splat_splats", capacity * splatStride * 4, storage},
		{&bufs.Depth, "splat_depth", pixels * 4, storage},
		{&bufs.Counter, "splat_counter", 4, storage},
		{&bufs.Keys, "splat_keys", capacity * 4, storage},
		{&bufs.Values, "splat_values", capacity * 4, storage},
		{&bufs.KeysAlt, "splat_keys_alt", capacity * 4, storage},
		{&bufs.ValuesAlt, "splat_values_alt", capacity * 4, storage},
		{&bufs.Quads, "splat_quads", capacity * quadStride * 4, storage},
		{&bufs.Hist, "splat_hist", uint64(layout.maxBlocks()) * splatcompute.RadixBuckets * 4, storage},
		{&bufs.Draw, "splat_draw", core.DrawIndirectArgs{}.Size(), storage},
		{&bufs.GBuffer, "splat_gbuffer", layout.gbufferBytes(), storage},
		{&bufs.TileCounter, "splat_tile_counter", 4, storage},
		{&bufs.TileCounts, "splat_tile_counts", tiles * 4, storage},
		{&bufs.TileStart, "splat_tile_start", (tiles + 1) * 4, storage},
		{&bufs.TileKeys, "splat_tile_keys", entries * 4, storage},
		{&bufs.TileValues, "splat_tile_values", entries * 4, storage},
		{&bufs.TileKeysAlt, "splat_tile_keys_alt", entries * 4, storage},
		{&bufs.TileValuesAlt, "splat_tile_values_alt", entries * 4, storage},
		{&bufs.CounterStaging, "splat_counter_staging", 4, staging},
		{&bufs.OutputStaging, "splat_output_staging", core.DrawIndirectArgs{}.Size() + layout.gbufferBytes(), staging},
	}
	for _, s := range specs {
		buf, err := d.createBuffer(s.label, s.size, s.usage)
		if err != nil {
			d.DestroyBuffers(bufs)
			return nil, fmt.Errorf("splat compute: create buffer %s: %w", s.label, err)
		}
		*s.dst = buf
	}

	for _, u := range []struct {
		dst    *[]hal.Buffer
		prefix string
		passes int
	}{
		{&bufs.SortPasses, "splat_sort_pass", layout.depthPasses()},
		{&bufs.TileSortPasses, "splat_tile_sort_pass", layout.tilePasses()},
	} {
		*u.dst = make([]hal.Buffer, u.passes)
		for p := range u.passes {
			buf, err := d.createBuffer(fmt.Sprintf("%s_%d", u.prefix, p), 16, uniform)
			if err != nil {
				d.DestroyBuffers(bufs)
				return nil, fmt.Errorf("splat compute: create %s uniform: %w", u.prefix, err)
			}
			(*u.dst)[p] = buf
		}
	}

	slogger().Debug("splat compute: buffers allocated",
		"target", fmt.Sprintf("%dx%d", layout.Width, layout.Height),
		"capacity", layout.Capacity,
		"sort_passes", layout.depthPasses(),
		"tiles", tiles,
		"tile_entries", entries,
		"tile_sort_passes", layout.tilePasses(),
		"gbuffer_bytes", layout.gbufferBytes())
	return bufs, nil
}

// DestroyBuffers releases all buffers in bufs. After this call, the
// buffers must not be used.
func (d *SplatComputeDispatcher) DestroyBuffers(bufs *SplatComputeBuffers) {
	if bufs == nil {
		return
	}

	destroyBuf := func(b hal.Buffer) {
		if b != nil {
			d.device.DestroyBuffer(b)
		}
	}

	destroyBuf(bufs.Config)
	destroyBuf(bufs.Splats)
	destroyBuf(bufs.Depth)
	destroyBuf(bufs.Counter)
	destroyBuf(bufs.Keys)
	destroyBuf(bufs.Values)
	destroyBuf(bufs.KeysAlt)
	destroyBuf(bufs.ValuesAlt)
	destroyBuf(bufs.Quads)
	destroyBuf(bufs.Hist)
	destroyBuf(bufs.Draw)
	destroyBuf(bufs.GBuffer)
	destroyBuf(bufs.TileCounter)
	destroyBuf(bufs.TileCounts)
	destroyBuf(bufs.TileStart)
	destroyBuf(bufs.TileKeys)
	destroyBuf(bufs.TileValues)
	destroyBuf(bufs.TileKeysAlt)
	destroyBuf(bufs.TileValuesAlt)
	destroyBuf(bufs.CounterStaging)
	destroyBuf(bufs.OutputStaging)
	for _, b := range bufs.SortPasses {
		destroyBuf(b)
	}
	for _, b := range bufs.TileSortPasses {
		destroyBuf(b)
	}

	*bufs = SplatComputeBuffers{}
}

// UploadSplats writes splats to the device. len(splats) must not exceed
// the layout capacity.
func (d *SplatComputeDispatcher) UploadSplats(bufs *SplatComputeBuffers, splats []core.Splat) error {
	if uint64(len(splats)) > uint64(bufs.Layout.Capacity) {
		return fmt.Errorf("splat compute: %d splats exceed capacity %d", len(splats), bufs.Layout.Capacity)
	}
	if len(splats) == 0 {
		return nil
	}
	d.queue.WriteBuffer(bufs.Splats, 0, packSplats(splats))
	return nil
}

// UploadDepth writes the reference depth buffer, one f32 view depth per
// pixel.
func (d *SplatComputeDispatcher) UploadDepth(bufs *SplatComputeBuffers, depth []float32) error {
	pixels := int(bufs.Layout.Width) * int(bufs.Layout.Height)
	if len(depth) != pixels {
		return fmt.Errorf("splat compute: depth has %d entries, want %d", len(depth), pixels)
	}
	data := make([]byte, pixels*4)
	for i, z := range depth {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(z))
	}
	d.queue.WriteBuffer(bufs.Depth, 0, data)
	return nil
}

// =============================================================================
// Dispatch
// =============================================================================

// binding maps a shader binding index to a buffer.
type binding struct {
	index uint32
	buf   hal.Buffer
}

// stageDispatch holds the parameters of a single compute pass.
type stageDispatch struct {
	stage    SplatComputeStage
	elements uint32
	bindings []binding
}

// dispatchResources tracks per-submit GPU resources for cleanup.
type dispatchResources struct {
	device     hal.Device
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
	fence      hal.Fence
}

// cleanup destroys all tracked per-submit resources.
func (r *dispatchResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	for _, g := range r.bindGroups {
		r.device.DestroyBindGroup(g)
	}
}

func bindGroupEntries(bindings []binding) []gputypes.BindGroupEntry {
	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		entries[i] = gputypes.BindGroupEntry{
			Binding: b.index,
			Resource: gputypes.BufferBinding{
				Buffer: b.buf.NativeHandle(),
				Offset: 0,
				Size:   0, // entire buffer
			},
		}
	}
	return entries
}

func compactBindings(bufs *SplatComputeBuffers) []binding {
	return []binding{
		{0, bufs.Config}, {1, bufs.Splats}, {2, bufs.Depth},
		{3, bufs.Counter}, {4, bufs.Keys}, {5, bufs.Values}, {6, bufs.Quads},
	}
}

// sortPairs names the buffers one radix sort ping-pongs between, and its
// pass uniforms.
type sortPairs struct {
	keys, values, keysAlt, valuesAlt hal.Buffer
	hist                             hal.Buffer
	uniforms                         []hal.Buffer
}

func depthPairs(bufs *SplatComputeBuffers) sortPairs {
	return sortPairs{bufs.Keys, bufs.Values, bufs.KeysAlt, bufs.ValuesAlt, bufs.Hist, bufs.SortPasses}
}

func tilePairs(bufs *SplatComputeBuffers) sortPairs {
	return sortPairs{bufs.TileKeys, bufs.TileValues, bufs.TileKeysAlt, bufs.TileValuesAlt, bufs.Hist, bufs.TileSortPasses}
}

// sortStages returns the histogram, scan and scatter passes of every radix
// pass. Even passes read the primary pair and write the alternates; odd
// passes go the other way.
func sortStages(pairs sortPairs, plan []sortPassParams) []stageDispatch {
	stages := make([]stageDispatch, 0, 3*len(plan))
	for p, params := range plan {
		srcK, srcV, dstK, dstV := pairs.keys, pairs.values, pairs.keysAlt, pairs.valuesAlt
		if p%2 == 1 {
			srcK, srcV, dstK, dstV = dstK, dstV, srcK, srcV
		}
		uniform := pairs.uniforms[p]
		hist := pairs.hist
		stages = append(stages,
			stageDispatch{SplatStageHistogram, params.Blocks, []binding{
				{0, uniform}, {1, srcK}, {2, srcV}, {3, hist},
			}},
			stageDispatch{SplatStageScan, params.Blocks, []binding{
				{0, uniform}, {1, hist},
			}},
			stageDispatch{SplatStageScatter, params.Blocks, []binding{
				{0, uniform}, {1, srcK}, {2, srcV}, {3, hist}, {4, dstK}, {5, dstV},
			}},
		)
	}
	return stages
}

// binStages writes the draw record and emits the tile entries of up to
// instances sorted instances.
func binStages(bufs *SplatComputeBuffers, instances uint32) []stageDispatch {
	return []stageDispatch{
		{SplatStageFinalize, 1, []binding{
			{0, bufs.Config}, {1, bufs.Counter}, {2, bufs.Draw},
		}},
		{SplatStageTileEmit, instances, []binding{
			{0, bufs.Config}, {1, bufs.Quads}, {2, bufs.sortedValues()}, {3, bufs.Draw},
			{4, bufs.TileCounter}, {5, bufs.TileCounts}, {6, bufs.TileKeys}, {7, bufs.TileValues},
		}},
	}
}

// tileSortPlan orders entries tile entries by tile and, within a tile, by
// rank. The rank passes run first so the stable tile passes keep them.
func tileSortPlan(layout SplatComputeLayout, entries uint32) []sortPassParams {
	return sortPlan(entries, layout.TieBreakBits, layout.tileBits())
}

// compositeStages sorts the tile entries with plan, scans the tile counts
// and blends every tile.
func compositeStages(bufs *SplatComputeBuffers, plan []sortPassParams) []stageDispatch {
	stages := sortStages(tilePairs(bufs), plan)
	return append(stages,
		stageDispatch{SplatStageTileScan, 1, []binding{
			{0, bufs.Config}, {1, bufs.TileCounts}, {2, bufs.TileStart},
		}},
		stageDispatch{SplatStageComposite, bufs.Layout.tiles(), []binding{
			{0, bufs.Config}, {1, bufs.Quads}, {2, bufs.sortedValues()},
			{3, bufs.TileStart}, {4, bufs.tileValues()}, {5, bufs.GBuffer},
		}},
	)
}

// Compact uploads the frame uniform, resets the counter and runs the
// compaction stage. It returns the final counter value, which can exceed
// the capacity.
func (d *SplatComputeDispatcher) Compact(bufs *SplatComputeBuffers, config SplatComputeConfig) (uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkReady(bufs); err != nil {
		return 0, err
	}

	config.TileEntries = bufs.Layout.tileEntries()
	d.queue.WriteBuffer(bufs.Config, 0, config.toBytes())
	d.queue.WriteBuffer(bufs.Counter, 0, make([]byte, 4))

	res := &dispatchResources{device: d.device}
	defer res.cleanup()

	stages := []stageDispatch{{SplatStageCompact, config.SplatCount, compactBindings(bufs)}}
	copies := []bufferCopy{{bufs.Counter, bufs.CounterStaging, 0, 4}}
	if err := d.encode(res, "splat_compact", stages, copies); err != nil {
		return 0, err
	}
	if err := d.submitAndWait(res); err != nil {
		return 0, err
	}

	readback := make([]byte, 4)
	if err := d.queue.ReadBuffer(bufs.CounterStaging, 0, readback); err != nil {
		return 0, fmt.Errorf("splat compute: read counter: %w", err)
	}
	return binary.LittleEndian.Uint32(readback), nil
}

// Sort runs every radix pass over the first count compacted pairs.
func (d *SplatComputeDispatcher) Sort(bufs *SplatComputeBuffers, count uint32) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkReady(bufs); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	count = min(count, bufs.Layout.Capacity)

	plan := sortPlan(count, bufs.Layout.TieBreakBits, depthKeyBits)
	for p, params := range plan {
		d.queue.WriteBuffer(bufs.SortPasses[p], 0, params.toBytes())
	}

	res := &dispatchResources{device: d.device}
	defer res.cleanup()

	if err := d.encode(res, "splat_sort", sortStages(depthPairs(bufs), plan), nil); err != nil {
		return err
	}
	return d.submitAndWait(res)
}

// Composite writes the draw record, bins the sorted instances into tiles
// and blends every tile, then reads back the draw record and the G-buffer
// into g. It takes two submits: the tile entry count read back from the
// first sizes the tile sort of the second.
func (d *SplatComputeDispatcher) Composite(bufs *SplatComputeBuffers, config SplatComputeConfig, g *core.GBuffer) (core.DrawIndirectArgs, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var draw core.DrawIndirectArgs
	if err := d.checkReady(bufs); err != nil {
		return draw, err
	}
	if g.Width != int(bufs.Layout.Width) || g.Height != int(bufs.Layout.Height) {
		return draw, fmt.Errorf("splat compute: gbuffer is %dx%d, buffers are %dx%d",
			g.Width, g.Height, bufs.Layout.Width, bufs.Layout.Height)
	}

	entries, err := d.binTiles(bufs, min(config.SplatCount, bufs.Layout.Capacity))
	if err != nil {
		return draw, err
	}

	plan := tileSortPlan(bufs.Layout, entries)
	for p, params := range plan {
		d.queue.WriteBuffer(bufs.TileSortPasses[p], 0, params.toBytes())
	}

	res := &dispatchResources{device: d.device}
	defer res.cleanup()

	drawSize := draw.Size()
	gbufSize := bufs.Layout.gbufferBytes()
	copies := []bufferCopy{
		{bufs.Draw, bufs.OutputStaging, 0, drawSize},
		{bufs.GBuffer, bufs.OutputStaging, drawSize, gbufSize},
	}
	if err := d.encode(res, "splat_composite", compositeStages(bufs, plan), copies); err != nil {
		return draw, err
	}
	if err := d.submitAndWait(res); err != nil {
		return draw, err
	}

	readback := make([]byte, drawSize+gbufSize)
	if err := d.queue.ReadBuffer(bufs.OutputStaging, 0, readback); err != nil {
		return draw, fmt.Errorf("splat compute: read output: %w", err)
	}
	draw = core.DrawIndirectArgsFromBytes(readback[:drawSize])
	unpackGBuffer(readback[drawSize:], g)
	return draw, nil
}

// binTiles resets the tile counters and runs the finalize and tile emit
// stages. It returns the number of tile entries kept.
func (d *SplatComputeDispatcher) binTiles(bufs *SplatComputeBuffers, instances uint32) (uint32, error) {
	d.queue.WriteBuffer(bufs.TileCounter, 0, make([]byte, 4))
	d.queue.WriteBuffer(bufs.TileCounts, 0, make([]byte, bufs.Layout.tiles()*4))

	res := &dispatchResources{device: d.device}
	defer res.cleanup()

	copies := []bufferCopy{{bufs.TileCounter, bufs.CounterStaging, 0, 4}}
	if err := d.encode(res, "splat_tile_emit", binStages(bufs, instances), copies); err != nil {
		return 0, err
	}
	if err := d.submitAndWait(res); err != nil {
		return 0, err
	}

	readback := make([]byte, 4)
	if err := d.queue.ReadBuffer(bufs.CounterStaging, 0, readback); err != nil {
		return 0, fmt.Errorf("splat compute: read tile counter: %w", err)
	}
	emitted := binary.LittleEndian.Uint32(readback)
	limit := bufs.Layout.tileEntries()
	if emitted > limit {
		slogger().Warn("splat compute: tile entries exceed budget",
			"entries", emitted, "budget", limit, "dropped", emitted-limit)
		return limit, nil
	}
	return emitted, nil
}

func (d *SplatComputeDispatcher) checkReady(bufs *SplatComputeBuffers) error {
	if !d.initialized {
		return fmt.Errorf("splat compute: dispatcher not initialized, call Init() first")
	}
	if bufs == nil || bufs.Config == nil {
		return fmt.Errorf("splat compute: buffers must not be nil")
	}
	return nil
}

// bufferCopy is a buffer-to-buffer copy recorded after the compute passes.
type bufferCopy struct {
	src, dst  hal.Buffer
	dstOffset uint64
	size      uint64
}

// encode records the compute passes and trailing copies into one command
// buffer.
func (d *SplatComputeDispatcher) encode(res *dispatchResources, label string, stages []stageDispatch, copies []bufferCopy) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("splat compute: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("splat compute: begin encoding: %w", err)
	}

	for _, sd := range stages {
		wgCount := d.ComputeWorkgroupCount(sd.stage, sd.elements)
		if wgCount == 0 {
			continue
		}

		bg, bgErr := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("splat_%s_bg", sd.stage),
			Layout:  d.bgLayouts[sd.stage],
			Entries: bindGroupEntries(sd.bindings),
		})
		if bgErr != nil {
			encoder.DiscardEncoding()
			return fmt.Errorf("splat compute: create bind group for %s: %w", sd.stage, bgErr)
		}
		res.bindGroups = append(res.bindGroups, bg)

		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
			Label: fmt.Sprintf("splat_%s", sd.stage),
		})
		pass.SetPipeline(d.pipelines[sd.stage])
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(wgCount, 1, 1)
		pass.End()

		slogger().Debug("splat compute: dispatched stage",
			"stage", sd.stage.String(),
			"elements", sd.elements,
			"workgroups", wgCount)
	}

	for _, c := range copies {
		encoder.CopyBufferToBuffer(c.src, c.dst, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: c.dstOffset, Size: c.size},
		})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("splat compute: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf
	return nil
}

// submitAndWait submits the command buffer and waits for GPU completion.
func (d *SplatComputeDispatcher) submitAndWait(res *dispatchResources) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("splat compute: create fence: %w", err)
	}
	res.fence = fence

	if err := d.queue.Submit([]hal.CommandBuffer{res.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("splat compute: submit: %w", err)
	}

	ok, err := d.device.Wait(fence, 1, splatFenceTimeout)
	if err != nil {
		return fmt.Errorf("splat compute: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("splat compute: GPU timeout after %v", splatFenceTimeout)
	}
	return nil
}
