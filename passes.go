package splat

import (
	"github.com/gogpu/splat/internal/sampler"
	"github.com/gogpu/splat/internal/splatcompute"
)

// conversionPass samples the context meshes into splats. It is a manual
// pass: it runs once after SetMeshes or Reconvert.
type conversionPass struct {
	sampler     sampler.Sampler
	sub         sampler.Subdivision
	scaleFactor float32
}

func (p *conversionPass) Name() string { return PassConversion }

func (p *conversionPass) Execute(rc *RenderContext) error {
	meshes := rc.Meshes()
	if len(meshes) == 0 || p.sub == nil {
		return ErrEmptyScene
	}
	splats := p.sampler.Sample(meshes, p.sub, p.scaleFactor)
	if len(splats) == 0 {
		return ErrEmptyScene
	}
	dropped := rc.LoadSplats(splats)
	Logger().Info("splat: meshes converted", "meshes", len(meshes), "splats", len(splats), "dropped", dropped)
	return nil
}

// depthPrepass rasterizes the context meshes into the reference depth
// buffer used by the compaction depth test.
type depthPrepass struct{}

func (depthPrepass) Name() string { return PassDepthPrepass }

func (depthPrepass) Execute(rc *RenderContext) error {
	v := rc.FrameView()
	splatcompute.RasterizeDepth(rc.pool, rc.meshes, v.View, v.Projection, v.Near, rc.width, rc.height, rc.depth)
	rc.depthValid = true
	return nil
}

type compactionPass struct{ accel Accelerator }

func (p compactionPass) Name() string                    { return PassCompaction }
func (p compactionPass) Execute(rc *RenderContext) error { return p.accel.Compact(rc) }

type radixSortPass struct{ accel Accelerator }

func (p radixSortPass) Name() string                    { return PassRadixSort }
func (p radixSortPass) Execute(rc *RenderContext) error { return p.accel.Sort(rc) }

type compositePass struct{ accel Accelerator }

func (p compositePass) Name() string                    { return PassComposite }
func (p compositePass) Execute(rc *RenderContext) error { return p.accel.Composite(rc) }

// relightingPass resolves the G-buffer into the target image for the
// configured render mode.
type relightingPass struct{}

func (relightingPass) Name() string { return PassRelighting }

func (relightingPass) Execute(rc *RenderContext) error {
	l := rc.Config.Lighting
	splatcompute.Shade(rc.pool, rc.gbuf, &splatcompute.ShadeParams{
		Mode: rc.Config.Mode,
		Light: splatcompute.Light{
			Enabled:   l.Enabled,
			Position:  l.Position,
			Color:     l.Color,
			Intensity: l.Intensity,
		},
		Background: rc.Config.Background,
		View:       rc.View,
		Proj:       rc.Projection,
		Near:       rc.Near,
		Far:        rc.Far,
	}, rc.image)
	return nil
}

// newPipeline builds the fixed frame pipeline. Conversion and the depth
// prepass start disarmed.
func newPipeline(accel Accelerator, conv *conversionPass) *Pipeline {
	p := &Pipeline{}
	p.Add(conv, PassDisabled, RearmManual)
	p.Add(depthPrepass{}, PassDisabled, RearmEveryFrame)
	p.Add(compactionPass{accel}, PassArmed, RearmEveryFrame)
	p.Add(radixSortPass{accel}, PassArmed, RearmEveryFrame)
	p.Add(compositePass{accel}, PassArmed, RearmEveryFrame)
	p.Add(relightingPass{}, PassArmed, RearmEveryFrame)
	return p
}
