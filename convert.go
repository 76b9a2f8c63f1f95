package splat

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/splat/core"
	"github.com/gogpu/splat/internal/glb"
	"github.com/gogpu/splat/internal/parallel"
	"github.com/gogpu/splat/internal/ply"
	"github.com/gogpu/splat/internal/sampler"
)

// PointCloudFormat selects the layout of a written point cloud.
type PointCloudFormat = ply.Format

// Point cloud formats.
const (
	// FormatStandard is the 3D gaussian splatting PLY layout.
	FormatStandard = ply.Standard
	// FormatPBR adds metallic, roughness, occlusion and emissive properties.
	FormatPBR = ply.PBR
	// FormatCompressedPBR is the chunk-quantized layout with packed PBR.
	FormatCompressedPBR = ply.CompressedPBR
)

// ParseFormat parses a format name or its numeric id ("0", "1", "2").
func ParseFormat(s string) (PointCloudFormat, error) {
	f, err := ply.ParseFormat(s)
	if err != nil {
		return f, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// DefaultMaxSubdivisions caps the lattice subdivision of a single face.
const DefaultMaxSubdivisions = 256

// resolutionPerDensity is the number of lattice steps along the scene
// diagonal at density 1.
const resolutionPerDensity = 1024

// ConvertOption configures Convert and ConvertMeshes.
type ConvertOption func(*convertOptions)

type convertOptions struct {
	scaleFactor float32
	maxSubdiv   int
	sequential  bool
	workers     int
}

func defaultConvertOptions() convertOptions {
	return convertOptions{
		scaleFactor: 1,
		maxSubdiv:   DefaultMaxSubdivisions,
	}
}

// WithScaleFactor multiplies the in-plane splat scale.
func WithScaleFactor(f float32) ConvertOption {
	return func(o *convertOptions) {
		if f > 0 {
			o.scaleFactor = f
		}
	}
}

// WithMaxSubdivisions caps the per-face lattice subdivision.
func WithMaxSubdivisions(m int) ConvertOption {
	return func(o *convertOptions) {
		if m > 0 {
			o.maxSubdiv = m
		}
	}
}

// WithSequentialSampler samples on the calling goroutine. The output is
// identical to the parallel sampler.
func WithSequentialSampler() ConvertOption {
	return func(o *convertOptions) {
		o.sequential = true
	}
}

// WithConvertWorkers sets the sampler worker count. Zero or less uses
// GOMAXPROCS.
func WithConvertWorkers(n int) ConvertOption {
	return func(o *convertOptions) {
		o.workers = n
	}
}

// densitySubdivision derives the face subdivision from the sampling
// density: the scene diagonal is divided into 1024*density steps and each
// face gets as many lattice steps as its longest edge spans.
func densitySubdivision(meshes []Mesh, density float32, maxM int) sampler.Subdivision {
	target := max(int(resolutionPerDensity*density), 1)
	diag := core.SceneBBox(meshes).Diagonal()
	if !(diag > 0) {
		return sampler.Fixed(1)
	}
	return sampler.Spacing(diag/float32(target), maxM)
}

// ConvertMeshes samples meshes into splats at the given density.
func ConvertMeshes(ctx context.Context, meshes []Mesh, density float32, opts ...ConvertOption) ([]Splat, error) {
	o := defaultConvertOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !(density > 0) {
		return nil, fmt.Errorf("splat: density must be positive, got %v", density)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var s sampler.Sampler = sampler.Sequential{}
	if !o.sequential {
		pool := parallel.NewWorkerPool(o.workers)
		defer pool.Close()
		s = sampler.Parallel{Pool: pool}
	}
	splats := s.Sample(meshes, densitySubdivision(meshes, density, o.maxSubdiv), o.scaleFactor)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(splats) == 0 {
		return nil, ErrEmptyScene
	}
	return splats, nil
}

// Convert loads the glTF binary at inputPath, samples it into splats and
// writes a point cloud to outputPath. The file is written to a temporary
// sibling and renamed into place, so a failed conversion leaves no output.
func Convert(ctx context.Context, inputPath, outputPath string, density float32, format PointCloudFormat, opts ...ConvertOption) error {
	if !format.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(format))
	}
	start := time.Now()

	meshes, err := LoadMeshes(ctx, inputPath)
	if err != nil {
		return err
	}
	splats, err := ConvertMeshes(ctx, meshes, density, opts...)
	if err != nil {
		return fmt.Errorf("splat: convert %s: %w", inputPath, err)
	}
	if err := writeFileAtomic(outputPath, func(w *bufio.Writer) error {
		return ply.Write(w, splats, format)
	}); err != nil {
		return fmt.Errorf("splat: write %s: %w", outputPath, err)
	}

	Logger().Info("splat: converted",
		"input", inputPath, "output", outputPath, "format", format,
		"meshes", len(meshes), "splats", len(splats), "elapsed", time.Since(start))
	return nil
}

// LoadMeshes loads the triangle meshes of a glTF file, for
// Renderer.SetMeshes.
func LoadMeshes(ctx context.Context, path string) ([]Mesh, error) {
	meshes, err := glb.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("splat: load %s: %w", path, err)
	}
	return meshes, nil
}

// SplatBounds returns the box holding every splat center.
func SplatBounds(splats []Splat) BBox {
	b := core.EmptyBBox()
	for i := range splats {
		b = b.Extend(splats[i].Position)
	}
	return b
}

// LoadPointCloud reads a point cloud written by Convert.
func LoadPointCloud(path string) ([]Splat, PointCloudFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	splats, format, err := ply.Read(bufio.NewReader(f))
	if err != nil {
		return nil, format, fmt.Errorf("splat: read %s: %w", path, err)
	}
	return splats, format, nil
}

func writeFileAtomic(path string, write func(*bufio.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriterSize(tmp, 1<<16)
	if err = write(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
