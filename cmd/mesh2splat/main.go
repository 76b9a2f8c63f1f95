// Command mesh2splat converts glTF meshes to gaussian splat point clouds
// and renders splat clouds to PNG.
//
//	mesh2splat -input model.glb -output model.ply -density 1 -format pbr
//	mesh2splat -render -input model.ply -output frame.png -mode normal
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/splat"
	"github.com/gogpu/splat/core"
	_ "github.com/gogpu/splat/gpu" // registers the GPU accelerator for -gpu
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("mesh2splat: %v", err)
	}
	if cfg.Verbose {
		splat.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("mesh2splat: %v", err)
	}
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	if cfg.Input == "" || cfg.Output == "" {
		return errors.New("-input and -output are required")
	}
	p := message.NewPrinter(language.English)
	if cfg.Render {
		return renderFrame(ctx, cfg, p, out)
	}
	return convert(ctx, cfg, p, out)
}

func convert(ctx context.Context, cfg config, p *message.Printer, out io.Writer) error {
	format, err := splat.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	opts := []splat.ConvertOption{splat.WithScaleFactor(float32(cfg.ScaleFactor))}
	if err := splat.Convert(ctx, cfg.Input, cfg.Output, float32(cfg.Density), format, opts...); err != nil {
		return err
	}
	info, err := os.Stat(cfg.Output)
	if err != nil {
		return err
	}
	p.Fprintf(out, "wrote %s (%v, %d bytes)\n", cfg.Output, format, info.Size())
	return nil
}

func renderFrame(ctx context.Context, cfg config, p *message.Printer, out io.Writer) error {
	mode, err := parseRenderMode(cfg.Mode)
	if err != nil {
		return err
	}
	order, err := parseSortOrder(cfg.Order)
	if err != nil {
		return err
	}
	ss := max(cfg.Supersample, 1)
	w, h := cfg.Width*ss, cfg.Height*ss

	opts := []splat.Option{
		splat.WithRenderMode(mode),
		splat.WithSortOrder(order),
		splat.WithGaussianStd(float32(cfg.GaussianStd)),
		splat.WithDepthTest(cfg.DepthTest, 0.01),
	}
	if cfg.GPU {
		opts = append(opts, splat.WithBackend(splat.BackendGPU))
	}
	r, err := splat.NewRenderer(w, h, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	var bounds splat.BBox
	if strings.EqualFold(filepath.Ext(cfg.Input), ".ply") {
		splats, _, err := splat.LoadPointCloud(cfg.Input)
		if err != nil {
			return err
		}
		r.SetSplats(splats)
		bounds = splat.SplatBounds(splats)
	} else {
		meshes, err := splat.LoadMeshes(ctx, cfg.Input)
		if err != nil {
			return err
		}
		r.SetMeshes(meshes, float32(cfg.Density))
		bounds = core.SceneBBox(meshes)
	}
	r.SetCamera(splat.FrameBounds(bounds, float32(cfg.Yaw), float32(cfg.Pitch), float32(w)/float32(h)))

	img, err := r.Render()
	if err != nil {
		return err
	}
	if err := savePNG(cfg.Output, downscale(img, ss)); err != nil {
		return err
	}

	st := r.Stats()
	p.Fprintf(out, "%d splats, %d visible, %d dropped, %d drawn in %v (%s)\n",
		st.Total, st.Visible, st.Dropped, st.Drawn, st.FrameTime, r.AcceleratorName())
	return nil
}

// downscale shrinks img by factor with a Catmull-Rom filter.
func downscale(img *image.RGBA, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()/factor, b.Dy()/factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func savePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
