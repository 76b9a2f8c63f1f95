package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/splat"
)

// config holds every setting of one run. It is filled from defaults, then
// an optional TOML file, then the flags given on the command line.
type config struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`

	// Render writes a PNG frame instead of a point cloud.
	Render bool `toml:"render"`

	Density     float64 `toml:"density"`
	Format      string  `toml:"format"`
	ScaleFactor float64 `toml:"scale_factor"`

	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	Supersample int     `toml:"supersample"`
	Mode        string  `toml:"mode"`
	Order       string  `toml:"order"`
	GaussianStd float64 `toml:"gaussian_std"`
	DepthTest   bool    `toml:"depth_test"`
	Yaw         float64 `toml:"yaw"`
	Pitch       float64 `toml:"pitch"`
	GPU         bool    `toml:"gpu"`
	Verbose     bool    `toml:"verbose"`
}

func defaultConfig() config {
	return config{
		Density:     1,
		Format:      "pbr",
		ScaleFactor: 1,
		Width:       800,
		Height:      600,
		Supersample: 1,
		Mode:        "lit",
		Order:       "back-to-front",
		GaussianStd: 0.5,
		Yaw:         0.6,
		Pitch:       0.3,
	}
}

// loadConfigFile decodes a TOML file into cfg. Unknown keys are an error.
func loadConfigFile(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// parseArgs builds the run configuration. Flags set on the command line
// override the -config file.
func parseArgs(args []string) (config, error) {
	fl := defaultConfig()
	fs := flag.NewFlagSet("mesh2splat", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML file with default settings")
	fs.StringVar(&fl.Input, "input", fl.Input, "input .glb/.gltf (or .ply with -render)")
	fs.StringVar(&fl.Output, "output", fl.Output, "output .ply, or .png with -render")
	fs.BoolVar(&fl.Render, "render", fl.Render, "render a frame to PNG instead of converting")
	fs.Float64Var(&fl.Density, "density", fl.Density, "sampling density, 1 is ~1024 steps along the scene diagonal")
	fs.StringVar(&fl.Format, "format", fl.Format, "point cloud format: standard, pbr, compressed-pbr (or 0, 1, 2)")
	fs.Float64Var(&fl.ScaleFactor, "scale", fl.ScaleFactor, "splat tangent scale multiplier")
	fs.IntVar(&fl.Width, "width", fl.Width, "image width")
	fs.IntVar(&fl.Height, "height", fl.Height, "image height")
	fs.IntVar(&fl.Supersample, "supersample", fl.Supersample, "render at N times the size and downscale")
	fs.StringVar(&fl.Mode, "mode", fl.Mode, "render mode: lit, albedo, normal, depth, metallic, roughness, occlusion")
	fs.StringVar(&fl.Order, "order", fl.Order, "sort order: back-to-front or front-to-back")
	fs.Float64Var(&fl.GaussianStd, "std", fl.GaussianStd, "gaussian standard deviation multiplier")
	fs.BoolVar(&fl.DepthTest, "depth-test", fl.DepthTest, "cull splats behind the mesh depth prepass")
	fs.Float64Var(&fl.Yaw, "yaw", fl.Yaw, "camera yaw in radians")
	fs.Float64Var(&fl.Pitch, "pitch", fl.Pitch, "camera pitch in radians")
	fs.BoolVar(&fl.GPU, "gpu", fl.GPU, "use the GPU accelerator")
	fs.BoolVar(&fl.Verbose, "v", fl.Verbose, "debug logging")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if *configPath == "" {
		return fl, nil
	}

	cfg := defaultConfig()
	if err := loadConfigFile(*configPath, &cfg); err != nil {
		return config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(&cfg, &fl)
		}
	})
	return cfg, nil
}

// flagFields copies one flag's field from the parsed flags to the config.
var flagFields = map[string]func(dst, src *config){
	"input":       func(d, s *config) { d.Input = s.Input },
	"output":      func(d, s *config) { d.Output = s.Output },
	"render":      func(d, s *config) { d.Render = s.Render },
	"density":     func(d, s *config) { d.Density = s.Density },
	"format":      func(d, s *config) { d.Format = s.Format },
	"scale":       func(d, s *config) { d.ScaleFactor = s.ScaleFactor },
	"width":       func(d, s *config) { d.Width = s.Width },
	"height":      func(d, s *config) { d.Height = s.Height },
	"supersample": func(d, s *config) { d.Supersample = s.Supersample },
	"mode":        func(d, s *config) { d.Mode = s.Mode },
	"order":       func(d, s *config) { d.Order = s.Order },
	"std":         func(d, s *config) { d.GaussianStd = s.GaussianStd },
	"depth-test":  func(d, s *config) { d.DepthTest = s.DepthTest },
	"yaw":         func(d, s *config) { d.Yaw = s.Yaw },
	"pitch":       func(d, s *config) { d.Pitch = s.Pitch },
	"gpu":         func(d, s *config) { d.GPU = s.GPU },
	"v":           func(d, s *config) { d.Verbose = s.Verbose },
}

func parseRenderMode(s string) (splat.RenderMode, error) {
	for m := splat.RenderModeLit; m <= splat.RenderModeOcclusion; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown render mode %q", s)
}

func parseSortOrder(s string) (splat.SortOrder, error) {
	switch strings.ToLower(s) {
	case "back-to-front", "backtofront":
		return splat.BackToFront, nil
	case "front-to-back", "fronttoback":
		return splat.FrontToBack, nil
	default:
		return 0, fmt.Errorf("unknown sort order %q", s)
	}
}
