// Command quaddemo renders a YAML scene with the quad pipelines and writes
// the frame as PNG.
//
// Usage:
//
//	quaddemo -scene scene.yaml -out frame.png [-backend software|gpu] [-workers n] [-v]
//
// Without -scene a built-in scene exercising every variant is drawn.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/quad"
)

func main() {
	var (
		scenePath = flag.String("scene", "", "scene file (YAML); empty draws the built-in scene")
		output    = flag.String("out", "quad.png", "output PNG file")
		backend   = flag.String("backend", "software", "renderer: software or gpu")
		workers   = flag.Int("workers", 1, "software renderer goroutines; 0 uses GOMAXPROCS")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	quad.SetLogger(logger)

	if err := run(*scenePath, *output, *backend, *workers, logger); err != nil {
		logger.Error("quaddemo failed", "error", err)
		os.Exit(1)
	}
}

func run(scenePath, output, backend string, workers int, logger *slog.Logger) error {
	scene, dir, err := loadScene(scenePath)
	if err != nil {
		return err
	}

	b := newBuilder(scene, dir)
	cmds, err := b.Build(0)
	if err != nil {
		return err
	}
	logger.Debug("scene built", "draws", len(cmds), "width", scene.Width, "height", scene.Height)
	b.logStats(logger)

	img, err := render(backend, workers, scene, cmds)
	if err != nil {
		return err
	}
	if err := writePNG(output, img); err != nil {
		return err
	}
	logger.Info("frame saved", "file", output, "backend", backend,
		"width", img.Rect.Dx(), "height", img.Rect.Dy())
	return nil
}

func loadScene(path string) (*Scene, string, error) {
	if path == "" {
		s, err := ParseScene([]byte(builtinScene))
		return s, ".", err
	}
	s, err := LoadScene(path)
	return s, filepath.Dir(path), err
}

func render(backend string, workers int, scene *Scene, cmds []quad.DrawCommand) (*image.RGBA, error) {
	switch backend {
	case "software":
		r := quad.NewSoftwareRenderer(scene.Width, scene.Height,
			quad.WithClearColor(scene.ClearColor()), quad.WithWorkers(workers))
		defer r.Close()
		return r.Render(cmds)
	case "gpu":
		return renderGPU(scene, cmds)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

const builtinScene = `
width: 320
height: 240
clear: "#1b1f2a"
draws:
  - variant: FlatTriangle
    color: "#e0554d"
    transform:
      scale: [0.4]
      translate: [-0.5, 0.4]
  - variant: FlatQuad2D
    quads:
      - rect: [170, 20, 130, 60]
        color: "#4d9de0"
      - rect: [190, 40, 90, 20]
        color: "#e1bc29"
  - variant: FlatQuad3DView
    color: "#3bb273"
    transform:
      translate: [0.3, -0.45]
      rotate: 30
      scale: [0.5]
  - variant: TexturedQuad
    color: "#ffffff"
    text:
      value: "quad pipelines"
      size: 24
      at: [20, 210]
`
