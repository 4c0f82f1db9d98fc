//go:build !nogpu

package main

import (
	"image"

	"github.com/gogpu/quad"
	"github.com/gogpu/quad/gpu"
)

func renderGPU(scene *Scene, cmds []quad.DrawCommand) (*image.RGBA, error) {
	r, err := gpu.New(
		gpu.WithSize(scene.Width, scene.Height),
		gpu.WithClearColor(scene.ClearColor()),
	)
	if err != nil {
		return nil, err
	}
	defer r.Destroy()
	return r.Render(cmds)
}
