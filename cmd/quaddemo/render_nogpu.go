//go:build nogpu

package main

import (
	"errors"
	"image"

	"github.com/gogpu/quad"
)

func renderGPU(*Scene, []quad.DrawCommand) (*image.RGBA, error) {
	return nil, errors.New("gpu backend not built (nogpu tag)")
}
