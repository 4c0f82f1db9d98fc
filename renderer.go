package quad

import "image"

// Renderer turns the draws of a finished frame into pixels. Draws are
// executed in slice order; each command's uniform is made visible before the
// command is drawn.
//
// SoftwareRenderer implements Renderer on the CPU; the gpu package provides
// one backed by gogpu/wgpu.
type Renderer interface {
	// Render draws cmds into a cleared target and returns its contents.
	Render(cmds []DrawCommand) (*image.RGBA, error)
}
