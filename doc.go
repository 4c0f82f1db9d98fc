// Package quad is a small 2D drawing layer that projects scene geometry and
// composites it per vertex on top of a GPU abstraction.
//
// # Overview
//
// Drawing goes through four fixed pipeline variants:
//
//   - FlatTriangle: a built-in triangle filled with a flat color
//   - FlatQuad2D: caller-supplied colored triangles under a 4x4 projection
//   - FlatQuad3DView: a built-in quad under projection and view, flat color
//   - TexturedQuad: caller-supplied textured triangles tinted per vertex
//
// Each variant fixes its own uniform layout and vertex layout. They are never
// mixed inside one draw call.
//
// # Quick Start
//
//	frame := quad.NewFrame(0)
//	_ = frame.SetGlobals(quad.FlatQuad2D, quad.Globals{
//	    Projection: quad.PixelProjection(800, 600),
//	})
//
//	var b quad.StreamBuilder
//	_ = b.BeginShape(quad.FlatQuad2D)
//	_ = b.PushQuad(quad.Rect{X: 10, Y: 10, W: 100, H: 50}, quad.Red, quad.Rect{})
//	stream, _ := b.Finish()
//
//	_ = frame.Draw(quad.FlatQuad2D, stream)
//	cmds, _ := frame.End()
//
//	img, _ := quad.NewSoftwareRenderer(800, 600).Render(cmds)
//
// # Frames
//
// A Frame is the per-frame context. It holds the encoded globals for every
// variant, tracks which of them changed since the last draw (dirty), holds
// the current texture binding, and records validated draw commands in
// submission order. Submitters (the software renderer here, the GPU renderer
// in package gpu) consume the recorded commands.
//
// # Matrices
//
// Matrices are row-major on the host. They are written to uniform memory in
// row order, which the GPU reads column by column, and the shaders transpose
// them back. The effective clip position is therefore projection * view *
// position, the ordinary mathematical composition.
//
// # Errors
//
// All input errors are reported synchronously before anything is submitted:
// ErrLayoutMismatch, ErrAttributeMismatch, ErrEmptyShape and
// ErrUnboundResource. Use errors.Is to test for them.
package quad
