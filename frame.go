package quad

import "fmt"

// DrawCommand is one validated draw call, ready for a submitter.
type DrawCommand struct {
	// Variant selects the pipeline.
	Variant Variant

	// Uniform holds the encoded globals of the variant at the time of the
	// draw. It is shared by every command of the same variant until the
	// next SetGlobals.
	Uniform []byte

	// UploadUniform is set on the first draw after the globals of the
	// variant changed. A submitter must write Uniform to the GPU before it
	// records this draw.
	UploadUniform bool

	// Vertices is the stream in the vertex layout of the variant.
	Vertices []byte

	// VertexCount is the number of vertices to draw.
	VertexCount uint32

	// Texture is a copy of the binding in effect at dispatch. It is nil for
	// variants without texture bindings.
	Texture *TextureBinding

	// Seq is the submission index within the frame.
	Seq int
}

// Frame collects the draws of one frame. It carries the per-frame state a
// draw needs: the globals of each variant, their dirty flags and the current
// texture binding. A Frame is used from a single goroutine.
type Frame struct {
	index    uint64
	globals  [variantCount][]byte
	dirty    [variantCount]bool
	texture  *TextureBinding
	commands []DrawCommand
	ended    bool
}

// NewFrame starts frame number index.
func NewFrame(index uint64) *Frame {
	return &Frame{index: index}
}

// Index returns the frame number.
func (f *Frame) Index() uint64 { return f.index }

// SetGlobals validates g against the uniform layout of v and stores it. The
// globals of v are marked dirty until the next draw of v.
func (f *Frame) SetGlobals(v Variant, g Globals) error {
	if f.ended {
		return ErrFrameEnded
	}
	data, err := g.Encode(v)
	if err != nil {
		return err
	}
	f.globals[v] = data
	f.dirty[v] = true
	return nil
}

// Dirty reports whether the globals of v changed since the last draw of v.
func (f *Frame) Dirty(v Variant) bool {
	if !v.Valid() {
		return false
	}
	return f.dirty[v]
}

// BindTexture sets the texture and sampler for subsequent TexturedQuad draws.
// Draws already recorded keep the binding they were dispatched with.
func (f *Frame) BindTexture(b TextureBinding) error {
	if f.ended {
		return ErrFrameEnded
	}
	if !b.complete() {
		return fmt.Errorf("%w: binding needs both texture and sampler", ErrUnboundResource)
	}
	f.texture = &b
	return nil
}

// UnbindTexture clears the texture binding.
func (f *Frame) UnbindTexture() {
	f.texture = nil
}

// Draw validates a draw of s with variant v and records it.
//
// The globals of v must have been set in this frame and s must have been
// built for v. Variants with fixed geometry draw their built-in shape when s
// is empty, so Draw(FlatTriangle, Stream{}) is valid. TexturedQuad
// additionally needs a bound texture. On error nothing is recorded.
func (f *Frame) Draw(v Variant, s Stream) error {
	if f.ended {
		return ErrFrameEnded
	}
	if !v.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, v)
	}
	if f.globals[v] == nil {
		return fmt.Errorf("%w: no globals set for %s", ErrLayoutMismatch, v)
	}
	if s.Len() == 0 && v.FixedGeometry() {
		s = FixedStream(v)
	}
	if s.variant != v {
		return fmt.Errorf("%w: stream built for %s drawn as %s", ErrAttributeMismatch, s.variant, v)
	}
	if s.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyShape, v)
	}

	cmd := DrawCommand{
		Variant:       v,
		Uniform:       f.globals[v],
		UploadUniform: f.dirty[v],
		Vertices:      s.Bytes(),
		VertexCount:   uint32(s.Len()), //nolint:gosec // stream length is bounded by memory
		Seq:           len(f.commands),
	}

	switch v {
	case TexturedQuad:
		if f.texture == nil {
			return fmt.Errorf("%w: %s", ErrUnboundResource, v)
		}
		b := *f.texture
		cmd.Texture = &b
	case FlatTriangle, FlatQuad2D, FlatQuad3DView:
	}

	f.commands = append(f.commands, cmd)
	f.dirty[v] = false
	return nil
}

// Commands returns the draws recorded so far, in submission order.
func (f *Frame) Commands() []DrawCommand {
	return f.commands
}

// End closes the frame and returns its draws in submission order. Every
// later call on f returns ErrFrameEnded.
func (f *Frame) End() ([]DrawCommand, error) {
	if f.ended {
		return nil, ErrFrameEnded
	}
	f.ended = true
	Logger().Debug("quad: frame ended", "frame", f.index, "draws", len(f.commands))
	return f.commands, nil
}
