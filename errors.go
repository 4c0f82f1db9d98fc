package quad

import "errors"

// Draw-call validation errors. All of them are caller-input errors detected
// before anything reaches the GPU.
var (
	// ErrLayoutMismatch is returned when globals do not fit the uniform
	// layout of the variant (a view for a variant without a view slot, a
	// missing projection, a 3x3 projection where 4x4 is expected, ...).
	ErrLayoutMismatch = errors.New("quad: uniform layout mismatch")

	// ErrAttributeMismatch is returned when vertex attributes do not fit
	// the vertex layout of the variant.
	ErrAttributeMismatch = errors.New("quad: vertex attribute mismatch")

	// ErrEmptyShape is returned when a variant that draws caller geometry
	// is finished without any vertices.
	ErrEmptyShape = errors.New("quad: empty shape")

	// ErrUnboundResource is returned when a textured draw is dispatched
	// without a texture and sampler bound.
	ErrUnboundResource = errors.New("quad: texture or sampler not bound")

	// ErrUnknownVariant is returned for a Variant outside the enumeration.
	ErrUnknownVariant = errors.New("quad: unknown pipeline variant")

	// ErrNoShape is returned when vertices are pushed without an open shape.
	ErrNoShape = errors.New("quad: no shape in progress")

	// ErrFrameEnded is returned when a frame is used after End.
	ErrFrameEnded = errors.New("quad: frame already ended")

	// ErrUnsupportedTexture is returned by the software renderer when a
	// bound texture cannot be read on the CPU.
	ErrUnsupportedTexture = errors.New("quad: texture is not CPU readable")
)
