package quad

import "runtime"

// Option configures a SoftwareRenderer.
//
// Example:
//
//	r := quad.NewSoftwareRenderer(640, 480, quad.WithClearColor(quad.White))
type Option func(*options)

type options struct {
	clearColor RGBA
	workers    int
}

func defaultOptions() options {
	return options{clearColor: Black, workers: 1}
}

// WithClearColor sets the color the target is cleared to before the first
// draw. The default is opaque black.
func WithClearColor(c RGBA) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithWorkers shades each command in row bands on n goroutines. n <= 0
// uses GOMAXPROCS; the default of 1 shades on the calling goroutine.
// Renderers created with more than one worker should be closed.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}
