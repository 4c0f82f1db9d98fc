//go:build !nogpu

package gpu

import (
	"log/slog"

	"github.com/gogpu/quad"
)

// slogger returns the current package logger.
// All logging in internal/gpu goes through this function, so quad.SetLogger
// reaches the GPU renderer without a separate hook.
func slogger() *slog.Logger { return quad.Logger() }
