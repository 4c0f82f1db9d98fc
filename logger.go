package quad

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for quad and its sub-packages.
// By default quad produces no log output. Pass nil to restore the silent
// default. SetLogger is safe for concurrent use.
//
// Log levels used by quad:
//   - [slog.LevelDebug]: per-frame detail (draw counts, buffer sizes, pipeline creation)
//   - [slog.LevelInfo]: lifecycle events (GPU adapter selected, target resized)
//   - [slog.LevelWarn]: ignored input and resource release problems
//
// Example:
//
//	quad.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages (gpu, text, atlas) log
// through it so one SetLogger call configures the whole module.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
