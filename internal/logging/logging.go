package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// InitWithErrorLog is Init plus a dedicated error log: WARN and ERROR records
// are additionally appended to the file at errPath, so stage failures can be
// reviewed after a long cohort run without scrolling the main stream.
// The returned closer closes the error log file.
func InitWithErrorLog(level slog.Level, format, errPath string, w ...io.Writer) (io.Closer, error) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	f, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var main slog.Handler
	switch format {
	case "json":
		main = slog.NewJSONHandler(writer, opts)
	default:
		main = slog.NewTextHandler(writer, opts)
	}
	errs := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelWarn})

	slog.SetDefault(slog.New(&teeHandler{main: main, errs: errs}))
	return f, nil
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// teeHandler forwards every record to main and WARN+ records to errs.
type teeHandler struct {
	main slog.Handler
	errs slog.Handler
	mu   sync.Mutex
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.main.Enabled(ctx, level) || h.errs.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.main.Enabled(ctx, r.Level) {
		err = h.main.Handle(ctx, r)
	}
	if r.Level >= slog.LevelWarn {
		h.mu.Lock()
		if e := h.errs.Handle(ctx, r.Clone()); e != nil && err == nil {
			err = e
		}
		h.mu.Unlock()
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{main: h.main.WithAttrs(attrs), errs: h.errs.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{main: h.main.WithGroup(name), errs: h.errs.WithGroup(name)}
}
