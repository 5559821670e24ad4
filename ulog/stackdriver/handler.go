package stackdriver

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/logging"

	"github.com/chtc/chtc-ulog/ulog/handlers"
)

// Handler ships each record to cloud logging as one entry whose text
// payload is the formatted line. Entries buffer inside the client and
// flush in the background; Close drains them.
type Handler struct {
	client *logging.Client
	lg     *logging.Logger
	f      *handlers.Formatter
	attrs  []slog.Attr
	prefix string
}

// Enabled defers severity gating to the logger that owns the handler.
func (h *Handler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line, err := handlers.FormatRecord(h.f, r, h.attrs, h.prefix)
	if err != nil {
		return err
	}
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.lg.Log(logging.Entry{
		Timestamp: ts,
		Severity:  severity(r.Level),
		Payload:   line,
	})
	return nil
}

// severity maps slog levels onto cloud logging severities.
func severity(level slog.Level) logging.Severity {
	switch {
	case level >= slog.LevelError:
		return logging.Error
	case level >= slog.LevelWarn:
		return logging.Warning
	case level >= slog.LevelInfo:
		return logging.Info
	default:
		return logging.Debug
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), handlers.PrefixAttrs(h.prefix, attrs)...)
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

// Close flushes buffered entries and shuts the client down.
func (h *Handler) Close() error {
	return h.client.Close()
}
