package adapters

import (
	"io"
	"log/slog"

	"github.com/sirupsen/logrus"

	"github.com/chtc/chtc-ulog/ulog"
)

type logrusAdapter struct {
	root *ulog.Root
}

var levelMapper = map[logrus.Level]slog.Level{
	logrus.TraceLevel: slog.LevelDebug,
	logrus.DebugLevel: slog.LevelDebug,
	logrus.InfoLevel:  slog.LevelInfo,
	logrus.WarnLevel:  slog.LevelWarn,
	logrus.ErrorLevel: slog.LevelError,
	logrus.FatalLevel: slog.LevelError,
	logrus.PanicLevel: slog.LevelError,
}

// Format implements logrus.Formatter. Instead of rendering bytes for
// logrus to write, it re-emits the entry through the root's configured
// sinks, so libraries stuck on logrus share the program's log setup.
func (l *logrusAdapter) Format(entry *logrus.Entry) ([]byte, error) {
	level, exists := levelMapper[entry.Level]
	if !exists {
		level = slog.LevelInfo
	}

	fields := make([]any, 0, len(entry.Data))
	for field, val := range entry.Data {
		fields = append(fields, slog.Any(field, val))
	}

	l.root.Logger().Log(entry.Context, level, entry.Message, fields...)
	return nil, nil
}

// LogrusFormatter returns a logrus formatter that short-circuits every
// entry into root's handlers. Because the root is consulted per entry,
// later Setup calls on it take effect immediately.
func LogrusFormatter(root *ulog.Root) logrus.Formatter {
	return &logrusAdapter{root: root}
}

// RedirectLogrus points the standard logrus logger at root and mutes
// its own output, leaving root's handlers as the only emitters.
func RedirectLogrus(root *ulog.Root) {
	logrus.SetFormatter(LogrusFormatter(root))
	logrus.SetOutput(io.Discard)
}
