package ulog

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ErrUnknownLevel reports a severity name outside the accepted set.
var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel maps a severity token to a slog level. Names are matched
// case-insensitively, warning is an alias for warn, and bare integers
// are taken as numeric slog levels.
func ParseLevel(s string) (slog.Level, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	switch token {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	if n, err := strconv.Atoi(token); err == nil {
		return slog.Level(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}
