package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnknownHandler reports a handler name outside the supported set.
var ErrUnknownHandler = errors.New("unknown log handler")

// Kind identifies one of the log sinks this library knows how to build.
type Kind string

const (
	// KindStream writes formatted lines to the process output stream.
	KindStream Kind = "stream"
	// KindFile writes formatted lines to a size-rotated log file.
	KindFile Kind = "file"
	// KindSyslog forwards formatted lines to a syslog daemon.
	KindSyslog Kind = "syslog"
	// KindStackdriver ships formatted lines to Google Cloud Logging.
	KindStackdriver Kind = "stackdriver"
)

// Kinds lists every kind this library can name, whether or not the
// matching handler package is linked into the binary.
func Kinds() []Kind {
	return []Kind{KindStream, KindFile, KindSyslog, KindStackdriver}
}

// ParseKind maps a configuration token to a Kind. Matching is
// case-insensitive; anything outside the closed set is rejected.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindStream, KindFile, KindSyslog, KindStackdriver:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHandler, s)
}

// Named tags a handler with the kind that produced it, so an accumulated
// handler set stays inspectable after setup.
type Named struct {
	slog.Handler
	Kind Kind
}

// NewNamed wraps a handler with its kind tag.
func NewNamed(h slog.Handler, kind Kind) Named {
	return Named{Handler: h, Kind: kind}
}
