package ulog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrHandlerUnavailable reports a known handler kind whose
// implementation is not linked into the binary.
var ErrHandlerUnavailable = errors.New("log handler not available")

// BuildParams carries what a registered builder needs to construct its
// handler during setup. Empty Format and DateFormat mean the kind's
// platform defaults.
type BuildParams struct {
	Prog       string
	Format     string
	DateFormat string
	ProjectID  string
}

// A Builder constructs the handler for one registered kind.
type Builder func(ctx context.Context, p BuildParams) (slog.Handler, error)

var (
	buildersMu sync.RWMutex
	builders   = map[HandlerKind]Builder{}
)

// RegisterBuilder wires in the builder for a handler kind implemented
// outside the core package, keeping heavyweight dependencies out of
// binaries that never select the kind. Call it from init, the way
// database/sql drivers register. Registering a kind twice panics.
func RegisterBuilder(kind HandlerKind, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if b == nil {
		panic("ulog: RegisterBuilder with nil builder for " + string(kind))
	}
	if _, dup := builders[kind]; dup {
		panic("ulog: RegisterBuilder called twice for " + string(kind))
	}
	builders[kind] = b
}

func lookupBuilder(kind HandlerKind) (Builder, bool) {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	b, ok := builders[kind]
	return b, ok
}
