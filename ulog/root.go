/***************************************************************
 *
 * Copyright (C) 2025, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package ulog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chtc/chtc-ulog/config"
	"github.com/chtc/chtc-ulog/ulog/handlers"
	"github.com/chtc/chtc-ulog/ulog/syslog"
)

// HandlerKind names one of the supported sink kinds.
type HandlerKind = handlers.Kind

// The supported sink kinds. KindStackdriver needs the stackdriver
// package linked in; the rest are always available.
const (
	KindStream      = handlers.KindStream
	KindFile        = handlers.KindFile
	KindSyslog      = handlers.KindSyslog
	KindStackdriver = handlers.KindStackdriver
)

// Platform selects which built-in format defaults apply.
type Platform = handlers.Platform

const (
	PlatformDefault = handlers.PlatformDefault
	PlatformDarwin  = handlers.PlatformDarwin
)

// DetectPlatform reports the platform of the current process.
func DetectPlatform() Platform {
	return handlers.Detect()
}

// FileConfig sizes the rotation policy of the file sink.
type FileConfig = handlers.FileConfig

var (
	// ErrInvalidArgument reports setup input that fails validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownHandler reports a handler name outside the supported set.
	ErrUnknownHandler = handlers.ErrUnknownHandler
	// ErrBadFormat reports a line format that cannot be compiled or applied.
	ErrBadFormat = handlers.ErrBadFormat
)

// ParseHandlerKind maps a configuration token to a handler kind.
func ParseHandlerKind(s string) (HandlerKind, error) {
	return handlers.ParseKind(s)
}

// ParseHandlerKinds maps a list of configuration tokens, rejecting the
// whole list on the first unknown token.
func ParseHandlerKinds(names []string) ([]HandlerKind, error) {
	kinds := make([]HandlerKind, 0, len(names))
	for _, name := range names {
		k, err := handlers.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

type options struct {
	platform    handlers.Platform
	format      string
	dateFormat  string
	streamOut   io.Writer
	file        handlers.FileConfig
	sysAddress  *syslog.Address
	sysProtocol syslog.Protocol
	sysFacility *syslog.Facility
	projectID   string
}

// Option adjusts one Setup call.
type Option func(*options)

// WithPlatform pins the platform instead of detecting it, fixing the
// format defaults and the syslog socket choice.
func WithPlatform(p handlers.Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithLogFormat replaces the default line format of every handler the
// call builds.
func WithLogFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithDateFormat replaces the date layout behind {{.Time}}.
func WithDateFormat(layout string) Option {
	return func(o *options) { o.dateFormat = layout }
}

// WithStreamOutput redirects the stream handler away from stdout.
func WithStreamOutput(w io.Writer) Option {
	return func(o *options) { o.streamOut = w }
}

// WithFile supplies the path and rotation policy for the file handler.
func WithFile(cfg handlers.FileConfig) Option {
	return func(o *options) { o.file = cfg }
}

// WithSyslogAddress pins the syslog daemon address instead of letting
// the handler consult the environment or the platform socket.
func WithSyslogAddress(a syslog.Address) Option {
	return func(o *options) { o.sysAddress = &a }
}

// WithSyslogProtocol selects the syslog transport. UDP by default.
func WithSyslogProtocol(p syslog.Protocol) Option {
	return func(o *options) { o.sysProtocol = p }
}

// WithSyslogFacility routes syslog lines somewhere other than local0.
func WithSyslogFacility(f syslog.Facility) Option {
	return func(o *options) { o.sysFacility = &f }
}

// WithProjectID pins the cloud project for the stackdriver handler
// instead of resolving it from instance metadata.
func WithProjectID(id string) Option {
	return func(o *options) { o.projectID = id }
}

// Root owns an accumulated set of handlers and the severity threshold
// they share. Every Setup call on the same root appends to that set;
// nothing is replaced. The zero value is ready to use.
type Root struct {
	mu       sync.Mutex
	level    slog.LevelVar
	attached []handlers.Named
	stats    statsState

	loggerOnce sync.Once
	logger     *slog.Logger
}

// NewRoot returns an empty root whose logger discards every record
// until a Setup call attaches handlers.
func NewRoot() *Root {
	return &Root{}
}

func (r *Root) snapshot() []handlers.Named {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]handlers.Named, len(r.attached))
	copy(out, r.attached)
	return out
}

func (r *Root) hasHandlers() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attached) > 0
}

// Setup parses level, builds one handler per requested kind in order,
// appends them to the set this root already carries, and moves the
// shared severity threshold. On any error nothing is attached. Asking
// for a kind twice attaches two independent handlers, and every record
// then reaches both.
func (r *Root) Setup(prog, level string, kinds []HandlerKind, opts ...Option) error {
	if strings.TrimSpace(prog) == "" {
		return fmt.Errorf("%w: empty program name", ErrInvalidArgument)
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	o := options{streamOut: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.platform == "" {
		o.platform = handlers.Detect()
	}

	built := make([]handlers.Named, 0, len(kinds))
	for _, kind := range kinds {
		h, err := buildHandler(prog, kind, &o)
		if err != nil {
			return err
		}
		built = append(built, handlers.NewNamed(h, kind))
	}

	r.mu.Lock()
	r.attached = append(r.attached, built...)
	r.mu.Unlock()
	r.level.Set(lvl)
	if o.file.Path != "" {
		r.stats.setFileDir(filepath.Dir(o.file.Path))
	}
	return nil
}

// SetupConfig runs Setup from a loaded configuration. Extra options
// are applied after the ones derived from cfg, so they win.
func (r *Root) SetupConfig(cfg *config.Config, extra ...Option) error {
	kinds, err := ParseHandlerKinds(cfg.Handlers)
	if err != nil {
		return err
	}
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return err
	}
	return r.Setup(cfg.Progname, cfg.LogLevel, kinds, append(opts, extra...)...)
}

func buildHandler(prog string, kind HandlerKind, o *options) (slog.Handler, error) {
	format, dateFormat := handlers.DefaultFormat(kind, o.platform)
	if o.format != "" {
		format = o.format
	}
	if o.dateFormat != "" {
		dateFormat = o.dateFormat
	}

	switch kind {
	case KindStream:
		return handlers.NewStreamHandler(o.streamOut, handlers.NewFormatter(prog, format, dateFormat)), nil

	case KindFile:
		if o.file.Path == "" {
			return nil, fmt.Errorf("%w: file handler needs a path", ErrInvalidArgument)
		}
		return handlers.NewFileHandler(o.file, handlers.NewFormatter(prog, format, dateFormat)), nil

	case KindSyslog:
		sopts := []syslog.Option{syslog.WithPlatform(o.platform)}
		if o.format != "" {
			sopts = append(sopts, syslog.WithFormat(o.format))
		}
		if o.dateFormat != "" {
			sopts = append(sopts, syslog.WithDateFormat(o.dateFormat))
		}
		if o.sysAddress != nil {
			sopts = append(sopts, syslog.WithAddress(*o.sysAddress))
		}
		if o.sysProtocol != 0 {
			sopts = append(sopts, syslog.WithProtocol(o.sysProtocol))
		}
		if o.sysFacility != nil {
			sopts = append(sopts, syslog.WithFacility(*o.sysFacility))
		}
		return syslog.NewHandler(prog, sopts...)

	default:
		if _, err := handlers.ParseKind(string(kind)); err != nil {
			return nil, err
		}
		build, ok := lookupBuilder(kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q (link the matching handler package)", ErrHandlerUnavailable, kind)
		}
		return build(context.Background(), BuildParams{
			Prog:       prog,
			Format:     o.format,
			DateFormat: o.dateFormat,
			ProjectID:  o.projectID,
		})
	}
}

func optionsFromConfig(cfg *config.Config) ([]Option, error) {
	var opts []Option
	if cfg.LogFormat != "" {
		opts = append(opts, WithLogFormat(cfg.LogFormat))
	}
	if cfg.DateFormat != "" {
		opts = append(opts, WithDateFormat(cfg.DateFormat))
	}
	if cfg.Syslog.SocketPath != "" || cfg.Syslog.Host != "" {
		opts = append(opts, WithSyslogAddress(syslog.Address{
			Host: cfg.Syslog.Host,
			Port: cfg.Syslog.Port,
			Path: cfg.Syslog.SocketPath,
		}))
	}
	if cfg.Syslog.Protocol != "" {
		p, err := syslog.ParseProtocol(cfg.Syslog.Protocol)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSyslogProtocol(p))
	}
	// Facility 0 is kern, which no user program logs to; treat it as unset.
	if cfg.Syslog.Facility != 0 {
		facility, err := syslog.FacilityFromCode(cfg.Syslog.Facility)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSyslogFacility(facility))
	}
	if cfg.File.Path != "" {
		opts = append(opts, WithFile(handlers.FileConfig{
			Path:       cfg.File.Path,
			MaxSizeMB:  cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAgeDays: cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}))
	}
	if cfg.Stackdriver.ProjectID != "" {
		opts = append(opts, WithProjectID(cfg.Stackdriver.ProjectID))
	}
	return opts, nil
}

// Logger returns this root's logger. The same logger is returned every
// time; because dispatch consults the root's live handler list, it
// picks up handlers attached by later Setup calls without being
// re-fetched.
func (r *Root) Logger() *slog.Logger {
	r.loggerOnce.Do(func() {
		r.logger = slog.New(&dispatcher{root: r})
	})
	return r.logger
}

// Handlers reports the kinds attached so far, in attachment order.
func (r *Root) Handlers() []HandlerKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]HandlerKind, len(r.attached))
	for i, h := range r.attached {
		kinds[i] = h.Kind
	}
	return kinds
}

// AddHandler attaches an externally built handler, such as one from
// the syslog or stackdriver packages.
func (r *Root) AddHandler(kind HandlerKind, h slog.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = append(r.attached, handlers.NewNamed(h, kind))
}

// SetLevel moves the shared severity threshold.
func (r *Root) SetLevel(level slog.Level) {
	r.level.Set(level)
}

// Level reports the shared severity threshold.
func (r *Root) Level() slog.Level {
	return r.level.Level()
}

// LatestStats reports the dispatch stats of the most recent record.
func (r *Root) LatestStats() LogStats {
	return r.stats.snapshot()
}

// SetStatsCallback registers cb to run after every record dispatch.
func (r *Root) SetStatsCallback(cb StatsCallback) {
	r.stats.setCallback(cb)
}

// Reset detaches every handler, returning the root to its empty state.
// Handlers holding connections are closed.
func (r *Root) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := closeHandlersLocked(r.attached)
	r.attached = nil
	r.stats.setFileDir("")
	return err
}

// Close closes every attached handler that holds a connection, leaving
// the handler set in place.
func (r *Root) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return closeHandlersLocked(r.attached)
}

func closeHandlersLocked(attached []handlers.Named) error {
	var errs []error
	for _, h := range attached {
		if closer, ok := h.Handler.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var defaultRoot = NewRoot()

// Default returns the process-wide root behind the package-level Setup.
func Default() *Root {
	return defaultRoot
}

// Setup configures the process-wide root and installs its logger as
// the slog default, so plain slog calls flow through the configured
// sinks.
func Setup(prog, level string, kinds []HandlerKind, opts ...Option) error {
	if err := defaultRoot.Setup(prog, level, kinds, opts...); err != nil {
		return err
	}
	slog.SetDefault(defaultRoot.Logger())
	return nil
}

// SetupConfig configures the process-wide root from a loaded
// configuration and installs its logger as the slog default.
func SetupConfig(cfg *config.Config, extra ...Option) error {
	if err := defaultRoot.SetupConfig(cfg, extra...); err != nil {
		return err
	}
	slog.SetDefault(defaultRoot.Logger())
	return nil
}

// Logger returns the logger view of the process-wide root.
func Logger() *slog.Logger {
	return defaultRoot.Logger()
}
