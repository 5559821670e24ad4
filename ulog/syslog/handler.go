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
package syslog

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"net"
	"strconv"

	"github.com/chtc/chtc-ulog/ulog/handlers"
)

// Handler forwards formatted lines to a syslog daemon, mapping record
// severity onto syslog severity.
type Handler struct {
	writer *syslog.Writer
	f      *handlers.Formatter
	attrs  []slog.Attr
	prefix string
}

type settings struct {
	address    *Address
	protocol   Protocol
	facility   Facility
	platform   handlers.Platform
	format     string
	dateFormat string
}

// Option adjusts how NewHandler connects and formats.
type Option func(*settings)

// WithAddress pins the daemon address instead of consulting the
// environment or the platform socket.
func WithAddress(a Address) Option {
	return func(s *settings) { s.address = &a }
}

// WithProtocol selects the transport for remote daemons. UDP by default.
func WithProtocol(p Protocol) Option {
	return func(s *settings) { s.protocol = p }
}

// WithFacility routes lines to a facility other than local0.
func WithFacility(f Facility) Option {
	return func(s *settings) { s.facility = f }
}

// WithPlatform overrides platform detection, fixing both the format
// defaults and the local socket choice.
func WithPlatform(p handlers.Platform) Option {
	return func(s *settings) { s.platform = p }
}

// WithFormat overrides the platform's default line format.
func WithFormat(format string) Option {
	return func(s *settings) { s.format = format }
}

// WithDateFormat overrides the date layout behind {{.Time}}.
func WithDateFormat(layout string) Option {
	return func(s *settings) { s.dateFormat = layout }
}

// NewHandler dials the syslog daemon and returns a handler that emits
// formatted lines to it, tagged with prog. With no options the address
// comes from SYSLOG_HOST/SYSLOG_PORT or the platform's local socket,
// the transport is UDP, and lines land in local0. The handler is meant
// for direct attachment; full setup paths wire it automatically.
func NewHandler(prog string, opts ...Option) (*Handler, error) {
	s := settings{
		protocol: ProtocolUDP,
		facility: DefaultFacility,
		platform: handlers.Detect(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if !s.protocol.valid() {
		return nil, fmt.Errorf("%w: code %d", ErrBadProtocol, int(s.protocol))
	}
	if _, err := FacilityFromCode(int(s.facility)); err != nil {
		return nil, err
	}
	addr, err := ResolveAddress(s.address, s.platform)
	if err != nil {
		return nil, err
	}
	writer, err := dial(addr, s.protocol, s.facility, prog)
	if err != nil {
		return nil, err
	}
	format, dateFormat := handlers.DefaultFormat(handlers.KindSyslog, s.platform)
	if s.format != "" {
		format = s.format
	}
	if s.dateFormat != "" {
		dateFormat = s.dateFormat
	}
	return &Handler{
		writer: writer,
		f:      handlers.NewFormatter(prog, format, dateFormat),
	}, nil
}

// dial connects to the daemon at addr. Local sockets speak unixgram
// with a unix fallback; remote daemons use the chosen transport.
// Connection failures come back from the transport untranslated.
func dial(addr Address, proto Protocol, facility Facility, tag string) (*syslog.Writer, error) {
	pri := facility.priority() | syslog.LOG_DEBUG
	if addr.Path != "" {
		w, err := syslog.Dial("unixgram", addr.Path, pri, tag)
		if err != nil {
			w, err = syslog.Dial("unix", addr.Path, pri, tag)
		}
		if err != nil {
			return nil, fmt.Errorf("dial syslog socket %s: %w", addr.Path, err)
		}
		return w, nil
	}
	raddr := net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))
	w, err := syslog.Dial(proto.Network(), raddr, pri, tag)
	if err != nil {
		return nil, fmt.Errorf("dial syslog %s %s: %w", proto, raddr, err)
	}
	return w, nil
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
	switch {
	case r.Level >= slog.LevelError:
		return h.writer.Err(line)
	case r.Level >= slog.LevelWarn:
		return h.writer.Warning(line)
	case r.Level >= slog.LevelInfo:
		return h.writer.Info(line)
	default:
		return h.writer.Debug(line)
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

// Close shuts down the daemon connection.
func (h *Handler) Close() error {
	return h.writer.Close()
}
