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

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"
)

// ErrBadFormat reports a line format that cannot be compiled or applied.
var ErrBadFormat = errors.New("bad log format")

// DefaultDateFormat renders record times second-aligned; the millisecond
// remainder is exposed separately as {{.Millis}}.
const DefaultDateFormat = "2006-01-02T15:04:05"

// Built-in line formats. The default variants carry a full timestamp
// prefix; the darwin syslog variant leaves timestamping to the local
// syslogd, which stamps every line itself.
const (
	StreamFormat       = "{{.Time}}.{{.Millis}}Z {{.Prog}} ({{.PID}}) {{.Level}}: {{.Message}}"
	SyslogFormat       = "{{.Time}}.{{.Millis}}Z {{.Prog}} ({{.PID}}): {{.Message}}"
	SyslogDarwinFormat = "{{.Prog}} ({{.PID}}): {{.Message}}"
	StackdriverFormat  = "{{.Time}}.{{.Millis}} {{.Host}} {{.Prog}} ({{.PID}}): {{.Message}}"
)

// DefaultFormat returns the line format and date layout a handler kind
// uses on a platform when the caller overrides neither.
func DefaultFormat(kind Kind, platform Platform) (format, dateFormat string) {
	if kind == KindSyslog && platform == PlatformDarwin {
		return SyslogDarwinFormat, ""
	}
	switch kind {
	case KindSyslog:
		return SyslogFormat, DefaultDateFormat
	case KindStackdriver:
		return StackdriverFormat, DefaultDateFormat
	default:
		return StreamFormat, DefaultDateFormat
	}
}

// A Formatter renders log lines from records. The format string is a
// text/template evaluated against the fields below. The template is
// compiled on first use, so a broken format surfaces as an error from
// the first record a handler tries to emit, not at setup time.
//
//	{{.Time}}     record time rendered with DateFormat
//	{{.Millis}}   zero-padded millisecond remainder
//	{{.Prog}}     program name
//	{{.PID}}      process id
//	{{.Level}}    severity name
//	{{.Message}}  record message
//	{{.Host}}     host label, when the handler sets one
type Formatter struct {
	Prog       string
	Format     string
	DateFormat string
	Host       string

	pid  int
	once sync.Once
	tmpl *template.Template
	err  error
}

// NewFormatter builds a Formatter for one program. An empty dateFormat
// leaves {{.Time}} blank, for formats that carry no timestamp.
func NewFormatter(prog, format, dateFormat string) *Formatter {
	return &Formatter{
		Prog:       prog,
		Format:     format,
		DateFormat: dateFormat,
		pid:        os.Getpid(),
	}
}

type lineContext struct {
	Time    string
	Millis  string
	Prog    string
	PID     int
	Level   string
	Message string
	Host    string
}

func (f *Formatter) compile() {
	f.tmpl, f.err = template.New("logline").Parse(f.Format)
}

// Render produces the formatted line for a single record instant.
func (f *Formatter) Render(t time.Time, level slog.Level, msg string) (string, error) {
	f.once.Do(f.compile)
	if f.err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrBadFormat, f.Format, f.err)
	}
	if t.IsZero() {
		t = time.Now()
	}
	line := lineContext{
		Millis:  fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond)),
		Prog:    f.Prog,
		PID:     f.pid,
		Level:   level.String(),
		Message: msg,
		Host:    f.Host,
	}
	if f.DateFormat != "" {
		line.Time = t.Format(f.DateFormat)
	}
	var sb strings.Builder
	if err := f.tmpl.Execute(&sb, line); err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrBadFormat, f.Format, err)
	}
	return sb.String(), nil
}

// FormatRecord renders r through f, appending bound and record
// attributes as bracketed key=value pairs after the line.
func FormatRecord(f *Formatter, r slog.Record, bound []slog.Attr, prefix string) (string, error) {
	line, err := f.Render(r.Time, r.Level, r.Message)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(bound)+r.NumAttrs())
	for _, a := range bound {
		pairs = append(pairs, fmt.Sprintf("%s=%v", a.Key, a.Value.Any()))
	}
	r.Attrs(func(a slog.Attr) bool {
		pairs = append(pairs, fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value.Any()))
		return true
	})
	if len(pairs) == 0 {
		return line, nil
	}
	return line + " [" + strings.Join(pairs, ", ") + "]", nil
}

// PrefixAttrs applies a group prefix to attribute keys at bind time.
func PrefixAttrs(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}
