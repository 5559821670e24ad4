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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFormat(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		platform   Platform
		format     string
		dateFormat string
	}{
		{"stream", KindStream, PlatformDefault, StreamFormat, DefaultDateFormat},
		{"stream on darwin", KindStream, PlatformDarwin, StreamFormat, DefaultDateFormat},
		{"file uses stream format", KindFile, PlatformDefault, StreamFormat, DefaultDateFormat},
		{"syslog", KindSyslog, PlatformDefault, SyslogFormat, DefaultDateFormat},
		{"syslog on darwin", KindSyslog, PlatformDarwin, SyslogDarwinFormat, ""},
		{"stackdriver", KindStackdriver, PlatformDefault, StackdriverFormat, DefaultDateFormat},
		{"stackdriver on darwin", KindStackdriver, PlatformDarwin, StackdriverFormat, DefaultDateFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, dateFormat := DefaultFormat(tt.kind, tt.platform)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.dateFormat, dateFormat)
		})
	}
}

func TestRenderStreamLine(t *testing.T) {
	f := NewFormatter("my_program", StreamFormat, DefaultDateFormat)
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 589*int(time.Millisecond), time.UTC)

	line, err := f.Render(ts, slog.LevelInfo, "ohai")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("2025-03-14T09:26:53.589Z my_program (%d) INFO: ohai", os.Getpid()), line)
}

func TestRenderPadsMilliseconds(t *testing.T) {
	f := NewFormatter("my_program", StreamFormat, DefaultDateFormat)
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 7*int(time.Millisecond), time.UTC)

	line, err := f.Render(ts, slog.LevelInfo, "ohai")
	require.NoError(t, err)
	assert.Contains(t, line, "2025-03-14T09:26:53.007Z")
}

func TestRenderDarwinSyslogLine(t *testing.T) {
	f := NewFormatter("my_program", SyslogDarwinFormat, "")
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

	line, err := f.Render(ts, slog.LevelWarn, "careful")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("my_program (%d): careful", os.Getpid()), line)
}

func TestRenderHostField(t *testing.T) {
	f := NewFormatter("my_program", StackdriverFormat, DefaultDateFormat)
	f.Host = "log-vm-1"
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

	line, err := f.Render(ts, slog.LevelInfo, "shipped")
	require.NoError(t, err)
	assert.Contains(t, line, " log-vm-1 my_program (")
}

func TestRenderZeroTimeStampsNow(t *testing.T) {
	f := NewFormatter("my_program", StreamFormat, DefaultDateFormat)

	line, err := f.Render(time.Time{}, slog.LevelInfo, "ohai")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z `), line)
}

// A format that does not parse must fail on the first render, and keep
// failing on later renders, rather than at construction.
func TestRenderBadFormatParse(t *testing.T) {
	f := NewFormatter("my_program", "{{.Message", DefaultDateFormat)

	_, err := f.Render(time.Now(), slog.LevelInfo, "ohai")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFormat)

	_, err = f.Render(time.Now(), slog.LevelInfo, "ohai")
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestRenderBadFormatField(t *testing.T) {
	f := NewFormatter("my_program", "{{.Nope}}: {{.Message}}", DefaultDateFormat)

	_, err := f.Render(time.Now(), slog.LevelInfo, "ohai")
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestFormatRecordAppendsAttrs(t *testing.T) {
	f := NewFormatter("my_program", "{{.Level}}: {{.Message}}", "")
	r := slog.NewRecord(time.Time{}, slog.LevelWarn, "careful", 0)
	r.AddAttrs(slog.String("job", "backfill"), slog.Int("retries", 3))

	line, err := FormatRecord(f, r, []slog.Attr{slog.String("svc", "api")}, "")
	require.NoError(t, err)
	assert.Equal(t, "WARN: careful [svc=api, job=backfill, retries=3]", line)
}

func TestFormatRecordPrefixesRecordAttrs(t *testing.T) {
	f := NewFormatter("my_program", "{{.Message}}", "")
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "grouped", 0)
	r.AddAttrs(slog.String("path", "/x"))

	// Bound attrs already carry their prefix from bind time; only record
	// attrs pick it up here.
	line, err := FormatRecord(f, r, []slog.Attr{slog.String("req.id", "7")}, "req.")
	require.NoError(t, err)
	assert.Equal(t, "grouped [req.id=7, req.path=/x]", line)
}

func TestFormatRecordNoAttrs(t *testing.T) {
	f := NewFormatter("my_program", "{{.Message}}", "")
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "plain", 0)

	line, err := FormatRecord(f, r, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "plain", line)
}

func TestPrefixAttrs(t *testing.T) {
	attrs := []slog.Attr{slog.String("a", "1"), slog.String("b", "2")}

	out := PrefixAttrs("g.", attrs)
	require.Len(t, out, 2)
	assert.Equal(t, "g.a", out[0].Key)
	assert.Equal(t, "g.b", out[1].Key)
	// Input stays untouched.
	assert.Equal(t, "a", attrs[0].Key)

	assert.Equal(t, attrs, PrefixAttrs("", attrs))
}

func TestStreamHandlerWritesLines(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewStreamHandler(buf, NewFormatter("my_program", "{{.Level}}: {{.Message}}", ""))

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "plain", 0)
	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t, "INFO: plain\n", buf.String())
}

func TestStreamHandlerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewStreamHandler(buf, NewFormatter("my_program", "{{.Level}}: {{.Message}}", ""))
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "plain", 0)

	child := h.WithAttrs([]slog.Attr{slog.String("k", "v")})
	require.NoError(t, child.Handle(context.Background(), r))
	assert.Equal(t, "INFO: plain [k=v]\n", buf.String())

	// The parent handler is not affected by the derived one.
	buf.Reset()
	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t, "INFO: plain\n", buf.String())
}

func TestStreamHandlerWithGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewStreamHandler(buf, NewFormatter("my_program", "{{.Level}}: {{.Message}}", ""))

	grouped := h.WithGroup("req").WithAttrs([]slog.Attr{slog.String("id", "7")})
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "grouped", 0)
	r.AddAttrs(slog.String("path", "/x"))

	require.NoError(t, grouped.Handle(context.Background(), r))
	assert.Equal(t, "INFO: grouped [req.id=7, req.path=/x]\n", buf.String())
}
