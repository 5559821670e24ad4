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
	"context"
	"io"
	"log/slog"
	"sync"
)

// StreamHandler writes one formatted line per record to a writer. It is
// the console sink and, pointed at a rotating file writer, the file sink.
type StreamHandler struct {
	out    io.Writer
	f      *Formatter
	attrs  []slog.Attr
	prefix string
	mu     *sync.Mutex
}

// NewStreamHandler builds a handler emitting f-rendered lines to out.
func NewStreamHandler(out io.Writer, f *Formatter) *StreamHandler {
	return &StreamHandler{out: out, f: f, mu: &sync.Mutex{}}
}

// Enabled defers severity gating to the logger that owns the handler.
func (h *StreamHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *StreamHandler) Handle(_ context.Context, r slog.Record) error {
	line, err := FormatRecord(h.f, r, h.attrs, h.prefix)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = io.WriteString(h.out, line+"\n")
	return err
}

func (h *StreamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), PrefixAttrs(h.prefix, attrs)...)
	return &c
}

func (h *StreamHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}
