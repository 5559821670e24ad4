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
	"log/slog"
	"time"

	"github.com/chtc/chtc-ulog/ulog/handlers"
)

// dispatcher fans each record out to the sinks its root currently
// carries. It reads the root's live handler list at dispatch time, so
// loggers handed out before a later Setup call still reach handlers
// attached afterwards. The severity threshold also lives on the root;
// the sinks themselves pass everything through.
type dispatcher struct {
	root   *Root
	attrs  []slog.Attr
	prefix string
}

func (d *dispatcher) Enabled(_ context.Context, level slog.Level) bool {
	return level >= d.root.level.Level() && d.root.hasHandlers()
}

// Handle forwards the record to every sink, collecting rather than
// short-circuiting on per-sink errors, and records dispatch stats.
func (d *dispatcher) Handle(ctx context.Context, r slog.Record) error {
	attached := d.root.snapshot()
	rec := d.bind(r)

	start := time.Now()
	var logErrs []LogError
	for _, h := range attached {
		if err := h.Handle(ctx, rec); err != nil {
			logErrs = append(logErrs, LogError{Err: err, Record: rec, Kind: h.Kind})
		}
	}

	stats := LogStats{}
	if dir := d.root.stats.dir(); dir != "" {
		avail, err := diskAvail(dir)
		stats.DiskAvail = avail
		if err != nil {
			logErrs = append(logErrs, LogError{Err: err, Record: rec, Kind: handlers.KindFile})
		}
	}
	stats.Duration = time.Since(start)
	stats.Errors = logErrs
	d.root.stats.record(stats)

	if len(logErrs) == 0 {
		return nil
	}
	errs := make([]error, len(logErrs))
	for i, le := range logErrs {
		errs[i] = le.Err
	}
	return errors.Join(errs...)
}

// bind folds logger-bound attrs and the group prefix into the record,
// so every sink renders them exactly like record attrs.
func (d *dispatcher) bind(r slog.Record) slog.Record {
	if len(d.attrs) == 0 && d.prefix == "" {
		return r
	}
	rec := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	rec.AddAttrs(d.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if d.prefix != "" {
			a = slog.Attr{Key: d.prefix + a.Key, Value: a.Value}
		}
		rec.AddAttrs(a)
		return true
	})
	return rec
}

func (d *dispatcher) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return d
	}
	nd := *d
	nd.attrs = append(append([]slog.Attr{}, d.attrs...), handlers.PrefixAttrs(d.prefix, attrs)...)
	return &nd
}

func (d *dispatcher) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	nd := *d
	nd.prefix = d.prefix + name + "."
	return &nd
}
