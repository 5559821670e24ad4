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
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// LogError is one sink failure captured during a record dispatch.
type LogError struct {
	// Error the sink returned while handling the record
	Err error
	// Record that triggered the error
	Record slog.Record
	// Kind of the sink that failed
	Kind HandlerKind
}

// LogStats reports resource usage and failures for one record dispatch.
type LogStats struct {
	// Time the full fan-out took
	Duration time.Duration
	// Remaining space on the file sink's volume, when a file sink is
	// attached
	DiskAvail uint64
	// Errors collected across the sinks, nil on a clean dispatch
	Errors []LogError
}

// StatsCallback receives the stats of every record dispatch.
type StatsCallback func(stats LogStats)

type statsState struct {
	mu       sync.Mutex
	latest   LogStats
	callback StatsCallback
	fileDir  string
}

func (s *statsState) snapshot() LogStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *statsState) setCallback(cb StatsCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

func (s *statsState) setFileDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileDir = dir
}

func (s *statsState) dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileDir
}

func (s *statsState) record(st LogStats) {
	s.mu.Lock()
	s.latest = st
	cb := s.callback
	s.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// diskAvail reports the space left on the volume holding dir.
func diskAvail(dir string) (uint64, error) {
	stat := unix.Statfs_t{}
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	// Available blocks times block size
	return stat.Bavail * uint64(stat.Bsize), nil
}
