package handlers

import (
	"os"
	"runtime"
)

// Platform selects which set of built-in format defaults applies.
type Platform string

const (
	// PlatformDefault covers the common Linux/Unix case.
	PlatformDefault Platform = "default"
	// PlatformDarwin covers macOS hosts whose local syslogd writes its
	// own timestamp and host prefix.
	PlatformDarwin Platform = "darwin"
)

// DarwinSyslogSocket is the local syslogd socket on macOS. Its presence
// is what switches a darwin host onto the trimmed syslog format.
const DarwinSyslogSocket = "/var/run/syslog"

// Detect reports the platform of the current process.
func Detect() Platform {
	if runtime.GOOS == "darwin" {
		if _, err := os.Stat(DarwinSyslogSocket); err == nil {
			return PlatformDarwin
		}
	}
	return PlatformDefault
}
