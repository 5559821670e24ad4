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

// Package syslog builds log handlers that forward formatted lines to a
// syslog daemon, local or remote, over the stdlib syslog transport.
package syslog

import (
	"errors"
	"fmt"
	"log/syslog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/chtc/chtc-ulog/ulog/handlers"
)

var (
	// ErrBadAddress reports an unusable daemon address.
	ErrBadAddress = errors.New("bad syslog address")
	// ErrBadProtocol reports a transport outside tcp/udp.
	ErrBadProtocol = errors.New("bad syslog protocol")
	// ErrBadFacility reports a facility code outside the classic range.
	ErrBadFacility = errors.New("bad syslog facility")
)

// Environment variables consulted when no explicit address is given.
const (
	EnvHost = "SYSLOG_HOST"
	EnvPort = "SYSLOG_PORT"
)

// DefaultPort is used whenever a daemon host arrives without a port.
const DefaultPort = 514

// localSyslogSocket is the syslogd socket everywhere but darwin.
const localSyslogSocket = "/dev/log"

// Protocol is the transport used to reach a remote syslog daemon. The
// values match the classic numeric configuration codes.
type Protocol int

const (
	ProtocolTCP Protocol = 1
	ProtocolUDP Protocol = 2
)

// ProtocolFromCode translates a classic numeric code (1 TCP, 2 UDP).
// Codes outside that pair are rejected rather than defaulted.
func ProtocolFromCode(code int) (Protocol, error) {
	switch Protocol(code) {
	case ProtocolTCP, ProtocolUDP:
		return Protocol(code), nil
	}
	return 0, fmt.Errorf("%w: code %d", ErrBadProtocol, code)
}

// ParseProtocol maps a configuration token to a Protocol. It accepts
// the transport names and the classic numeric codes; an empty token
// means the UDP default.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "udp":
		return ProtocolUDP, nil
	case "tcp":
		return ProtocolTCP, nil
	}
	if code, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return ProtocolFromCode(code)
	}
	return 0, fmt.Errorf("%w: %q", ErrBadProtocol, s)
}

func (p Protocol) valid() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

// Network returns the net package name of the transport.
func (p Protocol) Network() string {
	if p == ProtocolTCP {
		return "tcp"
	}
	return "udp"
}

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

// Facility is a syslog facility carried as its classic integer code.
type Facility int

const (
	FacilityKern Facility = iota
	FacilityUser
	FacilityMail
	FacilityDaemon
	FacilityAuth
	FacilitySyslog
	FacilityLPR
	FacilityNews
	FacilityUUCP
	FacilityCron
	FacilityAuthPriv
	FacilityFTP
)

const (
	FacilityLocal0 Facility = iota + 16
	FacilityLocal1
	FacilityLocal2
	FacilityLocal3
	FacilityLocal4
	FacilityLocal5
	FacilityLocal6
	FacilityLocal7
)

// DefaultFacility is where lines land when the caller picks nothing.
const DefaultFacility = FacilityLocal0

// FacilityFromCode validates a classic facility code (0 through 23).
func FacilityFromCode(code int) (Facility, error) {
	if code < int(FacilityKern) || code > int(FacilityLocal7) {
		return 0, fmt.Errorf("%w: code %d", ErrBadFacility, code)
	}
	return Facility(code), nil
}

// priority shifts the facility into the syslog priority field.
func (f Facility) priority() syslog.Priority {
	return syslog.Priority(f << 3)
}

// Address locates a syslog daemon: either a local socket path, or a
// host with an optional port.
type Address struct {
	Host string
	Port int
	Path string
}

func (a Address) String() string {
	if a.Path != "" {
		return a.Path
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ResolveAddress picks the daemon address. Precedence: the explicit
// address, then SYSLOG_HOST/SYSLOG_PORT, then the platform's local
// socket. A host arriving without a port gets DefaultPort.
func ResolveAddress(explicit *Address, platform handlers.Platform) (Address, error) {
	if explicit != nil {
		a := *explicit
		if a.Path != "" {
			return Address{Path: a.Path}, nil
		}
		if a.Host == "" {
			return Address{}, fmt.Errorf("%w: empty host", ErrBadAddress)
		}
		if a.Port == 0 {
			a.Port = DefaultPort
		}
		return a, nil
	}
	if host := os.Getenv(EnvHost); host != "" {
		port := DefaultPort
		if v := os.Getenv(EnvPort); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return Address{}, fmt.Errorf("%w: %s=%q is not a port", ErrBadAddress, EnvPort, v)
			}
			port = p
		}
		return Address{Host: host, Port: port}, nil
	}
	if platform == handlers.PlatformDarwin {
		return Address{Path: handlers.DarwinSyslogSocket}, nil
	}
	return Address{Path: localSyslogSocket}, nil
}
