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
package syslog_test

import (
	"context"
	"errors"
	"log/slog"
	stdsyslog "log/syslog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chtc/chtc-ulog/ulog"
	"github.com/chtc/chtc-ulog/ulog/syslog"
	syslogServer "gopkg.in/mcuadros/go-syslog.v2"
	"gopkg.in/mcuadros/go-syslog.v2/format"
)

var (
	testMsg  = "Hello, world!"
	testMsg2 = "Warning, world!"
)

// Run a local syslog server to log against, to avoid having to filter
// out actual system syslog messages.
func mkSyslogServer(t *testing.T, network, addr string, outChan syslogServer.LogPartsChannel) *syslogServer.Server {
	channel := make(syslogServer.LogPartsChannel)
	handler := syslogServer.NewChannelHandler(channel)

	server := syslogServer.NewServer()
	server.SetFormat(syslogServer.Automatic)
	server.SetHandler(handler)
	var err error
	switch network {
	case "tcp":
		err = server.ListenTCP(addr)
	case "udp":
		err = server.ListenUDP(addr)
	}
	if err != nil {
		t.Fatalf("failed to listen on %s %s: %v", network, addr, err)
	}
	if err := server.Boot(); err != nil {
		t.Fatalf("failed to boot syslog server: %v", err)
	}

	go (func() {
		for logParts := range channel {
			outChan <- logParts
		}
	})()

	return server
}

func verifyLogMsg(t *testing.T, logParts format.LogParts, expectedMsg string, expectedPriority stdsyslog.Priority) {
	priority := logParts["priority"].(int)
	content := logParts["content"].(string)
	if priority != int(expectedPriority) {
		t.Fatalf("Expected priority %v, got %v", int(expectedPriority), priority)
	}
	if !strings.Contains(content, expectedMsg) {
		t.Fatalf("Expected syslog message %v to contain string %v", content, expectedMsg)
	}
}

// Ensure records routed through a full setup reach a syslog daemon with
// the right facility and severity.
func TestSyslogThroughSetup(t *testing.T) {
	outChan := make(syslogServer.LogPartsChannel)
	srv := mkSyslogServer(t, "tcp", "127.0.0.1:10514", outChan)
	defer srv.Kill()

	root := ulog.NewRoot()
	err := root.Setup("chtc-syslog", "info", []ulog.HandlerKind{ulog.KindSyslog},
		ulog.WithPlatform(ulog.PlatformDefault),
		ulog.WithSyslogAddress(syslog.Address{Host: "127.0.0.1", Port: 10514}),
		ulog.WithSyslogProtocol(syslog.ProtocolTCP),
	)
	if err != nil {
		t.Fatalf("Failed to construct syslog handler: %v", err)
	}
	defer root.Close()
	log := root.Logger()

	// Log levels map onto syslog severities, under the default local0
	log.Info(testMsg)
	verifyLogMsg(t, <-outChan, testMsg, stdsyslog.LOG_LOCAL0|stdsyslog.LOG_INFO)

	log.Warn(testMsg2)
	verifyLogMsg(t, <-outChan, testMsg2, stdsyslog.LOG_LOCAL0|stdsyslog.LOG_WARNING)

	// Child loggers carry their attrs into the line
	childLogger := log.With(slog.String("child", "key"))
	childLogger.Error(testMsg)
	logParts := <-outChan
	verifyLogMsg(t, logParts, testMsg, stdsyslog.LOG_LOCAL0|stdsyslog.LOG_ERR)
	verifyLogMsg(t, logParts, "child=key", stdsyslog.LOG_LOCAL0|stdsyslog.LOG_ERR)

	// Child loggers don't interfere with their parent
	log.Error(testMsg)
	logParts = <-outChan
	verifyLogMsg(t, logParts, testMsg, stdsyslog.LOG_LOCAL0|stdsyslog.LOG_ERR)
	if strings.Contains(logParts["content"].(string), "child=key") {
		t.Fatalf("Parent logger picked up child attrs: %v", logParts["content"])
	}
}

// Ensure a directly built handler honors a custom format and facility,
// over the default UDP transport.
func TestSyslogCustomFormat(t *testing.T) {
	outChan := make(syslogServer.LogPartsChannel)
	srv := mkSyslogServer(t, "udp", "127.0.0.1:10515", outChan)
	defer srv.Kill()

	h, err := syslog.NewHandler("fmt-prog",
		syslog.WithAddress(syslog.Address{Host: "127.0.0.1", Port: 10515}),
		syslog.WithFormat("{{.Prog}} says: {{.Message}}"),
		syslog.WithFacility(syslog.FacilityLocal3),
	)
	if err != nil {
		t.Fatalf("Failed to construct syslog handler: %v", err)
	}
	defer h.Close()

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "custom line", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Failed to emit record: %v", err)
	}
	verifyLogMsg(t, <-outChan, "fmt-prog says: custom line", stdsyslog.LOG_LOCAL3|stdsyslog.LOG_INFO)
}

func TestNewHandlerValidation(t *testing.T) {
	if _, err := syslog.NewHandler("p", syslog.WithProtocol(syslog.Protocol(9))); !errors.Is(err, syslog.ErrBadProtocol) {
		t.Errorf("expected a protocol error, got %v", err)
	}
	if _, err := syslog.NewHandler("p", syslog.WithFacility(syslog.Facility(99))); !errors.Is(err, syslog.ErrBadFacility) {
		t.Errorf("expected a facility error, got %v", err)
	}
	if _, err := syslog.NewHandler("p", syslog.WithAddress(syslog.Address{})); !errors.Is(err, syslog.ErrBadAddress) {
		t.Errorf("expected an address error, got %v", err)
	}
}

// Dial failures surface as transport errors, not as configuration ones.
func TestNewHandlerDialFailure(t *testing.T) {
	_, err := syslog.NewHandler("p",
		syslog.WithAddress(syslog.Address{Path: filepath.Join(t.TempDir(), "missing.sock")}))
	if err == nil {
		t.Fatal("expected a dial error")
	}
	if errors.Is(err, syslog.ErrBadAddress) || errors.Is(err, syslog.ErrBadProtocol) || errors.Is(err, syslog.ErrBadFacility) {
		t.Errorf("dial failure translated into a config error: %v", err)
	}
	if !strings.Contains(err.Error(), "dial syslog socket") {
		t.Errorf("unexpected error text: %v", err)
	}
}
