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
package stackdriver

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtc/chtc-ulog/ulog"
)

// fakeMetadata stands in for the GCE metadata server. The paths map is
// keyed by metadata suffix; anything else 404s like the real server.
func fakeMetadata(t *testing.T, paths map[string]string) *[]string {
	t.Helper()
	requested := &[]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Metadata-Flavor", "Google")
		suffix := strings.TrimPrefix(r.URL.Path, "/computeMetadata/v1/")
		*requested = append(*requested, suffix)
		val, ok := paths[suffix]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, val)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("GCE_METADATA_HOST", strings.TrimPrefix(srv.URL, "http://"))
	return requested
}

func TestResolveInstance(t *testing.T) {
	fakeMetadata(t, map[string]string{
		"project/project-id": "unit-project",
		"instance/name":      "log-vm",
		"instance/id":        "8765",
		"instance/zone":      "projects/123456/zones/us-central1-b",
	})

	info, err := resolveInstance(metadata.NewClient(nil), "")
	require.NoError(t, err)
	assert.Equal(t, "unit-project", info.projectID)
	assert.Equal(t, "log-vm", info.name)
	assert.Equal(t, "8765", info.id)
	assert.Equal(t, "us-central1-b", info.zone)
}

// A pinned project id skips the metadata lookup for it.
func TestResolveInstancePinnedProject(t *testing.T) {
	requested := fakeMetadata(t, map[string]string{
		"instance/name": "log-vm",
		"instance/id":   "8765",
		"instance/zone": "projects/123456/zones/us-central1-b",
	})

	info, err := resolveInstance(metadata.NewClient(nil), "pinned-project")
	require.NoError(t, err)
	assert.Equal(t, "pinned-project", info.projectID)
	assert.NotContains(t, *requested, "project/project-id")
}

func TestResolveInstanceUnavailable(t *testing.T) {
	fakeMetadata(t, nil)

	_, err := resolveInstance(metadata.NewClient(nil), "")
	assert.ErrorIs(t, err, ErrMetadata)
}

func TestInstanceResourceAndLabels(t *testing.T) {
	info := instanceInfo{projectID: "unit-project", name: "log-vm", id: "8765", zone: "us-central1-b"}

	res := info.resource()
	assert.Equal(t, "gce_instance", res.Type)
	assert.Equal(t, map[string]string{
		"instance_id": "8765",
		"project_id":  "unit-project",
		"zone":        "us-central1-b",
	}, res.Labels)

	assert.Equal(t, map[string]string{
		"resource_id":      "8765",
		"resource_project": "unit-project",
		"resource_zone":    "us-central1-b",
		"resource_host":    "log-vm",
	}, info.labels())
}

// Linking this package registers the builder: selecting the kind no
// longer reports it unavailable, it fails later on instance identity.
func TestSetupReachesBuilder(t *testing.T) {
	fakeMetadata(t, nil)

	root := ulog.NewRoot()
	err := root.Setup("cloud_prog", "info", []ulog.HandlerKind{ulog.KindStackdriver})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ulog.ErrHandlerUnavailable)
	assert.ErrorIs(t, err, ErrMetadata)
	assert.Empty(t, root.Handlers())
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  logging.Severity
	}{
		{slog.LevelDebug, logging.Debug},
		{slog.LevelDebug - 4, logging.Debug},
		{slog.LevelInfo, logging.Info},
		{slog.LevelWarn, logging.Warning},
		{slog.LevelError, logging.Error},
		{slog.LevelError + 4, logging.Error},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, severity(tt.level), "level %v", tt.level)
	}
}
