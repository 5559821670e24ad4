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

// Package stackdriver ships formatted log lines to Google Cloud
// Logging, labeled with the GCE instance the process runs on. Linking
// the package in (a blank import is enough) registers the stackdriver
// handler kind with ulog.Setup; selecting the kind without the import
// fails with ulog.ErrHandlerUnavailable.
package stackdriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
	"google.golang.org/api/option"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"

	"github.com/chtc/chtc-ulog/ulog"
	"github.com/chtc/chtc-ulog/ulog/handlers"
)

// ErrMetadata reports that the instance metadata needed to label lines
// could not be fetched.
var ErrMetadata = errors.New("instance metadata unavailable")

func init() {
	ulog.RegisterBuilder(ulog.KindStackdriver, func(ctx context.Context, p ulog.BuildParams) (slog.Handler, error) {
		var opts []Option
		if p.ProjectID != "" {
			opts = append(opts, WithProjectID(p.ProjectID))
		}
		if p.Format != "" {
			opts = append(opts, WithFormat(p.Format))
		}
		if p.DateFormat != "" {
			opts = append(opts, WithDateFormat(p.DateFormat))
		}
		return NewHandler(ctx, p.Prog, opts...)
	})
}

type settings struct {
	projectID  string
	format     string
	dateFormat string
	clientOpts []option.ClientOption
	meta       *metadata.Client
}

// Option adjusts how NewHandler resolves the instance and connects.
type Option func(*settings)

// WithProjectID pins the cloud project instead of resolving it from
// instance metadata.
func WithProjectID(id string) Option {
	return func(s *settings) { s.projectID = id }
}

// WithFormat overrides the default line format.
func WithFormat(format string) Option {
	return func(s *settings) { s.format = format }
}

// WithDateFormat overrides the date layout behind {{.Time}}.
func WithDateFormat(layout string) Option {
	return func(s *settings) { s.dateFormat = layout }
}

// WithClientOptions passes extra options (credentials, endpoints) to
// the cloud logging client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// WithMetadataClient swaps the GCE metadata client. Tests use it to
// point resolution at a fake metadata server.
func WithMetadataClient(c *metadata.Client) Option {
	return func(s *settings) { s.meta = c }
}

// instanceInfo is the GCE identity stamped onto shipped lines.
type instanceInfo struct {
	projectID string
	name      string
	id        string
	zone      string
}

func resolveInstance(meta *metadata.Client, projectID string) (instanceInfo, error) {
	info := instanceInfo{projectID: projectID}
	var err error
	if info.projectID == "" {
		if info.projectID, err = meta.ProjectID(); err != nil {
			return info, fmt.Errorf("%w: project id: %v", ErrMetadata, err)
		}
	}
	if info.name, err = meta.InstanceName(); err != nil {
		return info, fmt.Errorf("%w: instance name: %v", ErrMetadata, err)
	}
	if info.id, err = meta.InstanceID(); err != nil {
		return info, fmt.Errorf("%w: instance id: %v", ErrMetadata, err)
	}
	if info.zone, err = meta.Zone(); err != nil {
		return info, fmt.Errorf("%w: zone: %v", ErrMetadata, err)
	}
	return info, nil
}

// resource describes the emitting instance the way cloud logging
// expects gce_instance entries to be keyed.
func (i instanceInfo) resource() *mrpb.MonitoredResource {
	return &mrpb.MonitoredResource{
		Type: "gce_instance",
		Labels: map[string]string{
			"instance_id": i.id,
			"project_id":  i.projectID,
			"zone":        i.zone,
		},
	}
}

// labels carry the identity fields downstream pipeline consumers key on.
func (i instanceInfo) labels() map[string]string {
	return map[string]string{
		"resource_id":      i.id,
		"resource_project": i.projectID,
		"resource_zone":    i.zone,
		"resource_host":    i.name,
	}
}

// NewHandler resolves the instance identity, dials cloud logging, and
// returns a handler shipping formatted lines as entries of the log
// named after prog. The handler is meant for direct attachment; full
// setup paths wire it automatically once this package is linked in.
func NewHandler(ctx context.Context, prog string, opts ...Option) (*Handler, error) {
	s := settings{meta: metadata.NewClient(nil)}
	for _, opt := range opts {
		opt(&s)
	}

	info, err := resolveInstance(s.meta, s.projectID)
	if err != nil {
		return nil, err
	}

	client, err := logging.NewClient(ctx, info.projectID, s.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("cloud logging client: %w", err)
	}

	format, dateFormat := handlers.DefaultFormat(handlers.KindStackdriver, handlers.PlatformDefault)
	if s.format != "" {
		format = s.format
	}
	if s.dateFormat != "" {
		dateFormat = s.dateFormat
	}
	f := handlers.NewFormatter(prog, format, dateFormat)
	f.Host = info.name

	lg := client.Logger(prog,
		logging.CommonResource(info.resource()),
		logging.CommonLabels(info.labels()),
	)
	return &Handler{client: client, lg: lg, f: f}, nil
}
