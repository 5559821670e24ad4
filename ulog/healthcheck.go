package ulog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chtc/chtc-ulog/config"
	"github.com/elastic/go-elasticsearch/v8"
)

// HealthCheckStatus is the last known result of the log pipeline probe.
type HealthCheckStatus struct {
	// Timestamp of the newest line the probe found in the search index
	Timestamp time.Time
	// Err from the most recent probe, nil while the pipeline looks healthy
	Err error
}

// Monitor watches whether lines from one program keep arriving in the
// search index its syslog pipeline ships to. It emits a periodic
// heartbeat record through the given logger and probes the index for
// the newest line carrying the program's name, so a stalled pipeline
// shows up as a growing gap between the two.
type Monitor struct {
	prog   string
	cfg    config.HealthCheckConfig
	log    *slog.Logger
	es     *elasticsearch.Client
	status atomic.Pointer[HealthCheckStatus]
	cancel context.CancelFunc
	done   chan struct{}
}

// StartMonitor builds the Elasticsearch client and starts the monitor
// goroutine. The monitor runs until ctx is cancelled or Stop is called.
func StartMonitor(ctx context.Context, prog string, cfg config.HealthCheckConfig, log *slog.Logger) (*Monitor, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticsearchURL},
	})
	if err != nil {
		return nil, fmt.Errorf("healthcheck: elasticsearch client: %w", err)
	}

	m := &Monitor{
		prog: prog,
		cfg:  cfg,
		log:  log,
		es:   es,
		done: make(chan struct{}),
	}
	m.status.Store(&HealthCheckStatus{})
	ctx, m.cancel = context.WithCancel(ctx)

	log.Debug("starting log pipeline health monitor",
		slog.String("component", "healthcheck"),
		slog.String("program", prog),
	)
	go m.run(ctx)
	return m, nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	heartbeat := time.NewTicker(m.cfg.LogPeriodicity)
	defer heartbeat.Stop()
	probe := time.NewTicker(m.cfg.ElasticsearchPeriodicity)
	defer probe.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("health check monitor exiting",
				slog.String("component", "healthcheck"),
			)
			return
		case t := <-heartbeat.C:
			m.logHeartbeat(t)
		case <-probe.C:
			status := &HealthCheckStatus{}
			status.Timestamp, status.Err = m.fetchLastSeen(ctx)
			m.status.Store(status)
			if status.Err != nil {
				m.log.Error("health check probe failed",
					slog.String("component", "healthcheck"),
					slog.String("error", status.Err.Error()),
				)
			}
		}
	}
}

func (m *Monitor) logHeartbeat(now time.Time) {
	status := m.status.Load()
	if status.Err != nil {
		m.log.Warn("log pipeline health degraded",
			slog.String("component", "healthcheck"),
			slog.Time("timestamp", now),
			slog.Time("last_received", status.Timestamp),
			slog.String("error", status.Err.Error()),
		)
		return
	}
	m.log.Info("log pipeline heartbeat",
		slog.String("component", "healthcheck"),
		slog.Time("timestamp", now),
		slog.Time("last_received", status.Timestamp),
	)
}

// Status returns the last probe result.
func (m *Monitor) Status() HealthCheckStatus {
	return *m.status.Load()
}

// Stop shuts the monitor down and waits for its goroutine to exit.
func (m *Monitor) Stop() {
	m.cancel()
	<-m.done
}

// fetchLastSeen asks the index for the newest line tagged with the
// monitored program's name.
func (m *Monitor) fetchLastSeen(ctx context.Context) (time.Time, error) {
	query := fmt.Sprintf(`{
		"size": 1,
		"sort": [{ "@timestamp": "desc" }],
		"query": { "term": { "program": %q } },
		"_source": ["@timestamp"]
	}`, m.prog)

	res, err := m.es.Search(
		m.es.Search.WithContext(ctx),
		m.es.Search.WithIndex(m.cfg.ElasticsearchIndex),
		m.es.Search.WithBody(strings.NewReader(query)),
		m.es.Search.WithFilterPath("hits.hits._source"),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return time.Time{}, fmt.Errorf("search failed: %s", res.String())
	}

	var esResp struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Timestamp string `json:"@timestamp"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return time.Time{}, fmt.Errorf("decode response: %w", err)
	}
	if len(esResp.Hits.Hits) == 0 {
		return time.Time{}, fmt.Errorf("no lines for program %q", m.prog)
	}

	seen, err := time.Parse(time.RFC3339, esResp.Hits.Hits[0].Source.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	m.log.Debug("log pipeline probe succeeded",
		slog.String("component", "healthcheck"),
		slog.Time("last_received", seen),
	)
	return seen, nil
}
