// Package ops implements §4.G: snapshot sampling, threshold alerting with
// latched triggered/resolved transitions, webhook delivery, and
// Prometheus-text serialization. Grounded on
// original_source/app/ops_routes.py.
package ops

import (
	"context"
	"time"

	"forexcopilot/internal/forex"
	"forexcopilot/internal/queue"
	"forexcopilot/internal/ws"
)

// QueueSnapshot mirrors queue.Stats for the ops view.
type QueueSnapshot struct {
	Started   bool
	QueueSize int
	Enqueued  int64
	Completed int64
	Failed    int64
}

// WebSocketSnapshot summarizes connection-manager state.
type WebSocketSnapshot struct {
	TotalConnections int
	RegistrySize     int
	StaleConnections int
}

// ForexSnapshot summarizes forex-service runtime health.
type ForexSnapshot struct {
	RateFailureStreak       int
	NextRatesRetryInSeconds float64
}

// Snapshot is the composed sample fed into alert evaluation (§4.G).
type Snapshot struct {
	Timestamp time.Time
	Queue     QueueSnapshot
	WebSocket WebSocketSnapshot
	Forex     ForexSnapshot
}

// Config controls stale-connection thresholding for the snapshot.
type Config struct {
	WSStaleSeconds int
}

// Collector composes a point-in-time Snapshot from the three leaf
// components (§4.G: "Snapshot (B,C,D)").
type Collector struct {
	cfg     Config
	queue   *queue.Queue
	manager *ws.Manager
	forex   *forex.Service
}

// NewCollector builds a Collector.
func NewCollector(cfg Config, q *queue.Queue, m *ws.Manager, f *forex.Service) *Collector {
	if cfg.WSStaleSeconds <= 0 {
		cfg.WSStaleSeconds = 120
	}
	if cfg.WSStaleSeconds < 10 {
		cfg.WSStaleSeconds = 10
	}
	return &Collector{cfg: cfg, queue: q, manager: m, forex: f}
}

// Collect samples the queue, connection manager, and forex service.
func (c *Collector) Collect() Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	qs := c.queue.Stats()
	registry := c.manager.RegistrySnapshot(ctx, "")
	stale := c.manager.StaleCount(time.Duration(c.cfg.WSStaleSeconds) * time.Second)
	fs := c.forex.Stats()

	return Snapshot{
		Timestamp: time.Now().UTC(),
		Queue: QueueSnapshot{
			Started:   qs.Started,
			QueueSize: qs.QueueSize,
			Enqueued:  qs.Enqueued,
			Completed: qs.Completed,
			Failed:    qs.Failed,
		},
		WebSocket: WebSocketSnapshot{
			TotalConnections: c.manager.ConnectionCount(""),
			RegistrySize:     len(registry),
			StaleConnections: stale,
		},
		Forex: ForexSnapshot{
			RateFailureStreak:       fs.RateFailureStreak,
			NextRatesRetryInSeconds: fs.NextRatesRetryInSeconds,
		},
	}
}
