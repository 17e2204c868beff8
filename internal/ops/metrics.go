package ops

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/expfmt"
)

// metricsCollector is a prometheus.Collector that reports a single
// Snapshot+alert-set sample on each scrape. Metric names match
// original_source/app/ops_routes.py::_to_prometheus exactly so the
// exposition is behaviorally identical to the reference implementation,
// while the encoding itself goes through github.com/prometheus/client_golang
// rather than hand-rolled text concatenation.
type metricsCollector struct {
	snapshot Snapshot
	alerts   []Alert
}

var (
	queueStartedDesc  = prometheus.NewDesc("forex_backend_queue_started", "Queue service started (1=true,0=false)", nil, nil)
	queueSizeDesc     = prometheus.NewDesc("forex_backend_queue_size", "Current task queue size", nil, nil)
	queueEnqueued     = prometheus.NewDesc("forex_backend_queue_enqueued_total", "Total enqueued tasks", nil, nil)
	queueCompleted    = prometheus.NewDesc("forex_backend_queue_completed_total", "Total completed queued tasks", nil, nil)
	queueFailed       = prometheus.NewDesc("forex_backend_queue_failed_total", "Total failed queued tasks", nil, nil)
	wsConnections     = prometheus.NewDesc("forex_backend_websocket_connections_total", "Total active websocket connections", nil, nil)
	wsRegistrySize    = prometheus.NewDesc("forex_backend_websocket_registry_size", "Total tracked websocket connections in registry", nil, nil)
	wsStale           = prometheus.NewDesc("forex_backend_websocket_stale_connections", "Total stale websocket connections", nil, nil)
	forexFailureStrk  = prometheus.NewDesc("forex_backend_forex_rate_failure_streak", "Consecutive forex rate source failures", nil, nil)
	forexRetryBackoff = prometheus.NewDesc("forex_backend_forex_retry_backoff_seconds", "Current forex retry backoff seconds", nil, nil)
	alertsTotalDesc   = prometheus.NewDesc("forex_backend_alerts_total", "Active ops alerts grouped by severity", []string{"severity"}, nil)
)

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueStartedDesc
	ch <- queueSizeDesc
	ch <- queueEnqueued
	ch <- queueCompleted
	ch <- queueFailed
	ch <- wsConnections
	ch <- wsRegistrySize
	ch <- wsStale
	ch <- forexFailureStrk
	ch <- forexRetryBackoff
	ch <- alertsTotalDesc
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	q := c.snapshot.Queue
	wss := c.snapshot.WebSocket
	fx := c.snapshot.Forex

	ch <- prometheus.MustNewConstMetric(queueStartedDesc, prometheus.GaugeValue, boolToFloat(q.Started))
	ch <- prometheus.MustNewConstMetric(queueSizeDesc, prometheus.GaugeValue, float64(q.QueueSize))
	ch <- prometheus.MustNewConstMetric(queueEnqueued, prometheus.CounterValue, float64(q.Enqueued))
	ch <- prometheus.MustNewConstMetric(queueCompleted, prometheus.CounterValue, float64(q.Completed))
	ch <- prometheus.MustNewConstMetric(queueFailed, prometheus.CounterValue, float64(q.Failed))
	ch <- prometheus.MustNewConstMetric(wsConnections, prometheus.GaugeValue, float64(wss.TotalConnections))
	ch <- prometheus.MustNewConstMetric(wsRegistrySize, prometheus.GaugeValue, float64(wss.RegistrySize))
	ch <- prometheus.MustNewConstMetric(wsStale, prometheus.GaugeValue, float64(wss.StaleConnections))
	ch <- prometheus.MustNewConstMetric(forexFailureStrk, prometheus.GaugeValue, float64(fx.RateFailureStreak))
	ch <- prometheus.MustNewConstMetric(forexRetryBackoff, prometheus.GaugeValue, fx.NextRatesRetryInSeconds)

	counts := map[Severity]int{SeverityCritical: 0, SeverityWarning: 0, SeverityInfo: 0}
	for _, a := range c.alerts {
		counts[a.Severity]++
	}
	for _, sev := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo} {
		ch <- prometheus.MustNewConstMetric(alertsTotalDesc, prometheus.GaugeValue, float64(counts[sev]), string(sev))
	}
}

// ToPrometheusText renders snapshot+alerts through a throwaway registry
// and the standard expfmt text encoder.
func ToPrometheusText(snapshot Snapshot, alerts []Alert) (string, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(&metricsCollector{snapshot: snapshot, alerts: alerts}); err != nil {
		return "", err
	}

	families, err := reg.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
