package ops

import (
	"sync"
)

// Severity is the alert severity tier.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{SeverityInfo: 1, SeverityWarning: 2, SeverityCritical: 3}

// Alert is one threshold-rule evaluation result (§4.G).
type Alert struct {
	ID        string   `json:"id"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
}

// Thresholds holds the exact default env-var-backed thresholds ported
// from original_source/app/ops_routes.py.
type Thresholds struct {
	QueueDepthWarn         int
	QueueDepthCrit         int
	QueueFailedWarn        int
	WSStaleCountWarn       int
	ForexFailureStreakWarn int
	ForexRetryWarnSeconds  float64
}

// DefaultThresholds mirrors the Python reference implementation's
// defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		QueueDepthWarn:         80,
		QueueDepthCrit:         150,
		QueueFailedWarn:        1,
		WSStaleCountWarn:       1,
		ForexFailureStreakWarn: 3,
		ForexRetryWarnSeconds:  20,
	}
}

// BuildAlerts evaluates the snapshot against thresholds, producing the
// exact alert-id set the ops endpoints expose (§4.G).
func BuildAlerts(snap Snapshot, th Thresholds) []Alert {
	var alerts []Alert

	switch {
	case snap.Queue.QueueSize >= th.QueueDepthCrit:
		alerts = append(alerts, Alert{ID: "queue_depth_critical", Severity: SeverityCritical, Message: "task queue depth is critical", Value: float64(snap.Queue.QueueSize), Threshold: float64(th.QueueDepthCrit)})
	case snap.Queue.QueueSize >= th.QueueDepthWarn:
		alerts = append(alerts, Alert{ID: "queue_depth_warning", Severity: SeverityWarning, Message: "task queue depth is elevated", Value: float64(snap.Queue.QueueSize), Threshold: float64(th.QueueDepthWarn)})
	}

	if int(snap.Queue.Failed) >= th.QueueFailedWarn {
		alerts = append(alerts, Alert{ID: "queue_failed_tasks", Severity: SeverityWarning, Message: "queued tasks are failing", Value: float64(snap.Queue.Failed), Threshold: float64(th.QueueFailedWarn)})
	}

	if snap.WebSocket.StaleConnections >= th.WSStaleCountWarn {
		alerts = append(alerts, Alert{ID: "websocket_stale_connections", Severity: SeverityWarning, Message: "stale websocket connections detected", Value: float64(snap.WebSocket.StaleConnections), Threshold: float64(th.WSStaleCountWarn)})
	}

	if snap.Forex.RateFailureStreak >= th.ForexFailureStreakWarn {
		alerts = append(alerts, Alert{ID: "forex_rate_failure_streak", Severity: SeverityWarning, Message: "forex rate source is failing repeatedly", Value: float64(snap.Forex.RateFailureStreak), Threshold: float64(th.ForexFailureStreakWarn)})
	}

	if snap.Forex.NextRatesRetryInSeconds >= th.ForexRetryWarnSeconds {
		alerts = append(alerts, Alert{ID: "forex_retry_backoff_high", Severity: SeverityWarning, Message: "forex retry backoff is elevated", Value: snap.Forex.NextRatesRetryInSeconds, Threshold: th.ForexRetryWarnSeconds})
	}

	return alerts
}

// Latch maintains the process-local triggered/resolved alert bookkeeping
// (§3 Alert latch) and drives webhook emission on transition.
type Latch struct {
	mu     sync.Mutex
	active map[string]Alert

	hooks WebhookSender
}

// NewLatch constructs a Latch that calls hooks on every transition.
func NewLatch(hooks WebhookSender) *Latch {
	return &Latch{active: make(map[string]Alert), hooks: hooks}
}

// Apply records the current alert set, firing "triggered" for any new id
// and "resolved" for any id that disappeared since the last call.
func (l *Latch) Apply(alerts []Alert) {
	l.mu.Lock()
	activeIDs := make(map[string]struct{}, len(alerts))
	var toTrigger []Alert
	for _, a := range alerts {
		activeIDs[a.ID] = struct{}{}
		if _, ok := l.active[a.ID]; !ok {
			toTrigger = append(toTrigger, a)
		}
		l.active[a.ID] = a
	}

	var toResolve []Alert
	for id, prev := range l.active {
		if _, ok := activeIDs[id]; !ok {
			toResolve = append(toResolve, prev)
			delete(l.active, id)
		}
	}
	l.mu.Unlock()

	for _, a := range toTrigger {
		l.hooks.Send("triggered", a)
	}
	for _, a := range toResolve {
		l.hooks.Send("resolved", a)
	}
}

// SeverityRank exposes the info<warning<critical ordering for the
// webhook minimum-severity gate.
func SeverityRank(s Severity) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityInfo]
}
