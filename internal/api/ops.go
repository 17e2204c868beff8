package api

import (
	"net/http"

	"forexcopilot/internal/httpmw"
	"forexcopilot/internal/ops"
)

// snapshotAndAlerts centralizes the collect -> build-alerts -> latch-apply
// sequence every ops endpoint shares, grounded on
// original_source/app/ops_routes.py's per-endpoint call to
// _collect_ops_snapshot() / _build_alerts() / _emit_alert_hooks().
func (d Dependencies) snapshotAndAlerts() (ops.Snapshot, []ops.Alert) {
	snap := d.Collector.Collect()
	alerts := ops.BuildAlerts(snap, d.Thresholds)
	d.Latch.Apply(alerts)
	return snap, alerts
}

func (d Dependencies) opsStatus(w http.ResponseWriter, r *http.Request) {
	snap, alerts := d.snapshotAndAlerts()
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
		Status:  "success",
		Message: "ok",
		Data: map[string]interface{}{
			"snapshot": snap,
			"alerts":   alerts,
		},
		RequestID: httpmw.RequestIDFrom(r.Context()),
	})
}

func (d Dependencies) opsAlerts(w http.ResponseWriter, r *http.Request) {
	_, alerts := d.snapshotAndAlerts()
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
		Status:    "success",
		Message:   "ok",
		Data:      map[string]interface{}{"alerts": alerts},
		RequestID: httpmw.RequestIDFrom(r.Context()),
	})
}

func (d Dependencies) opsReadiness(w http.ResponseWriter, r *http.Request) {
	snap, alerts := d.snapshotAndAlerts()
	ready := snap.Queue.Started
	for _, a := range alerts {
		if a.Severity == ops.SeverityCritical {
			ready = false
		}
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httpmw.WriteEnvelope(w, status, httpmw.Envelope{
		Status:    "success",
		Message:   "ok",
		Data:      map[string]interface{}{"ready": ready, "queue_started": snap.Queue.Started},
		RequestID: httpmw.RequestIDFrom(r.Context()),
	})
}

func (d Dependencies) opsMetrics(w http.ResponseWriter, r *http.Request) {
	snap, alerts := d.snapshotAndAlerts()
	text, err := ops.ToPrometheusText(snap, alerts)
	if err != nil {
		httpmw.WriteEnvelope(w, http.StatusInternalServerError, httpmw.Envelope{Status: "error", Message: "failed to render metrics", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
