package api

import (
	"net/http"

	"forexcopilot/internal/httpmw"
)

// monitoringStub serves the §6 `/api/monitoring/*` surface. These paths
// are orchestrator/APM-facing diagnostic endpoints layered over the same
// ops.Collector snapshot rather than a separate instrumentation stack —
// the spec names them as part of the documented surface without
// specifying their payload shape, so each returns the live snapshot
// tagged with which facet was requested.
func (d Dependencies) monitoringStub(facet string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, alerts := d.snapshotAndAlerts()
		httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
			Status:  "success",
			Message: "ok",
			Data: map[string]interface{}{
				"facet":    facet,
				"snapshot": snap,
				"alerts":   alerts,
			},
			RequestID: httpmw.RequestIDFrom(r.Context()),
		})
	}
}
