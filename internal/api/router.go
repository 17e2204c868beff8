// Package api implements the HTTP surface of §6: task CRUD, forex proxy
// endpoints, the duplex upgrade endpoint, ops/metrics, health, and the
// monitoring diagnostics stubs. Grounded on the teacher's cmd/server/main.go
// chi.Mux assembly, generalized off gqlgen/GraphQL routes onto a plain
// REST surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
	"forexcopilot/internal/ops"
	"forexcopilot/internal/queue"
	"forexcopilot/internal/tasks"
	"forexcopilot/internal/ws"
)

// Dependencies bundles every component a route handler may need.
type Dependencies struct {
	Logger     *zap.Logger
	Store      tasks.Store
	Queue      *queue.Queue
	Registry   *tasks.Registry
	Manager    *ws.Manager
	Forex      *forex.Service
	Collector  *ops.Collector
	Thresholds ops.Thresholds
	Latch      *ops.Latch
	APIPrefix  string

	Streamer *Streamer
}

// Mount registers every route under r. CORS/auth/rate-limit/envelope
// middleware is applied by the caller via httpmw.Apply before Mount runs.
func Mount(r chi.Router, deps Dependencies) {
	r.Get("/health", healthHandler)

	r.Route(deps.APIPrefix, func(api chi.Router) {
		api.Route("/tasks", func(tr chi.Router) {
			tr.Post("/create", deps.createTask)
			tr.Get("/", deps.listTasks)
			tr.Get("/{id}", deps.getTask)
			tr.Post("/{id}/stop", deps.transitionTask("stop", tasks.StatusFailed))
			tr.Post("/{id}/pause", deps.transitionTask("pause", tasks.StatusPaused))
			tr.Post("/{id}/resume", deps.transitionTask("resume", tasks.StatusRunning))
			tr.Delete("/{id}", deps.deleteTask)
		})

		api.Route("/forex", func(fr chi.Router) {
			fr.Get("/rates", deps.forexRates)
			fr.Get("/news", deps.forexNews)
			fr.Get("/sentiment", deps.forexSentiment)
			fr.Post("/stream/start", deps.streamStart)
			fr.Post("/stream/stop", deps.streamStop)
		})

		api.Route("/ops", func(or chi.Router) {
			or.Get("/status", deps.opsStatus)
			or.Get("/alerts", deps.opsAlerts)
			or.Get("/readiness", deps.opsReadiness)
			or.Get("/metrics", deps.opsMetrics)
		})

		api.Route("/monitoring", func(mr chi.Router) {
			mr.Get("/metrics", deps.monitoringStub("metrics"))
			mr.Get("/health", deps.monitoringStub("health"))
			mr.Get("/health/ready", deps.monitoringStub("health/ready"))
			mr.Get("/health/live", deps.monitoringStub("health/live"))
			mr.Get("/trace", deps.monitoringStub("trace"))
			mr.Get("/endpoints", deps.monitoringStub("endpoints"))
			mr.Get("/performance", deps.monitoringStub("performance"))
			mr.Get("/diagnostics", deps.monitoringStub("diagnostics"))
		})

		api.Get("/ws/{task_id}", deps.wsUpgrade)
		api.Get("/ws", deps.wsUpgradeGlobal)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func emitTaskEvent(emitter events.Emitter, taskID, message string, typ events.Type) {
	emitter.Emit(taskID, events.NewFrame(taskID, message, typ, nil, nil))
}
