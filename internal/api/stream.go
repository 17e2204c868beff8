package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
	"forexcopilot/internal/httpmw"
	"forexcopilot/internal/ws"
)

// Streamer runs the global forex broadcaster (§6 POST
// /api/forex/stream/{start|stop}): a ticker-driven loop, grounded on the
// teacher's internal/monitor.BotMonitor.monitorLoop select shape, that
// periodically pushes `{rates, news, sentiment}` to the "global" topic
// and pauses while no sessions are connected.
type Streamer struct {
	interval time.Duration
	manager  *ws.Manager
	forex    *forex.Service
	logger   *zap.Logger
	baseCtx  context.Context

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewStreamer constructs a Streamer bound to the process lifetime context
// baseCtx (not a request context — the loop must outlive whichever HTTP
// request toggles it on). interval is clamped to the >=2s floor §6
// specifies.
func NewStreamer(baseCtx context.Context, interval time.Duration, manager *ws.Manager, svc *forex.Service, logger *zap.Logger) *Streamer {
	if interval < 2*time.Second {
		interval = 2 * time.Second
	}
	return &Streamer{baseCtx: baseCtx, interval: interval, manager: manager, forex: svc, logger: logger}
}

// Start launches the broadcast loop if not already running. The request
// that triggered Start only toggles the switch; the loop itself runs
// against the Streamer's process-lifetime context.
func (s *Streamer) Start(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.running = true
	go s.loop(ctx)
}

// Stop halts the broadcast loop if running.
func (s *Streamer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
}

// Running reports whether the streamer loop is active.
func (s *Streamer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Streamer) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.manager.HasAnySessions() {
				continue
			}
			snap := s.forex.GetRates(ctx)
			frame := events.NewFrame(ws.GlobalTopic, "rate update", events.TypeInfo, nil, map[string]interface{}{
				"rates":     snap.LatestRates,
				"news":      []interface{}{},
				"sentiment": "neutral",
			})
			s.manager.Emit(ws.GlobalTopic, frame)
		}
	}
}

// streamStart handles POST /api/forex/stream/start.
func (d Dependencies) streamStart(w http.ResponseWriter, r *http.Request) {
	if d.Streamer == nil {
		httpmw.WriteEnvelope(w, http.StatusServiceUnavailable, httpmw.Envelope{Status: "error", Message: "streamer not configured", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}
	d.Streamer.Start(r.Context())
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "streamer started", RequestID: httpmw.RequestIDFrom(r.Context())})
}

// streamStop handles POST /api/forex/stream/stop.
func (d Dependencies) streamStop(w http.ResponseWriter, r *http.Request) {
	if d.Streamer == nil {
		httpmw.WriteEnvelope(w, http.StatusServiceUnavailable, httpmw.Envelope{Status: "error", Message: "streamer not configured", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}
	d.Streamer.Stop()
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "streamer stopped", RequestID: httpmw.RequestIDFrom(r.Context())})
}
