package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forexcopilot/internal/httpmw"
)

// upgrader mirrors the teacher's internal/graph/websocket.go CheckOrigin
// posture: permissive by default, tightened by CORS at the HTTP layer
// rather than here.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (d Dependencies) upgradeAndServe(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	user, _ := httpmw.UserFrom(r.Context())
	connectionID := d.Manager.Accept(r.Context(), conn, topic, user.UserID)

	for {
		_, text, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if session, ok := d.Manager.SessionByID(connectionID); ok {
			d.Manager.HandleTextMessage(r.Context(), session, string(text))
		} else {
			break
		}
	}
}

// wsUpgrade handles GET …/api/ws/{task_id} (§6 per-task topic).
func (d Dependencies) wsUpgrade(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	d.upgradeAndServe(w, r, taskID)
}

// wsUpgradeGlobal handles GET …/api/ws (§6 global topic).
func (d Dependencies) wsUpgradeGlobal(w http.ResponseWriter, r *http.Request) {
	d.upgradeAndServe(w, r, "")
}
