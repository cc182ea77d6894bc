package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"mapshock/internal/logging"
	"mapshock/internal/orchestrate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The service fronts its own UI; cross-origin dashboards are expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope for every frame sent on /ws/analyze.
type wsMessage struct {
	Type     string                     `json:"type"` // "stage_update", "result", "error"
	Progress *orchestrate.ProgressEvent `json:"progress,omitempty"`
	Result   *orchestrate.Result        `json:"result,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// handleAnalyzeWS streams stage updates for one analysis, then the final
// result, then closes. The query arrives as a query parameter.
func (s *Server) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	log := logging.Get(logging.CategoryServer)

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Progress events fire on the workflow goroutine; this handler is the
	// only writer on the connection, so no extra locking is needed.
	res := s.orchestrator.Run(r.Context(), query, func(ev orchestrate.ProgressEvent) {
		msg := wsMessage{Type: "stage_update", Progress: &ev}
		if err := conn.WriteJSON(msg); err != nil {
			log.Debugw("websocket progress write failed", "error", err)
		}
	})

	if err := conn.WriteJSON(wsMessage{Type: "result", Result: res}); err != nil {
		log.Warnw("websocket result write failed", "error", err)
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis complete")
	_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
}
