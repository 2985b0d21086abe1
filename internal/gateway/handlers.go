package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// RegisterRoutes registers the gateway routes on mux:
//
//	/ws                    action event stream
//	/api/state             every position state
//	/api/actions/latest    last action event per market
//	/api/missed            ?market=&after= replay for gap backfill
func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		hub.Attach(conn)
	})

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.states.All())
	})

	mux.HandleFunc("/api/actions/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.Latest())
	})

	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		market := r.URL.Query().Get("market")
		if market == "" {
			SetCORS(w)
			http.Error(w, `{"error":"market is required"}`, http.StatusBadRequest)
			return
		}
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		envs := hub.Replay(Channel(market), after)
		out := make([]json.RawMessage, len(envs))
		for i, e := range envs {
			out[i] = e
		}
		writeJSON(w, out)
	})
}
