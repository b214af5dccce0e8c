package http

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obiente/translate/livescribe/internal/ws"
)

func NewRouter(wss *ws.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	mux.Handle("/metrics", promhttp.Handler())
	// Streaming transcription WebSocket
	mux.HandleFunc("/ws/transcribe", wss.Handle)
	return mux
}
