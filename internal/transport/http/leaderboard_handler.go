package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/app"
)

// LeaderboardHandler serves the read-only winners and attendees views.
// With a clientId query parameter the device's local records are merged in.
type LeaderboardHandler struct {
	service *app.Service
	log     *zap.Logger
}

func NewLeaderboardHandler(service *app.Service, log *zap.Logger) *LeaderboardHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardHandler{service: service, log: log}
}

func (h *LeaderboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/leaderboard/winners", h.Winners)
	mux.HandleFunc("/leaderboard/attendees", h.Attendees)
}

func (h *LeaderboardHandler) Winners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	h.writeJSON(w, h.service.Leaderboard().Winners(r.Context(), h.local(q.Get("clientId")), q.Get("puzzleId")))
}

func (h *LeaderboardHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	h.writeJSON(w, h.service.Leaderboard().Attendees(r.Context(), h.local(q.Get("clientId")), q.Get("puzzleId")))
}

func (h *LeaderboardHandler) local(clientID string) app.LocalSource {
	if clientID == "" {
		return nil
	}
	// read only; the device is not retained past the request
	return h.service.Device(clientID)
}

func (h *LeaderboardHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", zap.Error(err))
	}
}
