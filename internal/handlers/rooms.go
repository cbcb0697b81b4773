// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/stranded/internal/middleware"
)

// createRoomResponse is the body of POST /rooms.
type createRoomResponse struct {
	Code string `json:"code"`
}

// CreateRoomHandler hands out a fresh unused code. The room itself is created
// by the first join.
func (s *RoomServer) CreateRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, createRoomResponse{Code: s.Store.NewCode()})
	}
}

// ListRoomsHandler returns a summary of every live room, for debugging.
func (s *RoomServer) ListRoomsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Store.Summaries())
	}
}

// HealthHandler reports liveness for load balancers.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Routes builds the full HTTP surface, every route wrapped in request logging.
func (s *RoomServer) Routes() http.Handler {
	logged := middleware.LogMiddleware(s.Logger)

	mux := http.NewServeMux()
	mux.Handle("POST /rooms", logged(s.CreateRoomHandler()))
	mux.Handle("GET /rooms", logged(s.ListRoomsHandler()))
	mux.Handle("GET /ws", logged(s.RoomWSHandler()))
	mux.HandleFunc("GET /healthz", HealthHandler)
	return mux
}

// writeJSON encodes v with the given status. Encoding errors are ignored
// since the header is already written.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
