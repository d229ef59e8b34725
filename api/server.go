// Package api exposes the HTTP surface: user registration and the wall
// WebSocket protocol.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/tliron/commonlog"

	"github.com/rakugaki/rakugaki/config"
	"github.com/rakugaki/rakugaki/login"
	"github.com/rakugaki/rakugaki/wall"
)

var log = commonlog.GetLogger("api")

// Server wires the stores and walls into HTTP handlers.
type Server struct {
	Config *config.Config
	Logins *login.Store
	Hub    *wall.Hub
}

// Router returns the server's routes.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("/api/wall", s.handleWall)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("writing response: %v", err)
	}
}
