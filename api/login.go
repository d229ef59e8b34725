package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rakugaki/rakugaki/login"
)

// ---------------------------------------------------------------------------
// POST /api/login
// ---------------------------------------------------------------------------

type registerRequest struct {
	Nickname string `json:"nickname"`
}

type registerResponse struct {
	UserID string `json:"userId"`
	Secret string `json:"secret"`
}

type registerError struct {
	Error string `json:"error"`
}

// handleLogin registers a user and hands back their credentials. The secret
// is shown exactly once; the client is expected to keep it.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, registerError{Error: "invalid JSON"})
		return
	}

	userID, secret, err := s.Logins.Register(request.Nickname)
	if errors.Is(err, login.ErrInvalidNickname) {
		writeJSON(w, http.StatusBadRequest, registerError{Error: err.Error()})
		return
	}
	if err != nil {
		log.Errorf("registration failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, registerError{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{UserID: userID, Secret: secret})
}
