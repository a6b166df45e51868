package api

import (
	"net/http"

	"askai/internal/domain"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.gateway.CreateUser(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.WithContext("user_id", user.ID).Info("user registered")
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.gateway.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLogout drains the user's pending writes before forgetting them
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	s.workspaces.Close(id)

	if err := s.settings.Forget(r.Context(), id); err != nil {
		s.logger.WithContext("error", err.Error()).Warn("failed to forget cached settings")
	}
	if err := s.gateway.Logout(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.gateway.GetUserByID(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
