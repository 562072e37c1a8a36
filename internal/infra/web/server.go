// Package web serves the operator-facing admin API: password login
// exchanged for a JWT session, then read access to recent run records.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain/ports/repository"
)

type Server struct {
	runs     repository.RunRepository
	auth     *AuthManager
	password string
	log      *zerolog.Logger
}

func NewServer(runs repository.RunRepository, auth *AuthManager, password string, logger *zerolog.Logger) *Server {
	return &Server{runs: runs, auth: auth, password: password, log: logger}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/login", s.handleLogin)
	r.Post("/api/v1/logout", s.handleLogout)
	r.With(s.requireAdmin).Get("/api/v1/runs", s.handleRuns)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.password == "" {
		s.log.Error().Msg("admin password is not configured")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != s.password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "run history is not enabled", http.StatusNotFound)
		return
	}

	records, err := s.runs.Recent(r.Context(), 100)
	if err != nil {
		s.log.Error().Err(err).Msg("list runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"runs": records})
}
