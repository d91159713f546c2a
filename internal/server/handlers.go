package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campusinsight/sheetsql"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	role, status := s.sessionRole(r)
	if status != http.StatusOK {
		respondError(w, status, http.StatusText(status))
		return
	}

	views := make([]string, 0)
	for _, name := range s.reporter.ListViews() {
		if s.allowed(role, name) {
			views = append(views, name)
		}
	}
	sort.Strings(views)
	respondJSON(w, http.StatusOK, map[string][]string{"reports": views})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	role, status := s.sessionRole(r)
	if status != http.StatusOK {
		respondError(w, status, http.StatusText(status))
		return
	}
	if !s.allowed(role, name) {
		respondError(w, http.StatusForbidden, "report not allowed for role")
		return
	}

	granularity, err := sheetsql.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "granularity must be day or month")
		return
	}

	result, err := s.reporter.Resolve(r.Context(), name, sheetsql.WithGranularity(granularity))
	if err != nil {
		if errors.Is(err, sheetsql.ErrUnknownView) || errors.Is(err, sheetsql.ErrInvalidIdentifier) {
			respondError(w, http.StatusNotFound, "unknown report: "+name)
			return
		}
		s.logger.Error("report failed",
			slog.String("report", name),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusInternalServerError, "report failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// sessionRole returns the caller's role. With no roles configured every
// caller passes.
func (s *Server) sessionRole(r *http.Request) (string, int) {
	if len(s.roles) == 0 {
		return "", http.StatusOK
	}
	session, err := s.sessionStore.Get(r, SessionName)
	if err != nil {
		return "", http.StatusUnauthorized
	}
	role, _ := session.Values[RoleKey].(string)
	if role == "" {
		return "", http.StatusUnauthorized
	}
	if _, ok := s.roles[role]; !ok {
		return "", http.StatusForbidden
	}
	return role, http.StatusOK
}

func (s *Server) allowed(role, name string) bool {
	if len(s.roles) == 0 {
		return true
	}
	reports := s.roles[role]
	return reports["*"] || reports[name]
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
