package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/dailyrun/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

type scheduleResponse struct {
	Spec     string     `json:"spec"`
	Timezone string     `json:"timezone"`
	Next     *time.Time `json:"next,omitempty"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	resp := scheduleResponse{
		Spec:     s.schedule.Spec(),
		Timezone: s.schedule.Timezone(),
	}
	if next := s.schedule.Next(); !next.IsZero() {
		resp.Next = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListLaunches(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{}

	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = storage.LaunchStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	launches, err := s.store.ListLaunches(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if launches == nil {
		launches = []storage.Launch{}
	}
	writeJSON(w, http.StatusOK, launches)
}

func (s *Server) handleGetLaunch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := s.store.GetLaunch(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "launch not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, l)
}
