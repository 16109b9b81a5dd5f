package proxyserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pedro9bee/tokentap/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mongoOK := s.store.HealthCheck(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"mongo_ok": mongoOK,
	})
}

func parseFilters(r *http.Request) store.Filters {
	q := r.URL.Query()
	f := store.Filters{
		Provider:    q.Get("provider"),
		Model:       q.Get("model"),
		DeviceID:    q.Get("device_id"),
		Program:     q.Get("program"),
		Project:     q.Get("project"),
		CaptureMode: q.Get("capture_mode"),
	}
	if raw := q.Get("is_token_consuming"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			f.IsTokenConsuming = &v
		}
	}
	if from := q.Get("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			f.DateFrom = t
		}
	}
	if to := q.Get("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			f.DateTo = t
		}
	}
	return f
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)

	skip := int64(0)
	if v, err := strconv.ParseInt(r.URL.Query().Get("skip"), 10, 64); err == nil && v >= 0 {
		skip = v
	}

	limit := int64(50)
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil {
		if v < 1 {
			v = 1
		}
		if v > 200 {
			v = 200
		}
		limit = v
	}

	events, total, err := s.store.QueryEvents(r.Context(), filters, skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"skip":   skip,
		"limit":  limit,
	})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleDeleteAllEvents(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.DeleteAllEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.AggregateUsage(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStatsByModel(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.UsageByModel(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStatsByProgram(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.UsageByProgram(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStatsByProject(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.UsageByProject(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStatsByDevice(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.UsageByDevice(r.Context(), parseFilters(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStatsOverTime(w http.ResponseWriter, r *http.Request) {
	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = "day"
	}
	rows, err := s.store.UsageOverTime(r.Context(), parseFilters(r), granularity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.RenameDevice(r.Context(), id, body.Name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteDevice(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
