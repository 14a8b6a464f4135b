// Package api exposes HTTP handlers for the workout cache.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"example.com/workoutcache/internal/domain"
)

const (
	defaultRoutineWorkoutLimit = 10
	maxBlobBytes               = 4 << 20
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{collection}", h.listCollection)
	mux.HandleFunc("GET /api/{collection}/refresh", h.refreshCollection)
	mux.HandleFunc("POST /api/{collection}/refresh", h.refreshCollection)
	mux.HandleFunc("GET /api/{collection}/{id}", h.getRecord)
	mux.HandleFunc("GET /api/routines/{id}/workouts", h.routineWorkouts)
	mux.HandleFunc("GET /api/routines/{id}/exercises", h.routineExercises)
	mux.HandleFunc("GET /api/exercises/by-type/{title}", h.exercisesByType)
	mux.HandleFunc("GET /api/personal_records", h.getPersonalRecords)
	mux.HandleFunc("PUT /api/personal_records", h.putPersonalRecords)
	mux.HandleFunc("POST /api/personal_records", h.putPersonalRecords)
	mux.HandleFunc("GET /api/sync/status", h.syncStatus)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := syncedCollection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Read(r.Context(), c))
}

func (h *Handler) refreshCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := syncedCollection(w, r)
	if !ok {
		return
	}

	result, err := h.service.Sync(r.Context(), c)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			writeJSON(w, http.StatusBadGateway, RefreshResponse{
				SyncResult: result,
				Message:    "upstream unavailable, cache left unchanged: " + err.Error(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		SyncResult: result,
		Message:    string(c) + " cache refreshed",
	})
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := syncedCollection(w, r)
	if !ok {
		return
	}

	record, err := h.service.ReadOne(r.Context(), c, r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) routineWorkouts(w http.ResponseWriter, r *http.Request) {
	limit := defaultRoutineWorkoutLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	workouts := h.service.RoutineWorkouts(r.Context(), r.PathValue("id"), limit)
	writeJSON(w, http.StatusOK, RoutineWorkoutsResponse{Workouts: workouts})
}

func (h *Handler) routineExercises(w http.ResponseWriter, r *http.Request) {
	titles, err := h.service.RoutineExerciseTitles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (h *Handler) exercisesByType(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ExercisesByTitle(r.Context(), r.PathValue("title")))
}

func (h *Handler) getPersonalRecords(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.LoadBlob(r.Context(), string(domain.CollectionPersonalRecords))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) putPersonalRecords(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	if err := h.service.SaveBlob(r.Context(), string(domain.CollectionPersonalRecords), body); err != nil {
		if errors.Is(err, domain.ErrInvalidBlob) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SyncStatusResponse{Collections: h.service.LastResults()})
}

// RefreshResponse is returned by the refresh endpoints.
type RefreshResponse struct {
	domain.SyncResult
	Message string `json:"message"`
}

// RoutineWorkoutsResponse wraps the workouts of a routine.
type RoutineWorkoutsResponse struct {
	Workouts []domain.Record `json:"workouts"`
}

// SyncStatusResponse lists the last sync result per collection.
type SyncStatusResponse struct {
	Collections []domain.SyncResult `json:"collections"`
}

func syncedCollection(w http.ResponseWriter, r *http.Request) (domain.Collection, bool) {
	c, err := domain.ParseCollection(r.PathValue("collection"))
	if err != nil || !c.Synced() {
		writeError(w, http.StatusNotFound, "not_found", "unknown collection")
		return "", false
	}
	return c, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrUnknownCollection):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
