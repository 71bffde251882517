package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/internal/service"
)

// Handlers contains HTTP handler functions
type Handlers struct {
	service *service.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{service: svc}
}

// Health handles health check requests
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// PostEvent handles POST /v1/events - the trigger source
func (h *Handlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())

	var req struct {
		Event  string `json:"event"`
		Branch string `json:"branch"`
		Commit string `json:"commit"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.Warn("invalid request body", "error", err)
		}
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := models.TriggerKind(req.Event)
	if kind != models.TriggerPush && kind != models.TriggerPullRequest {
		respondError(w, r, http.StatusBadRequest, "event must be push or pull_request")
		return
	}
	if req.Branch == "" {
		respondError(w, r, http.StatusBadRequest, "branch is required")
		return
	}

	event := models.TriggerEvent{Kind: kind, Branch: req.Branch, Commit: req.Commit}
	run, err := h.service.HandleEvent(r.Context(), event)
	if err != nil {
		if errors.Is(err, service.ErrEventIgnored) {
			if logger != nil {
				logger.Info("event ignored", "event", req.Event, "branch", req.Branch)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ignored": true,
			})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	if logger != nil {
		logger.Info("run accepted",
			"event", req.Event,
			"branch", req.Branch,
			"run_id", run.RunID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run": run,
	})
}

// ListRuns handles GET /v1/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.service.ListRuns(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs": runs,
	})
}

// GetRun handles GET /v1/runs/{run_id} - the full per-job, per-step detail
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())
	runID := chi.URLParam(r, "run_id")

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if logger != nil {
		logger.Debug("run retrieved", "run_id", runID, "status", run.Status)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run": run,
	})
}

// GetPipeline handles GET /v1/pipeline - the loaded definition
func (h *Handlers) GetPipeline(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pipeline": h.service.Pipeline(),
	})
}

// CancelRun handles POST /v1/runs/{run_id}/cancel
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())
	runID := chi.URLParam(r, "run_id")

	if err := h.service.CancelRun(r.Context(), runID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if logger != nil {
		logger.Info("run canceled", "run_id", runID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondError writes a JSON error response with logging
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logger := GetLogger(r.Context())
	requestID := GetRequestID(r.Context())

	if logger != nil {
		logger.Error("returning error response",
			"status", status,
			"message", message,
			"request_id", requestID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message":    message,
			"code":       status,
			"request_id": requestID,
		},
	})
}

// handleServiceError maps service errors to HTTP responses with logging
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := GetLogger(r.Context())
	requestID := GetRequestID(r.Context())

	if logger != nil {
		logger.Error("service error occurred",
			"error", err.Error(),
			"error_type", fmt.Sprintf("%T", err),
			"request_id", requestID)
	}

	switch {
	case errors.Is(err, service.ErrRunNotFound):
		respondError(w, r, http.StatusNotFound, "run not found")
	case errors.Is(err, service.ErrRunNotActive):
		respondError(w, r, http.StatusConflict, "run is not in flight")
	case models.IsConfigError(err):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
