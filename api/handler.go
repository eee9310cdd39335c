// Package api exposes the scheduling engine over HTTP: a synchronous
// endpoint for small runs, an asynchronous task endpoint for large ones, and
// a poll endpoint for task results.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ambuplan/core/logger"
	"ambuplan/core/model"
	"ambuplan/core/scheduler"
	coretasks "ambuplan/core/tasks"
)

// Service is the application facade the handlers call into.
type Service interface {
	RunSchedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking, alg scheduler.Algorithm, cfg scheduler.Config) (*model.Schedule, error)
	SubmitSchedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking, alg scheduler.Algorithm, cfg scheduler.Config) (coretasks.Task, error)
	Task(ctx context.Context, id string) (coretasks.Task, error)
}

// Handler serves the scheduling API.
type Handler struct {
	svc  Service
	base scheduler.Config
	log  logger.Logger
}

// NewHandler builds the API handler. base supplies the run configuration
// defaults that requests may override.
func NewHandler(svc Service, base scheduler.Config, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop{}
	}
	base.SetDefaults()
	return &Handler{svc: svc, base: base, log: log}
}

// Router returns the mux with all API routes registered.
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", h.handleSchedule)
	mux.HandleFunc("/api/schedule/async", h.handleScheduleAsync)
	mux.HandleFunc("/api/tasks/", h.handleTask)
	mux.HandleFunc("/healthz", handleHealth)
	return mux
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fleet, bookings, alg, cfg, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	schedule, err := h.svc.RunSchedule(r.Context(), fleet, bookings, alg, cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EncodeSchedule(schedule))
}

func (h *Handler) handleScheduleAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fleet, bookings, alg, cfg, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	task, err := h.svc.SubmitSchedule(r.Context(), fleet, bookings, alg, cfg)
	if err != nil {
		if errors.Is(err, coretasks.ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, Envelope{Status: "error", Message: "task queue is full, retry later"})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, CreateTaskResponse{TaskID: task.ID, TaskStatus: string(task.Status)})
}

func (h *Handler) handleTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "task id is required", http.StatusBadRequest)
		return
	}
	task, err := h.svc.Task(r.Context(), id)
	if errors.Is(err, coretasks.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, Envelope{Status: "error", Message: "task not found"})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto := TaskDTO{TaskID: task.ID, TaskStatus: string(task.Status), CreatedAt: task.CreatedAt}
	if task.Result != nil {
		res := EncodeSchedule(task.Result)
		dto.Result = &res
	}
	env := Envelope{Status: "success", Data: dto}
	if task.Status == coretasks.StatusFailed {
		env.Status = "error"
		env.Message = task.Error
	}
	writeJSON(w, http.StatusOK, env)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request) ([]model.Vehicle, []model.Booking, scheduler.Algorithm, scheduler.Config, bool) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Status: "error", Message: "invalid request body: " + err.Error()})
		return nil, nil, "", scheduler.Config{}, false
	}
	fleet, bookings, alg, cfg, err := req.Decode(h.base)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Status: "error", Message: err.Error()})
		return nil, nil, "", scheduler.Config{}, false
	}
	return fleet, bookings, alg, cfg, true
}

// writeError maps domain errors onto HTTP statuses. Input problems are the
// caller's fault; anything else, including validator-caught invariant
// violations, is a server error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *scheduler.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, Envelope{Status: "error", Message: verr.Error()})
		return
	}
	h.log.Errorf("schedule request failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, Envelope{Status: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
