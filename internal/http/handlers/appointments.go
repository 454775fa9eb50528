package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge/telemed-sync/internal/appointments"
	"github.com/carebridge/telemed-sync/internal/backend"
	appsync "github.com/carebridge/telemed-sync/internal/sync"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

// AppointmentsHandler exposes the sync subsystem to the UI layer.
type AppointmentsHandler struct {
	engine *appsync.Engine
	logger *logging.Logger
}

// NewAppointmentsHandler creates the handler.
func NewAppointmentsHandler(engine *appsync.Engine, logger *logging.Logger) *AppointmentsHandler {
	if engine == nil {
		panic("handlers: sync engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{engine: engine, logger: logger}
}

// ListResponse is the response for listing appointments.
type ListResponse struct {
	Appointments []appointments.Appointment `json:"appointments"`
	Count        int                        `json:"count"`
	Offline      bool                       `json:"offline"`
	PendingSyncs bool                       `json:"pendingSyncs"`
}

// List handles GET /appointments requests. Queued local intents overlay
// the cached server state, so the response never regresses a change the
// user already made.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	appts := h.engine.List()
	resp := ListResponse{
		Appointments: appts,
		Count:        len(appts),
		Offline:      h.engine.IsOffline(),
		PendingSyncs: h.engine.HasPendingSyncs(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type updateStatusRequest struct {
	Status appointments.Status `json:"status"`
}

// UpdateStatusResponse reports how a mutation was satisfied.
type UpdateStatusResponse struct {
	Outcome     appsync.Outcome           `json:"outcome"`
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
	Offline     bool                      `json:"offline"`
}

// UpdateStatus handles PATCH /appointments/{id} requests. Connectivity
// and endpoint failures are soft: the change is queued, the response says
// so, and the client shows a "will sync later" notice.
func (h *AppointmentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing appointment id", http.StatusBadRequest)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode status change request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.engine.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case backend.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case backend.IsAuthExpired(err):
			http.Error(w, "session expired, sign in again", http.StatusUnauthorized)
		default:
			h.logger.Error("status change failed", "appointment_id", id, "error", err)
			http.Error(w, "status change failed", http.StatusBadGateway)
		}
		return
	}

	resp := UpdateStatusResponse{Outcome: outcome, Offline: h.engine.IsOffline()}
	if appt, ok := h.engine.Get(id); ok {
		resp.Appointment = &appt
	}
	w.Header().Set("Content-Type", "application/json")
	if outcome == appsync.OutcomeQueued {
		w.WriteHeader(http.StatusAccepted)
	}
	json.NewEncoder(w).Encode(resp)
}

// SyncResponse is the response for a manual sync trigger.
type SyncResponse struct {
	Status    string `json:"status"`
	Drained   int    `json:"drained"`
	Remaining int    `json:"remaining"`
}

// TriggerSync handles POST /sync requests.
func (h *AppointmentsHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result := h.engine.TriggerManualSync(r.Context())
	resp := SyncResponse{Drained: result.Drained, Remaining: result.Remaining}
	switch {
	case !result.Ran:
		resp.Status = "already_running"
	case result.Err != nil:
		resp.Status = "partial"
	default:
		resp.Status = "complete"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Health handles GET /health requests.
func (h *AppointmentsHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"offline": h.engine.IsOffline(),
	})
}
