package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableside/api/internal/enum"
	mw "github.com/tableside/api/internal/middleware"
	"github.com/tableside/api/internal/model"
)

// SystemServicer reads and changes the order gate.
// Satisfied by *service.SystemService.
type SystemServicer interface {
	Status() model.SystemStatus
	SetStatus(ctx context.Context, enabled bool, reason string, by uuid.UUID) (model.SystemStatus, error)
}

// SystemHandler handles the system status endpoints.
type SystemHandler struct {
	svc SystemServicer
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(svc SystemServicer) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// RegisterRoutes registers system endpoints. Expected to be mounted at
// /system. Writes need the ADMIN role.
func (h *SystemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.Get)
	r.With(mw.RequireRole(enum.UserRoleAdmin)).Put("/status", h.Put)
}

type systemStatusRequest struct {
	OrdersEnabled *bool  `json:"orders_enabled"`
	Reason        string `json:"reason"`
}

func (h *SystemHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *SystemHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req systemStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrdersEnabled == nil {
		badRequest(w, r, "orders_enabled is required")
		return
	}

	st, err := h.svc.SetStatus(r.Context(), *req.OrdersEnabled, req.Reason, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
