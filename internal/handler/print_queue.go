package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/service"
)

// PrintServicer defines the print queue operations.
// Satisfied by *service.PrintService.
type PrintServicer interface {
	List(ctx context.Context, status string) ([]model.PrintQueueItem, error)
	Enqueue(ctx context.Context, req service.EnqueueRequest) (model.PrintQueueItem, error)
	MarkPrinted(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error)
	MarkError(ctx context.Context, id uuid.UUID, message string) (model.PrintQueueItem, error)
	Retry(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PrintQueueHandler serves print agents and the floor's reprint button.
type PrintQueueHandler struct {
	svc PrintServicer
}

// NewPrintQueueHandler creates a new PrintQueueHandler.
func NewPrintQueueHandler(svc PrintServicer) *PrintQueueHandler {
	return &PrintQueueHandler{svc: svc}
}

// RegisterRoutes registers print queue endpoints. Expected to be mounted at
// /print-queue.
func (h *PrintQueueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/all", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}/mark-printed", h.MarkPrinted)
	r.Put("/{id}/mark-error", h.MarkError)
	r.Put("/{id}/retry", h.Retry)
	r.Delete("/{id}", h.Delete)
}

type enqueueRequest struct {
	Type    enum.PrintType `json:"type"`
	TableID uuid.UUID      `json:"table_id"`
	Content string         `json:"content"`
	OrderID *uuid.UUID     `json:"order_id"`
	Fiscal  bool           `json:"fiscal"`
}

// List handles GET /print-queue/all?status=pending|printed|error.
func (h *PrintQueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.PrintQueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PrintQueueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.Enqueue(r.Context(), service.EnqueueRequest{
		Type:    req.Type,
		TableID: req.TableID,
		Content: req.Content,
		OrderID: req.OrderID,
		Fiscal:  req.Fiscal,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *PrintQueueHandler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.svc.MarkPrinted)
}

// MarkError handles PUT /print-queue/{id}/mark-error?error_message=.
func (h *PrintQueueHandler) MarkError(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("error_message")
	h.update(w, r, func(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error) {
		return h.svc.MarkError(ctx, id, msg)
	})
}

func (h *PrintQueueHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.svc.Retry)
}

func (h *PrintQueueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PrintQueueHandler) update(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (model.PrintQueueItem, error)) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	it, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
