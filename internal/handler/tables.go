package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/service"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	List(ctx context.Context, isClosed *bool) ([]model.Table, error)
	Get(ctx context.Context, id uuid.UUID) (model.Table, error)
	Open(ctx context.Context, req service.OpenTableRequest) (model.Table, error)
}

// CloseServicer defines the close-out methods needed by table handlers.
// Satisfied by *service.CloseService.
type CloseServicer interface {
	Preview(ctx context.Context, req service.CloseRequest) (model.BillClose, error)
	Close(ctx context.Context, req service.CloseRequest) (model.Table, error)
	InvoicePDF(ctx context.Context, tableID uuid.UUID) ([]byte, error)
}

// TableHandler handles table lifecycle and close-out endpoints.
type TableHandler struct {
	tables TableServicer
	closer CloseServicer
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(tables TableServicer, closer CloseServicer) *TableHandler {
	return &TableHandler{tables: tables, closer: closer}
}

// RegisterRoutes registers table endpoints. Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Open)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/bill", h.Bill)
	r.Put("/{id}/close", h.Close)
	r.Get("/{id}/invoice.pdf", h.Invoice)
}

// --- Request types ---

type openTableRequest struct {
	Name   string     `json:"name"`
	RoomID *uuid.UUID `json:"room_id"`
}

type closeTableRequest struct {
	ServiceTax      bool               `json:"service_tax"`
	GenerateInvoice bool               `json:"generate_invoice"`
	PaymentOption   enum.PaymentOption `json:"payment_option"`
	PaymentMethod   enum.PaymentMethod `json:"payment_method"`
	// Accepted for compatibility; the close-out always records the grand
	// total as paid with no change.
	AmountPaid *decimal.Decimal `json:"amount_paid"`
	Change     *decimal.Decimal `json:"change"`
}

// --- Handlers ---

// List handles GET /tables?is_closed=bool.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	isClosed, err := boolQuery(r, "is_closed")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tables, err := h.tables.List(r.Context(), isClosed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tables == nil {
		tables = []model.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *TableHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.tables.Open(r.Context(), service.OpenTableRequest{
		Name:      req.Name,
		RoomID:    req.RoomID,
		CreatedBy: userID(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	t, err := h.tables.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Bill handles GET /tables/{id}/bill?service_tax=&payment_option=&payment_method=.
// It computes the bill without closing the table.
func (h *TableHandler) Bill(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	tax := true
	if raw := q.Get("service_tax"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(w, r, "invalid service_tax")
			return
		}
		tax = v
	}
	method := enum.PaymentMethod(q.Get("payment_method"))
	if method == "" {
		method = enum.PaymentMethodCash
	}

	bill, err := h.closer.Preview(r.Context(), service.CloseRequest{
		TableID:            id,
		ServiceTaxIncluded: tax,
		PaymentOption:      enum.PaymentOption(q.Get("payment_option")),
		PaymentMethod:      method,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// Close handles PUT /tables/{id}/close.
func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req closeTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.closer.Close(r.Context(), service.CloseRequest{
		TableID:            id,
		ServiceTaxIncluded: req.ServiceTax,
		PaymentOption:      req.PaymentOption,
		PaymentMethod:      req.PaymentMethod,
		GenerateInvoice:    req.GenerateInvoice,
		ClosedBy:           userID(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.AmountPaid != nil && t.Bill != nil && !req.AmountPaid.Equal(t.Bill.AmountPaid) {
		log.Info().
			Str("table_id", id.String()).
			Str("client_amount_paid", req.AmountPaid.String()).
			Str("amount_paid", t.Bill.AmountPaid.String()).
			Msg("close: client amount_paid ignored")
	}
	writeJSON(w, http.StatusOK, t)
}

// Invoice handles GET /tables/{id}/invoice.pdf for closed tables.
func (h *TableHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	pdf, err := h.closer.InvoicePDF(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="invoice-`+id.String()+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Error().Err(err).Msg("write invoice pdf")
	}
}
