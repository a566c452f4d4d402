package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/order"
	"github.com/tableside/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (model.Order, error)
	UpdateItems(ctx context.Context, tableID, orderID uuid.UUID, actions []order.Action) (model.Order, error)
	Finish(ctx context.Context, tableID, orderID uuid.UUID) (model.Order, error)
	Cancel(ctx context.Context, tableID, orderID uuid.UUID) (model.Order, error)
}

// OrderLister returns a table's orders. Satisfied by *service.TableService.
type OrderLister interface {
	Orders(ctx context.Context, tableID uuid.UUID) ([]model.Order, error)
}

// OrderHandler handles order endpoints of one table.
type OrderHandler struct {
	svc    OrderServicer
	lister OrderLister
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, lister OrderLister) *OrderHandler {
	return &OrderHandler{svc: svc, lister: lister}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a table-scoped subrouter: /tables/{id}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{orderId}", h.UpdateItems)
	r.Put("/{orderId}/finish", h.Finish)
	r.Delete("/{orderId}", h.Cancel)
}

// --- Request types ---

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Comment   string    `json:"comment"`
}

type updateOrderRequest struct {
	ItemsActions []order.Action `json:"items_actions"`
}

// --- Handlers ---

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	orders, err := h.lister.Orders(r.Context(), tableID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// Create submits a cart as a new pending order. Unit prices are taken from
// the catalog, not from the request.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, r, apierror.New(apierror.KindEmptyCart, "items are required"))
		return
	}

	lines := make([]model.CartLine, 0, len(req.Items))
	for i, it := range req.Items {
		if it.ProductID == uuid.Nil {
			badRequest(w, r, "items[%d]: product_id is required", i)
			return
		}
		lines = append(lines, model.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, Comment: it.Comment})
	}

	o, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableID:   tableID,
		CreatedBy: userID(r),
		Items:     lines,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// UpdateItems handles PUT /tables/{id}/orders/{orderId} with items_actions.
func (h *OrderHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}
	var req updateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.svc.UpdateItems(r.Context(), tableID, orderID, req.ItemsActions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Finish)
}

// Cancel handles DELETE /tables/{id}/orders/{orderId}. The order is kept
// as cancelled, not deleted.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, uuid.UUID) (model.Order, error)) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}
	o, err := fn(r.Context(), tableID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
