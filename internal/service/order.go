package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/order"
	"github.com/tableside/api/internal/table"
	"github.com/tableside/api/internal/ws"
)

// OrderStore defines the DB methods needed by OrderService.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (model.Table, error)
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
	TakeStock(ctx context.Context, id uuid.UUID, n int64) (bool, error)
	ReturnStock(ctx context.Context, id uuid.UUID, n int64) error
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (model.Order, error)
	CreateOrderItem(ctx context.Context, it model.OrderItem) (model.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (model.Order, error)
	UpdateOrderItem(ctx context.Context, id uuid.UUID, quantity int32, comment string) error
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	SetOrderStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus, at time.Time) (model.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderGate blocks new orders while the system is closed for orders.
type OrderGate interface {
	CheckNewOrder() error
}

// CreateOrderRequest is the input for submitting a cart.
type CreateOrderRequest struct {
	TableID   uuid.UUID
	CreatedBy uuid.UUID
	Items     []model.CartLine
}

// OrderService persists the order lifecycle.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	gate     OrderGate
	notifier Notifier
	now      Clock
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, gate OrderGate, notifier Notifier, now Clock) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, gate: gate, notifier: orNop(notifier), now: orNow(now)}
}

// productLookup adapts a store to cart.StockSource.
type productLookup struct{ store OrderStore }

func (p productLookup) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	prod, err := p.store.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, notFound(err, "product")
	}
	return prod, nil
}

// CreateOrder submits a new pending order. Prices come from the current
// catalog. Stock is taken with a conditional update, so a race lost to
// another waiter surfaces as InsufficientStock and nothing is written.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	if err := s.gate.CheckNewOrder(); err != nil {
		return model.Order{}, err
	}
	if len(req.Items) == 0 {
		return model.Order{}, apierror.New(apierror.KindEmptyCart, "items are required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	t, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		return model.Order{}, notFound(err, "table")
	}
	if err := table.EnsureOpen(t); err != nil {
		return model.Order{}, err
	}

	lines, err := cart.Build(ctx, productLookup{store}, req.Items)
	if err != nil {
		return model.Order{}, err
	}

	var items []model.OrderItem
	for _, l := range lines {
		items = append(items, model.OrderItem{ProductID: l.ProductID, ProductName: l.ProductName, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Comment: l.Comment})
	}
	if err := s.applyStock(ctx, store, order.QuantityByProduct(items)); err != nil {
		return model.Order{}, err
	}

	o, err := store.CreateOrder(ctx, database.CreateOrderParams{TableID: t.ID, CreatedBy: req.CreatedBy})
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	for i, it := range items {
		it.OrderID = o.ID
		created, err := store.CreateOrderItem(ctx, it)
		if err != nil {
			return model.Order{}, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		o.Items = append(o.Items, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.Publish(ws.TopicFloor, EventTableUpdated, tableEvent{TableID: t.ID, OrderID: o.ID, Status: string(o.Status)})
	return o, nil
}

// UpdateItems applies items_actions to a pending order. Edits are never
// blocked by the order gate.
func (s *OrderService) UpdateItems(ctx context.Context, tableID, orderID uuid.UUID, actions []order.Action) (model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	o, err := s.lockOrder(ctx, store, tableID, orderID)
	if err != nil {
		return model.Order{}, err
	}

	actions = append([]order.Action(nil), actions...)
	lookup := productLookup{store}
	for i := range actions {
		if actions[i].Action != enum.ItemActionAdd {
			continue
		}
		p, err := lookup.GetProduct(ctx, actions[i].ProductID)
		if err != nil {
			return model.Order{}, fmt.Errorf("items_actions[%d]: %w", i, err)
		}
		if !p.IsActive {
			return model.Order{}, apierror.New(apierror.KindNotFound, "items_actions[%d]: product %s is not available", i, p.Name)
		}
		actions[i].ProductName = p.Name
		actions[i].UnitPrice = p.Price
	}

	next, err := order.Apply(o, actions)
	if err != nil {
		return model.Order{}, err
	}

	if err := s.applyStock(ctx, store, order.StockDelta(o.Items, next.Items)); err != nil {
		return model.Order{}, err
	}
	if err := persistItems(ctx, store, o.Items, next.Items); err != nil {
		return model.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.Publish(ws.TopicFloor, EventTableUpdated, tableEvent{TableID: tableID, OrderID: orderID, Status: string(next.Status)})
	return next, nil
}

// Finish moves a pending order to finished.
func (s *OrderService) Finish(ctx context.Context, tableID, orderID uuid.UUID) (model.Order, error) {
	return s.transition(ctx, tableID, orderID, order.Finish, false)
}

// Cancel moves a pending order to cancelled and returns its stock.
func (s *OrderService) Cancel(ctx context.Context, tableID, orderID uuid.UUID) (model.Order, error) {
	return s.transition(ctx, tableID, orderID, order.Cancel, true)
}

func (s *OrderService) transition(ctx context.Context, tableID, orderID uuid.UUID, apply func(*model.Order, time.Time) error, restock bool) (model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	o, err := s.lockOrder(ctx, store, tableID, orderID)
	if err != nil {
		return model.Order{}, err
	}
	at := s.now()
	if err := apply(&o, at); err != nil {
		return model.Order{}, err
	}

	if restock {
		if err := s.applyStock(ctx, store, order.StockDelta(o.Items, nil)); err != nil {
			return model.Order{}, err
		}
	}

	updated, err := store.SetOrderStatus(ctx, o.ID, o.Status, at)
	if err != nil {
		return model.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.Publish(ws.TopicFloor, EventTableUpdated, tableEvent{TableID: tableID, OrderID: orderID, Status: string(updated.Status)})
	return updated, nil
}

// lockOrder locks the owning table, then the order, so edits of one table
// are applied one at a time.
func (s *OrderService) lockOrder(ctx context.Context, store OrderStore, tableID, orderID uuid.UUID) (model.Order, error) {
	if _, err := store.GetTableForUpdate(ctx, tableID); err != nil {
		return model.Order{}, notFound(err, "table")
	}
	o, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return model.Order{}, notFound(err, "order")
	}
	if o.TableID != tableID {
		return model.Order{}, apierror.New(apierror.KindNotFound, "order not found")
	}
	return o, nil
}

// applyStock takes positive deltas from stock and returns negative ones.
// Products are visited in a fixed order so concurrent orders lock rows
// consistently.
func (s *OrderService) applyStock(ctx context.Context, store OrderStore, delta map[uuid.UUID]int64) error {
	ids := make([]uuid.UUID, 0, len(delta))
	for id := range delta {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		n := delta[id]
		switch {
		case n > 0:
			ok, err := store.TakeStock(ctx, id, n)
			if err != nil {
				return fmt.Errorf("take stock: %w", err)
			}
			if !ok {
				name := id.String()
				if p, err := store.GetProduct(ctx, id); err == nil {
					name = p.Name
				}
				return apierror.New(apierror.KindInsufficientStock, "not enough stock for %s", name)
			}
		case n < 0:
			if err := store.ReturnStock(ctx, id, -n); err != nil {
				return fmt.Errorf("return stock: %w", err)
			}
		}
	}
	return nil
}

// persistItems writes the difference between two item lists.
func persistItems(ctx context.Context, store OrderStore, before, after []model.OrderItem) error {
	old := make(map[uuid.UUID]model.OrderItem, len(before))
	for _, it := range before {
		old[it.ID] = it
	}
	kept := make(map[uuid.UUID]bool, len(after))
	for _, it := range after {
		kept[it.ID] = true
		prev, ok := old[it.ID]
		switch {
		case !ok:
			if _, err := store.CreateOrderItem(ctx, it); err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		case prev.Quantity != it.Quantity || prev.Comment != it.Comment:
			if err := store.UpdateOrderItem(ctx, it.ID, it.Quantity, it.Comment); err != nil {
				return fmt.Errorf("update order item: %w", err)
			}
		}
	}
	for _, it := range before {
		if !kept[it.ID] {
			if err := store.DeleteOrderItem(ctx, it.ID); err != nil {
				return fmt.Errorf("delete order item: %w", err)
			}
		}
	}
	return nil
}

// tableEvent is the payload of table.updated events.
type tableEvent struct {
	TableID uuid.UUID `json:"table_id"`
	OrderID uuid.UUID `json:"order_id"`
	Status  string    `json:"status,omitempty"`
}
