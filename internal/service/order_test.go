package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/gate"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/order"
)

// newTestOrderService creates an OrderService backed by store.
func newTestOrderService(store *memStore, g *gate.Gate) (*OrderService, *mockTxBeginner, *recordingNotifier) {
	pool := &mockTxBeginner{store: store}
	newStore := func(db database.DBTX) OrderStore { return store }
	n := &recordingNotifier{}
	if g == nil {
		g = gate.Open()
	}
	return NewOrderService(pool, newStore, g, n, func() time.Time { return store.now }), pool, n
}

func lineOf(p model.Product, qty int32, comment string) model.CartLine {
	return model.CartLine{ProductID: p.ID, Quantity: qty, Comment: comment}
}

// =====================
// CreateOrder
// =====================

func TestCreateOrder_HappyPath(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(5))
	soda := store.addProduct("Soda", "5.00", nil)
	tbl := store.addTable("12", nil)
	svc, _, n := newTestOrderService(store, nil)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:   tbl.ID,
		CreatedBy: uuid.New(),
		Items:     []model.CartLine{lineOf(burger, 2, ""), lineOf(soda, 1, "no ice")},
	})
	require.NoError(t, err)

	assert.Equal(t, enum.OrderStatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.True(t, decimal.RequireFromString("25.00").Equal(o.TotalAmount()))
	assert.Equal(t, int32(3), *store.stockOf(burger.ID))
	assert.Nil(t, store.stockOf(soda.ID))
	assert.Equal(t, []string{"floor:table.updated"}, n.types())
}

func TestCreateOrder_UsesCatalogPrice(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Burger", "10.00", nil)
	tbl := store.addTable("1", nil)
	svc, _, _ := newTestOrderService(store, nil)

	line := lineOf(p, 1, "")
	line.UnitPrice = decimal.RequireFromString("0.01")
	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID, Items: []model.CartLine{line}})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Items[0].UnitPrice))
}

func TestCreateOrder_OrdersDisabled(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Burger", "10.00", stock(5))
	tbl := store.addTable("1", nil)
	g := gate.New(model.SystemStatus{OrdersEnabled: false, Reason: "kitchen closed", Version: 2})
	svc, pool, _ := newTestOrderService(store, g)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID, Items: []model.CartLine{lineOf(p, 1, "")}})
	assert.True(t, errors.Is(err, apierror.ErrOrdersDisabled))
	assert.Zero(t, pool.begun)
	assert.Empty(t, store.orders)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	store := newMemStore()
	tbl := store.addTable("1", nil)
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID})
	assert.True(t, errors.Is(err, apierror.ErrEmptyCart))
}

func TestCreateOrder_ClosedTable(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Burger", "10.00", nil)
	tbl := store.addTable("1", nil)
	store.tables[0].IsClosed = true
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID, Items: []model.CartLine{lineOf(p, 1, "")}})
	assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
}

func TestCreateOrder_TableNotFound(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Burger", "10.00", nil)
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: uuid.New(), Items: []model.CartLine{lineOf(p, 1, "")}})
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

func TestCreateOrder_MergedQuantityOverflow(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Water", "3.50", nil)
	tbl := store.addTable("1", nil)
	svc, _, n := newTestOrderService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID: tbl.ID,
		Items:   []model.CartLine{lineOf(p, math.MaxInt32, ""), lineOf(p, 1, "")},
	})
	require.True(t, errors.Is(err, apierror.ErrInvalidQuantity))
	assert.Empty(t, store.orders)
	assert.Empty(t, n.events)
}

func TestCreateOrder_InsufficientStockWritesNothing(t *testing.T) {
	store := newMemStore()
	a := store.addProduct("A", "1.00", stock(10))
	b := store.addProduct("B", "1.00", stock(1))
	tbl := store.addTable("1", nil)
	svc, _, n := newTestOrderService(store, nil)

	// Lines for the same product are merged before the stock check.
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID: tbl.ID,
		Items:   []model.CartLine{lineOf(a, 3, ""), lineOf(b, 1, ""), lineOf(b, 1, "")},
	})
	require.True(t, errors.Is(err, apierror.ErrInsufficientStock))
	assert.Equal(t, int32(10), *store.stockOf(a.ID))
	assert.Equal(t, int32(1), *store.stockOf(b.ID))
	assert.Empty(t, store.orders)
	assert.Empty(t, n.events)
}

func TestCreateOrder_LostStockRace(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Pie", "4.00", stock(2))
	tbl := store.addTable("1", nil)
	svc, _, _ := newTestOrderService(store, nil)

	// Two waiters both saw two pies available.
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID, Items: []model.CartLine{lineOf(p, 2, "")}})
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID, Items: []model.CartLine{lineOf(p, 2, "")}})
	assert.True(t, errors.Is(err, apierror.ErrInsufficientStock))
	assert.Equal(t, int32(0), *store.stockOf(p.ID))
	assert.Len(t, store.orders, 1)
}

func TestCreateOrder_ItemFailureRollsBack(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Pie", "4.00", stock(2))
	tbl := store.addTable("1", nil)
	store.fail["CreateOrderItem"] = errors.New("connection reset")
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: tbl.ID, Items: []model.CartLine{lineOf(p, 1, "")}})
	require.Error(t, err)
	assert.Equal(t, apierror.KindInternal, apierror.KindOf(err))
	assert.Equal(t, int32(2), *store.stockOf(p.ID))
	assert.Empty(t, store.orders)
}

// =====================
// UpdateItems
// =====================

func TestUpdateItems_AddUpdateRemove(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(5))
	fries := store.addProduct("Fries", "3.00", stock(5))
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1), itemOf(fries, 2))
	svc, _, n := newTestOrderService(store, nil)

	next, err := svc.UpdateItems(context.Background(), tbl.ID, o.ID, []order.Action{
		{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 3},
		{Action: enum.ItemActionRemove, ItemID: o.Items[1].ID},
		{Action: enum.ItemActionAdd, ProductID: fries.ID, Quantity: 1, Comment: "extra salt"},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("33.00").Equal(next.TotalAmount()))

	stored, _ := store.GetOrderForUpdate(context.Background(), o.ID)
	assert.Len(t, stored.Items, 2)
	assert.True(t, next.TotalAmount().Equal(stored.TotalAmount()))
	// Burger +2 taken; fries -2 returned, +1 taken.
	assert.Equal(t, int32(3), *store.stockOf(burger.ID))
	assert.Equal(t, int32(6), *store.stockOf(fries.ID))
	assert.Equal(t, []string{"floor:table.updated"}, n.types())
}

func TestUpdateItems_AllOrNothing(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(5))
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1))
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.UpdateItems(context.Background(), tbl.ID, o.ID, []order.Action{
		{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 2},
		{Action: enum.ItemActionRemove, ItemID: uuid.New()},
	})
	assert.True(t, errors.Is(err, apierror.ErrNotFound))

	stored, _ := store.GetOrderForUpdate(context.Background(), o.ID)
	assert.Equal(t, int32(1), stored.Items[0].Quantity)
	assert.Equal(t, int32(5), *store.stockOf(burger.ID))
}

func TestUpdateItems_StockExceeded(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(1))
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1))
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.UpdateItems(context.Background(), tbl.ID, o.ID, []order.Action{
		{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 3},
	})
	assert.True(t, errors.Is(err, apierror.ErrInsufficientStock))
	assert.Equal(t, int32(1), *store.stockOf(burger.ID))
}

func TestUpdateItems_NotPending(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", nil)
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusFinished, itemOf(burger, 1))
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.UpdateItems(context.Background(), tbl.ID, o.ID, []order.Action{
		{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 2},
	})
	assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
}

func TestUpdateItems_NotBlockedByGate(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", nil)
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1))
	g := gate.New(model.SystemStatus{OrdersEnabled: false, Reason: "inventory", Version: 2})
	svc, _, _ := newTestOrderService(store, g)

	_, err := svc.UpdateItems(context.Background(), tbl.ID, o.ID, []order.Action{
		{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 2},
	})
	assert.NoError(t, err)
}

func TestUpdateItems_WrongTable(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", nil)
	t1 := store.addTable("1", nil)
	t2 := store.addTable("2", nil)
	o := store.addOrder(t1.ID, enum.OrderStatusPending, itemOf(burger, 1))
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.UpdateItems(context.Background(), t2.ID, o.ID, []order.Action{
		{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 2},
	})
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

func TestUpdateItems_InactiveProduct(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", nil)
	retired := store.addProduct("Old special", "8.00", nil)
	retired.IsActive = false
	store.products[retired.ID] = retired
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1))
	svc, _, _ := newTestOrderService(store, nil)

	_, err := svc.UpdateItems(context.Background(), tbl.ID, o.ID, []order.Action{
		{Action: enum.ItemActionAdd, ProductID: retired.ID, Quantity: 1},
	})
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
}

// =====================
// Finish / Cancel
// =====================

func TestFinish(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(4))
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1))
	svc, _, n := newTestOrderService(store, nil)

	done, err := svc.Finish(context.Background(), tbl.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusFinished, done.Status)
	require.NotNil(t, done.FinishedAt)
	assert.Equal(t, store.now, *done.FinishedAt)
	assert.Equal(t, int32(4), *store.stockOf(burger.ID))
	assert.Len(t, n.events, 1)

	_, err = svc.Finish(context.Background(), tbl.ID, o.ID)
	assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
	_, err = svc.Cancel(context.Background(), tbl.ID, o.ID)
	assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
}

func TestCancel_ReturnsStock(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(4))
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 2))
	svc, _, _ := newTestOrderService(store, nil)

	done, err := svc.Cancel(context.Background(), tbl.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCancelled, done.Status)
	assert.NotNil(t, done.CancelledAt)
	assert.Equal(t, int32(6), *store.stockOf(burger.ID))
}

func TestCancel_StatusWriteFailureKeepsStock(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", stock(4))
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 2))
	store.fail["SetOrderStatus"] = errors.New("deadlock detected")
	svc, _, n := newTestOrderService(store, nil)

	_, err := svc.Cancel(context.Background(), tbl.ID, o.ID)
	require.Error(t, err)
	assert.Equal(t, int32(4), *store.stockOf(burger.ID))
	assert.Equal(t, enum.OrderStatusPending, store.orders[0].Status)
	assert.Empty(t, n.events)
}

func TestCommitFailure(t *testing.T) {
	store := newMemStore()
	burger := store.addProduct("Burger", "10.00", nil)
	tbl := store.addTable("1", nil)
	o := store.addOrder(tbl.ID, enum.OrderStatusPending, itemOf(burger, 1))
	svc, pool, n := newTestOrderService(store, nil)
	pool.commitErr = errors.New("commit failed")

	_, err := svc.Finish(context.Background(), tbl.ID, o.ID)
	require.Error(t, err)
	assert.Equal(t, enum.OrderStatusPending, store.orders[0].Status)
	assert.Empty(t, n.events)
}
