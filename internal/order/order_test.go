package order

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

func pendingOrder(items ...model.OrderItem) model.Order {
	o := model.Order{ID: uuid.New(), TableID: uuid.New(), Status: enum.OrderStatusPending}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.OrderID = o.ID
		o.Items = append(o.Items, it)
	}
	return o
}

func item(price string, qty int32) model.OrderItem {
	return model.OrderItem{ProductID: uuid.New(), Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to enum.OrderStatus
		ok       bool
	}{
		{enum.OrderStatusPending, enum.OrderStatusFinished, true},
		{enum.OrderStatusPending, enum.OrderStatusCancelled, true},
		{enum.OrderStatusPending, enum.OrderStatusPending, false},
		{enum.OrderStatusFinished, enum.OrderStatusCancelled, false},
		{enum.OrderStatusFinished, enum.OrderStatusPending, false},
		{enum.OrderStatusCancelled, enum.OrderStatusFinished, false},
		{enum.OrderStatusCancelled, enum.OrderStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
			}
		})
	}
}

func TestFinish(t *testing.T) {
	o := pendingOrder(item("10.00", 1))
	at := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, Finish(&o, at))
	assert.Equal(t, enum.OrderStatusFinished, o.Status)
	require.NotNil(t, o.FinishedAt)
	assert.Equal(t, at, *o.FinishedAt)
}

func TestTerminalStatesAbsorb(t *testing.T) {
	at := time.Now()
	for _, terminal := range []func(*model.Order, time.Time) error{Finish, Cancel} {
		o := pendingOrder(item("4.00", 2))
		require.NoError(t, terminal(&o, at))
		status := o.Status

		assert.True(t, errors.Is(Finish(&o, at), apierror.ErrInvalidTransition))
		assert.True(t, errors.Is(Cancel(&o, at), apierror.ErrInvalidTransition))
		assert.True(t, errors.Is(AddItem(&o, item("1.00", 1)), apierror.ErrInvalidTransition))
		assert.True(t, errors.Is(UpdateItem(&o, o.Items[0].ID, 5, ""), apierror.ErrInvalidTransition))
		assert.True(t, errors.Is(RemoveItem(&o, o.Items[0].ID), apierror.ErrInvalidTransition))
		assert.Equal(t, status, o.Status)
		assert.Len(t, o.Items, 1)
	}
}

func TestCancelledNotBillable(t *testing.T) {
	o := pendingOrder(item("9.90", 1))
	assert.True(t, Billable(o))
	require.NoError(t, Cancel(&o, time.Now()))
	assert.False(t, Billable(o))
	assert.NotNil(t, o.CancelledAt)
}

func TestItemEditsRecomputeTotals(t *testing.T) {
	a := item("10.00", 2)
	o := pendingOrder(a)
	assert.Equal(t, "20.00", o.TotalAmount().StringFixed(2))

	require.NoError(t, AddItem(&o, item("5.00", 1)))
	assert.Equal(t, "25.00", o.TotalAmount().StringFixed(2))
	assert.Equal(t, int32(3), o.TotalItems())
	assert.NotEqual(t, uuid.Nil, o.Items[1].ID)
	assert.Equal(t, o.ID, o.Items[1].OrderID)

	require.NoError(t, UpdateItem(&o, o.Items[0].ID, 1, " less salt "))
	assert.Equal(t, "15.00", o.TotalAmount().StringFixed(2))
	assert.Equal(t, "less salt", o.Items[0].Comment)

	require.NoError(t, RemoveItem(&o, o.Items[1].ID))
	assert.Equal(t, "10.00", o.TotalAmount().StringFixed(2))
	assert.Equal(t, int32(1), o.TotalItems())
}

func TestItemEditValidation(t *testing.T) {
	o := pendingOrder(item("3.00", 1))

	assert.True(t, errors.Is(AddItem(&o, item("1.00", 0)), apierror.ErrInvalidQuantity))
	assert.True(t, errors.Is(UpdateItem(&o, o.Items[0].ID, 0, ""), apierror.ErrInvalidQuantity))
	assert.True(t, errors.Is(UpdateItem(&o, uuid.New(), 1, ""), apierror.ErrNotFound))
	assert.True(t, errors.Is(RemoveItem(&o, uuid.New()), apierror.ErrNotFound))
	assert.True(t, errors.Is(RemoveItem(&o, o.Items[0].ID), apierror.ErrEmptyCart))
}

func TestApply_AllOrNothing(t *testing.T) {
	first := item("8.00", 1)
	second := item("2.00", 3)
	o := pendingOrder(first, second)
	firstID, secondID := o.Items[0].ID, o.Items[1].ID

	_, err := Apply(o, []Action{
		{Action: enum.ItemActionUpdate, ItemID: firstID, Quantity: 4},
		{Action: enum.ItemActionRemove, ItemID: uuid.New()},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierror.ErrNotFound))
	assert.Contains(t, err.Error(), "items_actions[1]")
	assert.Equal(t, int32(1), o.Items[0].Quantity, "original left untouched")

	next, err := Apply(o, []Action{
		{Action: enum.ItemActionUpdate, ItemID: firstID, Quantity: 2},
		{Action: enum.ItemActionRemove, ItemID: secondID},
		{Action: enum.ItemActionAdd, ProductID: uuid.New(), UnitPrice: decimal.RequireFromString("1.50"), Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, next.Items, 2)
	assert.Equal(t, "19.00", next.TotalAmount().StringFixed(2))
	assert.Len(t, o.Items, 2)
	assert.Equal(t, secondID, o.Items[1].ID)
}

func TestApply_Invalid(t *testing.T) {
	o := pendingOrder(item("1.00", 1))

	_, err := Apply(o, nil)
	assert.True(t, errors.Is(err, apierror.ErrInvalidInput))

	_, err = Apply(o, []Action{{Action: "explode"}})
	assert.True(t, errors.Is(err, apierror.ErrInvalidInput))

	require.NoError(t, Finish(&o, time.Now()))
	_, err = Apply(o, []Action{{Action: enum.ItemActionUpdate, ItemID: o.Items[0].ID, Quantity: 2}})
	assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
}

func TestStockDelta(t *testing.T) {
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	before := []model.OrderItem{
		{ProductID: p1, Quantity: 2},
		{ProductID: p2, Quantity: 1},
		{ProductID: p1, Quantity: 1},
	}
	after := []model.OrderItem{
		{ProductID: p1, Quantity: 3},
		{ProductID: p3, Quantity: 4},
	}

	delta := StockDelta(before, after)
	assert.Equal(t, map[uuid.UUID]int64{p2: -1, p3: 4}, delta)
}
