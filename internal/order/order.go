// Package order owns the state machine of a submitted order and the item
// edits allowed while it is still pending. Functions here are pure; the
// service layer persists their results.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

// allowedTransitions is keyed by current status. Terminal states have no entry.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusPending: {enum.OrderStatusFinished, enum.OrderStatusCancelled},
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next enum.OrderStatus) bool {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns InvalidTransition when current cannot move to next.
func ValidateTransition(current, next enum.OrderStatus) error {
	if CanTransition(current, next) {
		return nil
	}
	return apierror.New(apierror.KindInvalidTransition, "order cannot go from %s to %s", current, next)
}

// Finish moves a pending order to finished.
func Finish(o *model.Order, at time.Time) error {
	if err := ValidateTransition(o.Status, enum.OrderStatusFinished); err != nil {
		return err
	}
	o.Status = enum.OrderStatusFinished
	o.FinishedAt = &at
	return nil
}

// Cancel moves a pending order to cancelled. The order stays on its table for
// audit but no longer counts toward any bill.
func Cancel(o *model.Order, at time.Time) error {
	if err := ValidateTransition(o.Status, enum.OrderStatusCancelled); err != nil {
		return err
	}
	o.Status = enum.OrderStatusCancelled
	o.CancelledAt = &at
	return nil
}

// Billable reports whether o counts toward its table's bill.
func Billable(o model.Order) bool {
	return o.Status != enum.OrderStatusCancelled
}

func ensureEditable(o *model.Order) error {
	if o.Status != enum.OrderStatusPending {
		return apierror.New(apierror.KindInvalidTransition, "order is %s; items can only change while pending", o.Status)
	}
	return nil
}

// AddItem appends a line to a pending order. A zero item ID is replaced with
// a fresh one.
func AddItem(o *model.Order, item model.OrderItem) error {
	if err := ensureEditable(o); err != nil {
		return err
	}
	if item.Quantity < 1 {
		return apierror.New(apierror.KindInvalidQuantity, "quantity must be >= 1")
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.OrderID = o.ID
	item.Comment = strings.TrimSpace(item.Comment)
	o.Items = append(o.Items, item)
	return nil
}

// UpdateItem changes the quantity and comment of one item.
func UpdateItem(o *model.Order, itemID uuid.UUID, quantity int32, comment string) error {
	if err := ensureEditable(o); err != nil {
		return err
	}
	if quantity < 1 {
		return apierror.New(apierror.KindInvalidQuantity, "quantity must be >= 1")
	}
	i := indexOf(o, itemID)
	if i < 0 {
		return apierror.New(apierror.KindNotFound, "order item %s not found", itemID)
	}
	o.Items[i].Quantity = quantity
	o.Items[i].Comment = strings.TrimSpace(comment)
	return nil
}

// RemoveItem drops one item. The last item cannot be removed; cancel the
// order instead.
func RemoveItem(o *model.Order, itemID uuid.UUID) error {
	if err := ensureEditable(o); err != nil {
		return err
	}
	i := indexOf(o, itemID)
	if i < 0 {
		return apierror.New(apierror.KindNotFound, "order item %s not found", itemID)
	}
	if len(o.Items) == 1 {
		return apierror.New(apierror.KindEmptyCart, "cannot remove the last item; cancel the order instead")
	}
	o.Items = append(o.Items[:i:i], o.Items[i+1:]...)
	return nil
}

func indexOf(o *model.Order, itemID uuid.UUID) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Action is one entry of an items_actions edit request.
type Action struct {
	Action      enum.ItemAction `json:"action"`
	ItemID      uuid.UUID       `json:"item_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"-"`
	UnitPrice   decimal.Decimal `json:"-"`
	Quantity    int32           `json:"quantity"`
	Comment     string          `json:"comment"`
}

// Apply runs actions in order against a copy of o and returns the result.
// If any action fails, o is untouched and the error names the failing index.
func Apply(o model.Order, actions []Action) (model.Order, error) {
	next := o
	next.Items = make([]model.OrderItem, len(o.Items))
	copy(next.Items, o.Items)

	if len(actions) == 0 {
		return o, apierror.New(apierror.KindInvalidInput, "items_actions is required")
	}

	for i, a := range actions {
		var err error
		switch a.Action {
		case enum.ItemActionAdd:
			err = AddItem(&next, model.OrderItem{
				ProductID:   a.ProductID,
				ProductName: a.ProductName,
				Quantity:    a.Quantity,
				UnitPrice:   a.UnitPrice,
				Comment:     a.Comment,
			})
		case enum.ItemActionUpdate:
			err = UpdateItem(&next, a.ItemID, a.Quantity, a.Comment)
		case enum.ItemActionRemove:
			err = RemoveItem(&next, a.ItemID)
		default:
			err = apierror.New(apierror.KindInvalidInput, "unknown action %q", a.Action)
		}
		if err != nil {
			return o, wrapIndex(i, err)
		}
	}
	return next, nil
}

func wrapIndex(i int, err error) error {
	if e, ok := err.(*apierror.Error); ok {
		return &apierror.Error{Kind: e.Kind, Message: fmt.Sprintf("items_actions[%d]: %s", i, e.Message)}
	}
	return fmt.Errorf("items_actions[%d]: %w", i, err)
}

// QuantityByProduct sums item quantities per product.
func QuantityByProduct(items []model.OrderItem) map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64)
	for _, it := range items {
		out[it.ProductID] += int64(it.Quantity)
	}
	return out
}

// StockDelta returns, per product, how many more units after holds than
// before. Positive values must be taken from stock; negative values return.
func StockDelta(before, after []model.OrderItem) map[uuid.UUID]int64 {
	delta := QuantityByProduct(after)
	for pid, n := range QuantityByProduct(before) {
		delta[pid] -= n
	}
	for pid, n := range delta {
		if n == 0 {
			delete(delta, pid)
		}
	}
	return delta
}
