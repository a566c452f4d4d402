// Package billing computes the close-out bill of a table: order totals, the
// optional service tax and the payment routing.
package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/order"
)

// ServiceTaxRate is the optional surcharge applied at close.
var ServiceTaxRate = decimal.NewFromFloat(0.10)

// Request carries the operator's close-out choices.
type Request struct {
	ServiceTaxIncluded bool
	PaymentOption      enum.PaymentOption
	PaymentMethod      enum.PaymentMethod
	GenerateInvoice    bool
	ClosedBy           uuid.UUID
	At                 time.Time
}

// BaseTotal sums the totals of every order that is not cancelled.
func BaseTotal(orders []model.Order) decimal.Decimal {
	base := decimal.Zero
	for _, o := range orders {
		if order.Billable(o) {
			base = base.Add(o.TotalAmount())
		}
	}
	return base
}

// Tax returns the service tax on base, rounded to cents.
func Tax(base decimal.Decimal, included bool) decimal.Decimal {
	if !included {
		return decimal.Zero
	}
	return base.Mul(ServiceTaxRate).Round(2)
}

// RoomLinked reports whether t may route its bill to room. A table whose room
// was deleted is treated as not linked.
func RoomLinked(t model.Table, room *model.Room) bool {
	return t.RoomID != nil && room != nil && room.ID == *t.RoomID
}

// Compute builds the bill for t. room is the room referenced by t.RoomID, or
// nil when the table has none or the room no longer exists. Compute never
// modifies t.
func Compute(t model.Table, room *model.Room, req Request) (model.BillClose, error) {
	option := req.PaymentOption
	if option == "" {
		option = enum.PaymentOptionImmediate
	}
	if option != enum.PaymentOptionImmediate && option != enum.PaymentOptionRoom {
		return model.BillClose{}, apierror.New(apierror.KindInvalidInput, "invalid payment_option %q", req.PaymentOption)
	}

	base := BaseTotal(t.Orders).Round(2)
	tax := Tax(base, req.ServiceTaxIncluded)
	grand := base.Add(tax).Round(2)

	bill := model.BillClose{
		TableID:            t.ID,
		BaseTotal:          base,
		ServiceTaxIncluded: req.ServiceTaxIncluded,
		TaxAmount:          tax,
		GrandTotal:         grand,
		Change:             decimal.Zero,
		InvoiceRequested:   req.GenerateInvoice,
		ClosedBy:           req.ClosedBy,
		ClosedAt:           req.At,
	}

	if option == enum.PaymentOptionRoom && RoomLinked(t, room) {
		id := room.ID
		bill.PaymentOption = enum.PaymentOptionRoom
		bill.PaymentMethod = enum.PaymentMethodRoomAccount
		bill.AmountPaid = decimal.Zero
		bill.RoomID = &id
		return bill, nil
	}

	method := req.PaymentMethod
	if option == enum.PaymentOptionRoom && !method.Immediate() {
		// Room routing was requested but is not available; fall back quietly.
		method = enum.PaymentMethodCash
	}
	if !method.Immediate() {
		return model.BillClose{}, apierror.New(apierror.KindInvalidInput, "payment_method must be cash, card or pix")
	}

	bill.PaymentOption = enum.PaymentOptionImmediate
	bill.PaymentMethod = method
	bill.AmountPaid = grand
	return bill, nil
}

// ConsumptionLine is one product's share of a table's consumption.
type ConsumptionLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

// Consumption groups the items of every billable order by product, in order
// of first appearance.
func Consumption(orders []model.Order) []ConsumptionLine {
	var lines []ConsumptionLine
	index := make(map[uuid.UUID]int)
	for _, o := range orders {
		if !order.Billable(o) {
			continue
		}
		for _, it := range o.Items {
			i, ok := index[it.ProductID]
			if !ok {
				i = len(lines)
				index[it.ProductID] = i
				lines = append(lines, ConsumptionLine{ProductID: it.ProductID, ProductName: it.ProductName, Total: decimal.Zero})
			}
			lines[i].Quantity += int64(it.Quantity)
			lines[i].Total = lines[i].Total.Add(it.Subtotal())
		}
	}
	return lines
}
