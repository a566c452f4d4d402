// Package model holds the domain types shared by the lifecycle packages,
// the persistence layer and the API client.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/enum"
)

// Product is a catalog entry. A nil StockQuantity means stock is not tracked.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity *int32          `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
}

// CartLine is an unsubmitted line item. UnitPrice is fixed when the line is added.
type CartLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Comment     string          `json:"comment,omitempty"`
}

// Subtotal is quantity times unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// OrderItem is a persisted line of an order.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Comment     string          `json:"comment"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order is a submitted set of items owned by a table.
type Order struct {
	ID          uuid.UUID        `json:"id"`
	TableID     uuid.UUID        `json:"table_id"`
	Items       []OrderItem      `json:"items"`
	Status      enum.OrderStatus `json:"status"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	FinishedAt  *time.Time       `json:"finished_at"`
	CancelledAt *time.Time       `json:"cancelled_at"`
}

// TotalAmount is the sum of quantity × unit price over the order's items.
func (o Order) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// TotalItems is the sum of item quantities.
func (o Order) TotalItems() int32 {
	var n int32
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// MarshalJSON adds the derived totals to the wire form.
func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal(struct {
		alias
		TotalAmount decimal.Decimal `json:"total_amount"`
		TotalItems  int32           `json:"total_items"`
	}{alias(o), o.TotalAmount(), o.TotalItems()})
}

// Table is an open tab owning orders until it is closed into a bill.
type Table struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	RoomID    *uuid.UUID `json:"room_id"`
	IsClosed  bool       `json:"is_closed"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	Orders    []Order    `json:"orders"`
	Bill      *BillClose `json:"bill,omitempty"`
}

// Room is a billing aggregation point that several tables may reference.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	GuestName *string   `json:"guest_name"`
}

// BillClose is the financial snapshot recorded when a table closes.
type BillClose struct {
	TableID            uuid.UUID          `json:"table_id"`
	BaseTotal          decimal.Decimal    `json:"base_total"`
	ServiceTaxIncluded bool               `json:"service_tax_included"`
	TaxAmount          decimal.Decimal    `json:"tax_amount"`
	GrandTotal         decimal.Decimal    `json:"grand_total"`
	PaymentOption      enum.PaymentOption `json:"payment_option"`
	PaymentMethod      enum.PaymentMethod `json:"payment_method"`
	AmountPaid         decimal.Decimal    `json:"amount_paid"`
	Change             decimal.Decimal    `json:"change"`
	RoomID             *uuid.UUID         `json:"room_id"`
	InvoiceRequested   bool               `json:"invoice_requested"`
	ClosedBy           uuid.UUID          `json:"closed_by"`
	ClosedAt           time.Time          `json:"closed_at"`
}

// AddedToRoom reports whether the bill was routed to a room account.
func (b BillClose) AddedToRoom() bool {
	return b.PaymentOption == enum.PaymentOptionRoom
}

// PrintQueueItem is a receipt, invoice or order ticket waiting for a printer.
type PrintQueueItem struct {
	ID           uuid.UUID        `json:"id"`
	Type         enum.PrintType   `json:"type"`
	TableID      uuid.UUID        `json:"table_id"`
	Content      string           `json:"content"`
	OrderID      *uuid.UUID       `json:"order_id"`
	Fiscal       bool             `json:"fiscal"`
	Status       enum.PrintStatus `json:"status"`
	RetryCount   int32            `json:"retry_count"`
	ErrorMessage *string          `json:"error_message"`
	CreatedAt    time.Time        `json:"created_at"`
	PrintedAt    *time.Time       `json:"printed_at"`
}

// SystemStatus is the order gate. Snapshots are immutable; Version grows on
// every write.
type SystemStatus struct {
	OrdersEnabled bool      `json:"orders_enabled"`
	Reason        string    `json:"reason,omitempty"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
	UpdatedBy     uuid.UUID `json:"updated_by"`
}

// User is an operator account.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
}
