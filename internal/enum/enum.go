package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the lifecycle state of a submitted order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFinished  OrderStatus = "finished"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusFinished, OrderStatusCancelled:
		return true
	}
	return false
}

// PrintStatus is the dispatch state of a print queue item.
type PrintStatus string

const (
	PrintStatusPending PrintStatus = "pending"
	PrintStatusPrinted PrintStatus = "printed"
	PrintStatusError   PrintStatus = "error"
)

func (s PrintStatus) Valid() bool {
	switch s {
	case PrintStatusPending, PrintStatusPrinted, PrintStatusError:
		return true
	}
	return false
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

// PrintType identifies what a print queue item renders.
type PrintType string

const (
	PrintTypeOrder   PrintType = "order"
	PrintTypeReceipt PrintType = "receipt"
	PrintTypeInvoice PrintType = "invoice"
)

func (t PrintType) Valid() bool {
	switch t {
	case PrintTypeOrder, PrintTypeReceipt, PrintTypeInvoice:
		return true
	}
	return false
}

// ── Group B: Configurable labels (no DB constraint) ──

// PaymentOption is how a closing bill is settled.
type PaymentOption string

const (
	PaymentOptionImmediate PaymentOption = "immediate"
	PaymentOptionRoom      PaymentOption = "room"
)

// PaymentMethod is the tender used for an immediate payment.
// PaymentMethodRoomAccount is the fixed marker for bills routed to a room.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodPix         PaymentMethod = "pix"
	PaymentMethodRoomAccount PaymentMethod = "room_account"
)

// Immediate reports whether m can settle a bill on the spot.
func (m PaymentMethod) Immediate() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodPix:
		return true
	}
	return false
}

// ItemAction is an edit applied to a pending order's items.
type ItemAction string

const (
	ItemActionAdd    ItemAction = "add"
	ItemActionUpdate ItemAction = "update"
	ItemActionRemove ItemAction = "remove"
)

// TableNamePolicy controls which table names are accepted on open.
type TableNamePolicy string

const (
	TableNamePolicyAny     TableNamePolicy = "any"
	TableNamePolicyNumeric TableNamePolicy = "numeric"
)
