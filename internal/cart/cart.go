// Package cart builds an order before it is submitted. Availability is always
// recomputed from the latest fetched stock and the lines currently in the cart;
// nothing is reserved server-side until Submit.
package cart

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/gate"
	"github.com/tableside/api/internal/ledger"
	"github.com/tableside/api/internal/model"
)

// StockSource returns the latest catalog entry for a product.
type StockSource interface {
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
}

// OrderGate returns the current system status snapshot.
type OrderGate interface {
	SystemStatus(ctx context.Context) (model.SystemStatus, error)
}

// OrderSubmitter persists a new pending order for a table.
type OrderSubmitter interface {
	CreateOrder(ctx context.Context, tableID uuid.UUID, lines []model.CartLine) (model.Order, error)
}

// Builder accumulates lines for one table. It is not safe for concurrent use;
// one operator edits one cart at a time.
type Builder struct {
	stock     StockSource
	gate      OrderGate
	submitter OrderSubmitter
	lines     []model.CartLine

	// Category is the menu filter the operator has selected.
	Category string
}

// New returns an empty cart.
func New(stock StockSource, g OrderGate, submitter OrderSubmitter) *Builder {
	return &Builder{stock: stock, gate: g, submitter: submitter}
}

// AddLine adds quantity of a product. A line with the same product and comment
// absorbs the quantity; otherwise a new line is appended at the current price.
func (b *Builder) AddLine(ctx context.Context, productID uuid.UUID, quantity int32, comment string) error {
	if quantity < 1 {
		return apierror.New(apierror.KindInvalidQuantity, "quantity must be >= 1")
	}

	p, err := b.product(ctx, productID)
	if err != nil {
		return err
	}

	if avail := ledger.AvailableStock(p, b.lines); int64(quantity) > avail {
		return insufficient(p, avail)
	}

	comment = strings.TrimSpace(comment)
	for i := range b.lines {
		if b.lines[i].ProductID == productID && b.lines[i].Comment == comment {
			if int64(b.lines[i].Quantity)+int64(quantity) > math.MaxInt32 {
				return apierror.New(apierror.KindInvalidQuantity, "quantity of %s exceeds %d", p.Name, int32(math.MaxInt32))
			}
			b.lines[i].Quantity += quantity
			return nil
		}
	}

	b.lines = append(b.lines, model.CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.Price,
		Comment:     comment,
	})
	return nil
}

// UpdateQuantity sets the quantity of the line at index, validated against
// the current stock minus every other line in the cart.
func (b *Builder) UpdateQuantity(ctx context.Context, index int, quantity int32) error {
	if quantity < 1 {
		return apierror.New(apierror.KindInvalidQuantity, "quantity must be >= 1")
	}
	if index < 0 || index >= len(b.lines) {
		return apierror.New(apierror.KindNotFound, "cart line %d not found", index)
	}

	line := b.lines[index]
	p, err := b.product(ctx, line.ProductID)
	if err != nil {
		return err
	}

	rest := make([]model.CartLine, 0, len(b.lines)-1)
	rest = append(rest, b.lines[:index]...)
	rest = append(rest, b.lines[index+1:]...)
	if avail := ledger.AvailableStock(p, rest); int64(quantity) > avail {
		return insufficient(p, avail)
	}

	b.lines[index].Quantity = quantity
	return nil
}

// RemoveLine drops the line at index.
func (b *Builder) RemoveLine(index int) error {
	if index < 0 || index >= len(b.lines) {
		return apierror.New(apierror.KindNotFound, "cart line %d not found", index)
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

// Submit creates a pending order from the cart and empties it. On failure the
// cart is left untouched so the operator can retry.
func (b *Builder) Submit(ctx context.Context, tableID uuid.UUID) (model.Order, error) {
	st, err := b.gate.SystemStatus(ctx)
	if err != nil {
		return model.Order{}, err
	}
	if err := gate.Check(st); err != nil {
		return model.Order{}, err
	}
	if len(b.lines) == 0 {
		return model.Order{}, apierror.New(apierror.KindEmptyCart, "cart is empty")
	}

	order, err := b.submitter.CreateOrder(ctx, tableID, b.Lines())
	if err != nil {
		return model.Order{}, err
	}
	b.lines = nil
	return order, nil
}

// Discard drops every line. Nothing was persisted, so nothing is undone.
func (b *Builder) Discard() {
	b.lines = nil
}

// Lines returns a copy of the cart lines in insertion order.
func (b *Builder) Lines() []model.CartLine {
	out := make([]model.CartLine, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len is the number of cart lines.
func (b *Builder) Len() int { return len(b.lines) }

// Total is the sum of line subtotals.
func (b *Builder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Available reports how many more units of productID the cart can take.
func (b *Builder) Available(ctx context.Context, productID uuid.UUID) (int64, error) {
	p, err := b.product(ctx, productID)
	if err != nil {
		return 0, err
	}
	return ledger.AvailableStock(p, b.lines), nil
}

func (b *Builder) product(ctx context.Context, id uuid.UUID) (model.Product, error) {
	p, err := b.stock.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if !p.IsActive {
		return model.Product{}, apierror.New(apierror.KindNotFound, "product %s is not available", p.Name)
	}
	return p, nil
}

func insufficient(p model.Product, avail int64) error {
	if avail < 0 {
		avail = 0
	}
	return apierror.New(apierror.KindInsufficientStock, "only %d of %s available", avail, p.Name)
}

// Build validates lines the way an operator's cart would have, merging
// duplicates and checking stock. Used by the server to re-check a submission.
func Build(ctx context.Context, stock StockSource, lines []model.CartLine) ([]model.CartLine, error) {
	b := &Builder{stock: stock}
	for _, l := range lines {
		if err := b.AddLine(ctx, l.ProductID, l.Quantity, l.Comment); err != nil {
			return nil, err
		}
	}
	if len(b.lines) == 0 {
		return nil, apierror.New(apierror.KindEmptyCart, "items are required")
	}
	return b.lines, nil
}
