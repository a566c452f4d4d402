// Package ledger computes stock availability for products being added to a
// cart. Stock itself is owned by purchasing/restocking; nothing here writes it.
package ledger

import (
	"math"

	"github.com/google/uuid"

	"github.com/tableside/api/internal/model"
)

// Unlimited is returned for products whose stock is not tracked.
const Unlimited int64 = math.MaxInt32

// Reserved is the quantity of productID already held by lines.
func Reserved(productID uuid.UUID, lines []model.CartLine) int64 {
	var n int64
	for _, l := range lines {
		if l.ProductID == productID {
			n += int64(l.Quantity)
		}
	}
	return n
}

// AvailableStock is the product's stock net of what the cart already holds.
// The result can be negative when stock was depleted after lines were added.
func AvailableStock(p model.Product, lines []model.CartLine) int64 {
	if p.StockQuantity == nil {
		return Unlimited
	}
	return int64(*p.StockQuantity) - Reserved(p.ID, lines)
}

// Tracked reports whether p has a stock figure.
func Tracked(p model.Product) bool {
	return p.StockQuantity != nil
}
