package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

const orderColumns = `id, table_id, status, created_by, created_at, finished_at, cancelled_at`

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o                     model.Order
		status                string
		finishedAt, cancelled pgtype.Timestamptz
	)
	if err := row.Scan(&o.ID, &o.TableID, &status, &o.CreatedBy, &o.CreatedAt, &finishedAt, &cancelled); err != nil {
		return model.Order{}, err
	}
	o.Status = enum.OrderStatus(status)
	o.FinishedAt = timePtr(finishedAt)
	o.CancelledAt = timePtr(cancelled)
	return o, nil
}

const itemColumns = `id, order_id, product_id, product_name, quantity, unit_price, comment`

func scanItem(row rowScanner) (model.OrderItem, error) {
	var (
		it    model.OrderItem
		price pgtype.Numeric
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &price, &it.Comment); err != nil {
		return model.OrderItem{}, err
	}
	it.UnitPrice = numericToDecimal(price)
	return it, nil
}

// ListOrdersByTable returns the table's orders in creation order with their
// items attached.
func (q *Queries) ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]model.Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_id = $1 ORDER BY created_at, id`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := q.db.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.product_name, i.quantity, i.unit_price, i.comment
		FROM order_items i JOIN orders o ON o.id = i.order_id
		WHERE o.table_id = $1 ORDER BY i.line_no`, tableID)
	if err != nil {
		return nil, err
	}
	defer items.Close()

	for items.Next() {
		it, err := scanItem(items)
		if err != nil {
			return nil, err
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, items.Err()
}

func (q *Queries) getOrder(ctx context.Context, sql string, id uuid.UUID) (model.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, sql, id))
	if err != nil {
		return model.Order{}, err
	}
	o.Items, err = q.ListOrderItems(ctx, id)
	return o, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error) {
	return q.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetOrderForUpdate locks the order row until the transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (model.Order, error) {
	return q.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type CreateOrderParams struct {
	TableID   uuid.UUID
	CreatedBy uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (model.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `
		INSERT INTO orders (table_id, created_by) VALUES ($1, $2)
		RETURNING `+orderColumns, arg.TableID, arg.CreatedBy))
}

// CreateOrderItem inserts it. A zero ID lets the database assign one.
func (q *Queries) CreateOrderItem(ctx context.Context, it model.OrderItem) (model.OrderItem, error) {
	id := pgtype.UUID{}
	if it.ID != uuid.Nil {
		id = pgtype.UUID{Bytes: it.ID, Valid: true}
	}
	return scanItem(q.db.QueryRow(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, comment)
		VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING `+itemColumns,
		id, it.OrderID, it.ProductID, it.ProductName, it.Quantity, decimalToNumeric(it.UnitPrice), it.Comment))
}

func (q *Queries) UpdateOrderItem(ctx context.Context, id uuid.UUID, quantity int32, comment string) error {
	_, err := q.db.Exec(ctx, `UPDATE order_items SET quantity = $2, comment = $3 WHERE id = $1`, id, quantity, comment)
	return err
}

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	return err
}

// SetOrderStatus records a transition and its timestamp.
func (q *Queries) SetOrderStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus, at time.Time) (model.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2,
		    finished_at  = CASE WHEN $2 = 'finished'  THEN $3 ELSE finished_at END,
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancelled_at END
		WHERE id = $1
		RETURNING `+orderColumns, id, string(status), at))
	if err != nil {
		return model.Order{}, err
	}
	o.Items, err = q.ListOrderItems(ctx, id)
	return o, err
}
