package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

// TableNameConstraint is the partial unique index on open table names.
const TableNameConstraint = "tables_open_name_key"

const tableColumns = `id, name, room_id, is_closed, created_by, created_at, closed_at`

func scanTable(row rowScanner) (model.Table, error) {
	var (
		t        model.Table
		roomID   pgtype.UUID
		closedAt pgtype.Timestamptz
	)
	if err := row.Scan(&t.ID, &t.Name, &roomID, &t.IsClosed, &t.CreatedBy, &t.CreatedAt, &closedAt); err != nil {
		return model.Table{}, err
	}
	t.RoomID = uuidPtr(roomID)
	t.ClosedAt = timePtr(closedAt)
	return t, nil
}

// ListTables returns tables in creation order, filtered by closed state when
// isClosed is set.
func (q *Queries) ListTables(ctx context.Context, isClosed *bool) ([]model.Table, error) {
	var filter pgtype.Bool
	if isClosed != nil {
		filter = pgtype.Bool{Bool: *isClosed, Valid: true}
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+tableColumns+` FROM tables
		WHERE ($1::boolean IS NULL OR is_closed = $1)
		ORDER BY created_at, id`, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (model.Table, error) {
	return scanTable(q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1`, id))
}

// GetTableForUpdate locks the table row until the transaction ends.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (model.Table, error) {
	return scanTable(q.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1 FOR UPDATE`, id))
}

// ListOpenTablesByName returns open tables whose normalized name matches.
func (q *Queries) ListOpenTablesByName(ctx context.Context, name string) ([]model.Table, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tableColumns+` FROM tables
		WHERE NOT is_closed AND lower(btrim(name)) = lower(btrim($1))`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type CreateTableParams struct {
	Name      string
	RoomID    *uuid.UUID
	CreatedBy uuid.UUID
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (model.Table, error) {
	return scanTable(q.db.QueryRow(ctx, `
		INSERT INTO tables (name, room_id, created_by) VALUES ($1, $2, $3)
		RETURNING `+tableColumns,
		arg.Name, pgUUID(arg.RoomID), arg.CreatedBy))
}

func (q *Queries) CloseTable(ctx context.Context, id uuid.UUID, at time.Time) (model.Table, error) {
	return scanTable(q.db.QueryRow(ctx, `
		UPDATE tables SET is_closed = TRUE, closed_at = $2
		WHERE id = $1 AND NOT is_closed
		RETURNING `+tableColumns, id, at))
}

// --- Bills ---

const billColumns = `table_id, base_total, service_tax_included, tax_amount, grand_total,
	payment_option, payment_method, amount_paid, change, room_id, invoice_requested,
	closed_by, closed_at`

func scanBill(row rowScanner) (model.BillClose, error) {
	var (
		b                              model.BillClose
		base, tax, grand, paid, change pgtype.Numeric
		option, method                 string
		roomID                         pgtype.UUID
	)
	err := row.Scan(&b.TableID, &base, &b.ServiceTaxIncluded, &tax, &grand,
		&option, &method, &paid, &change, &roomID, &b.InvoiceRequested,
		&b.ClosedBy, &b.ClosedAt)
	if err != nil {
		return model.BillClose{}, err
	}
	b.BaseTotal = numericToDecimal(base)
	b.TaxAmount = numericToDecimal(tax)
	b.GrandTotal = numericToDecimal(grand)
	b.AmountPaid = numericToDecimal(paid)
	b.Change = numericToDecimal(change)
	b.PaymentOption = enum.PaymentOption(option)
	b.PaymentMethod = enum.PaymentMethod(method)
	b.RoomID = uuidPtr(roomID)
	return b, nil
}

func (q *Queries) CreateBill(ctx context.Context, b model.BillClose) (model.BillClose, error) {
	return scanBill(q.db.QueryRow(ctx, `
		INSERT INTO bill_closes (`+billColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+billColumns,
		b.TableID, decimalToNumeric(b.BaseTotal), b.ServiceTaxIncluded,
		decimalToNumeric(b.TaxAmount), decimalToNumeric(b.GrandTotal),
		string(b.PaymentOption), string(b.PaymentMethod),
		decimalToNumeric(b.AmountPaid), decimalToNumeric(b.Change),
		pgUUID(b.RoomID), b.InvoiceRequested, b.ClosedBy, b.ClosedAt))
}

func (q *Queries) GetBill(ctx context.Context, tableID uuid.UUID) (model.BillClose, error) {
	return scanBill(q.db.QueryRow(ctx, `SELECT `+billColumns+` FROM bill_closes WHERE table_id = $1`, tableID))
}

// RoomTableRow pairs a table linked to a room with its bill, if closed.
type RoomTableRow struct {
	Table model.Table
	Bill  *model.BillClose
}

// ListRoomTables returns tables linked to roomID created in [from, to).
// Closed tables are always included; open ones only when includeOpen is set.
func (q *Queries) ListRoomTables(ctx context.Context, roomID uuid.UUID, from, to time.Time, includeOpen bool) ([]RoomTableRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT t.id, t.name, t.room_id, t.is_closed, t.created_by, t.created_at, t.closed_at,
		       b.table_id IS NOT NULL
		FROM tables t
		LEFT JOIN bill_closes b ON b.table_id = t.id
		WHERE (t.room_id = $1 OR b.room_id = $1)
		  AND t.created_at >= $2 AND t.created_at < $3
		  AND (t.is_closed OR $4)
		ORDER BY t.created_at, t.id`, roomID, from, to, includeOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out     []RoomTableRow
		hasBill []bool
	)
	for rows.Next() {
		var (
			t        model.Table
			rid      pgtype.UUID
			closedAt pgtype.Timestamptz
			billed   bool
		)
		if err := rows.Scan(&t.ID, &t.Name, &rid, &t.IsClosed, &t.CreatedBy, &t.CreatedAt, &closedAt, &billed); err != nil {
			return nil, err
		}
		t.RoomID = uuidPtr(rid)
		t.ClosedAt = timePtr(closedAt)
		out = append(out, RoomTableRow{Table: t})
		hasBill = append(hasBill, billed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if !hasBill[i] {
			continue
		}
		b, err := q.GetBill(ctx, out[i].Table.ID)
		if err != nil {
			return nil, err
		}
		out[i].Bill = &b
	}
	return out, nil
}
