package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

const printColumns = `id, type, table_id, content, order_id, fiscal, status, retry_count,
	error_message, created_at, printed_at`

func scanPrintItem(row rowScanner) (model.PrintQueueItem, error) {
	var (
		it           model.PrintQueueItem
		typ, status  string
		orderID      pgtype.UUID
		errorMessage pgtype.Text
		printedAt    pgtype.Timestamptz
	)
	err := row.Scan(&it.ID, &typ, &it.TableID, &it.Content, &orderID, &it.Fiscal, &status,
		&it.RetryCount, &errorMessage, &it.CreatedAt, &printedAt)
	if err != nil {
		return model.PrintQueueItem{}, err
	}
	it.Type = enum.PrintType(typ)
	it.Status = enum.PrintStatus(status)
	it.OrderID = uuidPtr(orderID)
	it.ErrorMessage = textPtr(errorMessage)
	it.PrintedAt = timePtr(printedAt)
	return it, nil
}

// ListPrintItems returns queue items oldest first, optionally filtered by status.
func (q *Queries) ListPrintItems(ctx context.Context, status string) ([]model.PrintQueueItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+printColumns+` FROM print_queue
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at, id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PrintQueueItem
	for rows.Next() {
		it, err := scanPrintItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *Queries) GetPrintItemForUpdate(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error) {
	return scanPrintItem(q.db.QueryRow(ctx, `SELECT `+printColumns+` FROM print_queue WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) CreatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error) {
	return scanPrintItem(q.db.QueryRow(ctx, `
		INSERT INTO print_queue (id, type, table_id, content, order_id, fiscal, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+printColumns,
		it.ID, string(it.Type), it.TableID, it.Content, pgUUID(it.OrderID), it.Fiscal,
		string(it.Status), it.CreatedAt))
}

// UpdatePrintItem stores the mutable status fields of it.
func (q *Queries) UpdatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error) {
	return scanPrintItem(q.db.QueryRow(ctx, `
		UPDATE print_queue
		SET status = $2, retry_count = $3, error_message = $4, printed_at = $5
		WHERE id = $1
		RETURNING `+printColumns,
		it.ID, string(it.Status), it.RetryCount, pgText(it.ErrorMessage), pgTime(it.PrintedAt)))
}

// DeletePrintItem reports the number of rows removed.
func (q *Queries) DeletePrintItem(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM print_queue WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- System status ---

const statusColumns = `orders_enabled, reason, version, updated_at, updated_by`

func scanStatus(row rowScanner) (model.SystemStatus, error) {
	var (
		s  model.SystemStatus
		by pgtype.UUID
	)
	if err := row.Scan(&s.OrdersEnabled, &s.Reason, &s.Version, &s.UpdatedAt, &by); err != nil {
		return model.SystemStatus{}, err
	}
	if by.Valid {
		s.UpdatedBy = by.Bytes
	}
	return s, nil
}

func (q *Queries) GetSystemStatus(ctx context.Context) (model.SystemStatus, error) {
	return scanStatus(q.db.QueryRow(ctx, `SELECT `+statusColumns+` FROM system_status WHERE id = 1`))
}

type UpdateSystemStatusParams struct {
	OrdersEnabled bool
	Reason        string
	UpdatedBy     uuid.UUID
}

// UpdateSystemStatus writes a new snapshot and bumps its version.
func (q *Queries) UpdateSystemStatus(ctx context.Context, arg UpdateSystemStatusParams) (model.SystemStatus, error) {
	return scanStatus(q.db.QueryRow(ctx, `
		UPDATE system_status
		SET orders_enabled = $1, reason = $2, updated_by = $3,
		    version = version + 1, updated_at = now()
		WHERE id = 1
		RETURNING `+statusColumns,
		arg.OrdersEnabled, arg.Reason, arg.UpdatedBy))
}
