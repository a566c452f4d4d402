package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/billing"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/printqueue"
	"github.com/tableside/api/internal/table"
	"github.com/tableside/api/internal/ws"
)

// CloseStore defines the DB methods needed to close a table.
// Satisfied by *database.Queries (and its WithTx variant).
type CloseStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (model.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (model.Table, error)
	ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]model.Order, error)
	GetRoom(ctx context.Context, id uuid.UUID) (model.Room, error)
	CloseTable(ctx context.Context, id uuid.UUID, at time.Time) (model.Table, error)
	CreateBill(ctx context.Context, b model.BillClose) (model.BillClose, error)
	GetBill(ctx context.Context, tableID uuid.UUID) (model.BillClose, error)
	CreatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error)
}

// NewCloseStore creates a CloseStore from a DBTX (pool or tx).
type NewCloseStore func(db database.DBTX) CloseStore

// CloseRequest is the input for closing a table.
type CloseRequest struct {
	TableID            uuid.UUID
	ServiceTaxIncluded bool
	PaymentOption      enum.PaymentOption
	PaymentMethod      enum.PaymentMethod
	GenerateInvoice    bool
	ClosedBy           uuid.UUID
}

// CloseService runs the billing close-out.
type CloseService struct {
	store         CloseStore
	pool          TxBeginner
	newStore      NewCloseStore
	notifier      Notifier
	now           Clock
	invoiceHeader string
}

// NewCloseService creates a new CloseService.
func NewCloseService(store CloseStore, pool TxBeginner, newStore NewCloseStore, notifier Notifier, now Clock, invoiceHeader string) *CloseService {
	return &CloseService{
		store:         store,
		pool:          pool,
		newStore:      newStore,
		notifier:      orNop(notifier),
		now:           orNow(now),
		invoiceHeader: invoiceHeader,
	}
}

// loadRoom returns the room a table points at, or nil when the table has
// none or the room no longer exists.
func loadRoom(ctx context.Context, store CloseStore, t model.Table) (*model.Room, error) {
	if t.RoomID == nil {
		return nil, nil
	}
	room, err := store.GetRoom(ctx, *t.RoomID)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Warn().Str("table_id", t.ID.String()).Str("room_id", t.RoomID.String()).Msg("close: linked room no longer exists")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

// Preview computes the bill the table would close with, without closing it.
func (s *CloseService) Preview(ctx context.Context, req CloseRequest) (model.BillClose, error) {
	t, err := s.store.GetTable(ctx, req.TableID)
	if err != nil {
		return model.BillClose{}, notFound(err, "table")
	}
	if t.Orders, err = s.store.ListOrdersByTable(ctx, t.ID); err != nil {
		return model.BillClose{}, fmt.Errorf("list orders: %w", err)
	}
	room, err := loadRoom(ctx, s.store, t)
	if err != nil {
		return model.BillClose{}, err
	}
	return billing.Compute(t, room, req.billingRequest(s.now()))
}

// Close closes the table with its bill and, when asked, queues the invoice.
// Everything is written in one transaction; on any error the table stays open.
func (s *CloseService) Close(ctx context.Context, req CloseRequest) (model.Table, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Table{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	t, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		return model.Table{}, notFound(err, "table")
	}
	if t.Orders, err = store.ListOrdersByTable(ctx, t.ID); err != nil {
		return model.Table{}, fmt.Errorf("list orders: %w", err)
	}
	if err := table.EnsureOpen(t); err != nil {
		return model.Table{}, err
	}
	if n := table.PendingCount(t); n > 0 {
		return model.Table{}, apierror.New(apierror.KindHasPendingOrders, "table %s has %d pending order(s)", t.Name, n)
	}

	room, err := loadRoom(ctx, store, t)
	if err != nil {
		return model.Table{}, err
	}

	at := s.now()
	bill, err := billing.Compute(t, room, req.billingRequest(at))
	if err != nil {
		return model.Table{}, err
	}
	if err := table.Close(&t, bill, at); err != nil {
		return model.Table{}, err
	}

	closed, err := store.CloseTable(ctx, t.ID, at)
	if err != nil {
		return model.Table{}, fmt.Errorf("close table: %w", err)
	}
	saved, err := store.CreateBill(ctx, *t.Bill)
	if err != nil {
		return model.Table{}, fmt.Errorf("create bill: %w", err)
	}
	closed.Orders = t.Orders
	closed.Bill = &saved

	var invoice *model.PrintQueueItem
	if req.GenerateInvoice {
		content := billing.RenderInvoice(s.invoiceHeader, closed, saved, billing.Consumption(closed.Orders))
		it, err := printqueue.NewItem(enum.PrintTypeInvoice, closed.ID, content, nil, true, at)
		if err != nil {
			return model.Table{}, err
		}
		created, err := store.CreatePrintItem(ctx, it)
		if err != nil {
			return model.Table{}, fmt.Errorf("enqueue invoice: %w", err)
		}
		invoice = &created
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Table{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.Publish(ws.TopicFloor, EventTableUpdated, tableEvent{TableID: closed.ID, Status: "closed"})
	if invoice != nil {
		s.notifier.Publish(ws.TopicPrinters, EventPrintCreated, invoice)
	}
	return closed, nil
}

// InvoicePDF renders the stored bill of a closed table.
func (s *CloseService) InvoicePDF(ctx context.Context, tableID uuid.UUID) ([]byte, error) {
	t, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, notFound(err, "table")
	}
	if !t.IsClosed {
		return nil, apierror.New(apierror.KindInvalidTransition, "table %s is still open", t.Name)
	}
	bill, err := s.store.GetBill(ctx, tableID)
	if err != nil {
		return nil, notFound(err, "bill")
	}
	orders, err := s.store.ListOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return billing.InvoicePDF(s.invoiceHeader, t, bill, billing.Consumption(orders))
}

func (r CloseRequest) billingRequest(at time.Time) billing.Request {
	return billing.Request{
		ServiceTaxIncluded: r.ServiceTaxIncluded,
		PaymentOption:      r.PaymentOption,
		PaymentMethod:      r.PaymentMethod,
		GenerateInvoice:    r.GenerateInvoice,
		ClosedBy:           r.ClosedBy,
		At:                 at,
	}
}
