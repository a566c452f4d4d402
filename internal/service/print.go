package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/printqueue"
	"github.com/tableside/api/internal/ws"
)

// PrintStore defines the DB methods needed by PrintService.
// Satisfied by *database.Queries (and its WithTx variant).
type PrintStore interface {
	ListPrintItems(ctx context.Context, status string) ([]model.PrintQueueItem, error)
	GetPrintItemForUpdate(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error)
	CreatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error)
	UpdatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error)
	DeletePrintItem(ctx context.Context, id uuid.UUID) (int64, error)
	GetTable(ctx context.Context, id uuid.UUID) (model.Table, error)
}

// NewPrintStore creates a PrintStore from a DBTX (pool or tx).
type NewPrintStore func(db database.DBTX) PrintStore

// EnqueueRequest is the input for queueing a print job by hand.
type EnqueueRequest struct {
	Type    enum.PrintType
	TableID uuid.UUID
	Content string
	OrderID *uuid.UUID
	Fiscal  bool
}

// PrintService persists the print queue status machine.
type PrintService struct {
	store    PrintStore
	pool     TxBeginner
	newStore NewPrintStore
	notifier Notifier
	now      Clock
}

// NewPrintService creates a new PrintService.
func NewPrintService(store PrintStore, pool TxBeginner, newStore NewPrintStore, notifier Notifier, now Clock) *PrintService {
	return &PrintService{store: store, pool: pool, newStore: newStore, notifier: orNop(notifier), now: orNow(now)}
}

// List returns queue items, optionally only those in status.
func (s *PrintService) List(ctx context.Context, status string) ([]model.PrintQueueItem, error) {
	if status != "" && !enum.PrintStatus(status).Valid() {
		return nil, apierror.New(apierror.KindInvalidInput, "invalid status %q", status)
	}
	items, err := s.store.ListPrintItems(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list print items: %w", err)
	}
	return items, nil
}

// Enqueue adds a pending item for an existing table.
func (s *PrintService) Enqueue(ctx context.Context, req EnqueueRequest) (model.PrintQueueItem, error) {
	it, err := printqueue.NewItem(req.Type, req.TableID, req.Content, req.OrderID, req.Fiscal, s.now())
	if err != nil {
		return model.PrintQueueItem{}, err
	}
	if _, err := s.store.GetTable(ctx, req.TableID); err != nil {
		return model.PrintQueueItem{}, notFound(err, "table")
	}
	created, err := s.store.CreatePrintItem(ctx, it)
	if err != nil {
		return model.PrintQueueItem{}, fmt.Errorf("create print item: %w", err)
	}
	s.notifier.Publish(ws.TopicPrinters, EventPrintCreated, created)
	return created, nil
}

func (s *PrintService) MarkPrinted(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error) {
	return s.update(ctx, id, func(it *model.PrintQueueItem) error {
		return printqueue.MarkPrinted(it, s.now())
	})
}

func (s *PrintService) MarkError(ctx context.Context, id uuid.UUID, message string) (model.PrintQueueItem, error) {
	return s.update(ctx, id, func(it *model.PrintQueueItem) error {
		return printqueue.MarkError(it, message)
	})
}

// Retry puts a failed item back in the queue. Retries only happen on
// operator request.
func (s *PrintService) Retry(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error) {
	return s.update(ctx, id, printqueue.Retry)
}

// Delete removes an item in any state.
func (s *PrintService) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.store.DeletePrintItem(ctx, id)
	if err != nil {
		return fmt.Errorf("delete print item: %w", err)
	}
	if n == 0 {
		return apierror.New(apierror.KindNotFound, "print item not found")
	}
	s.notifier.Publish(ws.TopicPrinters, EventPrintDeleted, map[string]uuid.UUID{"id": id})
	return nil
}

func (s *PrintService) update(ctx context.Context, id uuid.UUID, apply func(*model.PrintQueueItem) error) (model.PrintQueueItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.PrintQueueItem{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	it, err := store.GetPrintItemForUpdate(ctx, id)
	if err != nil {
		return model.PrintQueueItem{}, notFound(err, "print item")
	}
	if err := apply(&it); err != nil {
		return model.PrintQueueItem{}, err
	}
	updated, err := store.UpdatePrintItem(ctx, it)
	if err != nil {
		return model.PrintQueueItem{}, fmt.Errorf("update print item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.PrintQueueItem{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.Publish(ws.TopicPrinters, EventPrintUpdated, updated)
	return updated, nil
}
