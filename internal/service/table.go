package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/table"
	"github.com/tableside/api/internal/ws"
)

// TableStore defines the DB methods needed by TableService.
// Satisfied by *database.Queries.
type TableStore interface {
	ListTables(ctx context.Context, isClosed *bool) ([]model.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (model.Table, error)
	ListOpenTablesByName(ctx context.Context, name string) ([]model.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (model.Table, error)
	ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]model.Order, error)
	GetBill(ctx context.Context, tableID uuid.UUID) (model.BillClose, error)
	GetRoom(ctx context.Context, id uuid.UUID) (model.Room, error)
}

// OpenTableRequest is the validated input for opening a table.
type OpenTableRequest struct {
	Name      string
	RoomID    *uuid.UUID
	CreatedBy uuid.UUID
}

// TableService opens tables and reads them back with their orders.
type TableService struct {
	store    TableStore
	policy   enum.TableNamePolicy
	notifier Notifier
}

// NewTableService creates a new TableService.
func NewTableService(store TableStore, policy enum.TableNamePolicy, notifier Notifier) *TableService {
	return &TableService{store: store, policy: policy, notifier: orNop(notifier)}
}

// List returns tables with their orders attached, filtered by closed state
// when isClosed is set.
func (s *TableService) List(ctx context.Context, isClosed *bool) ([]model.Table, error) {
	tables, err := s.store.ListTables(ctx, isClosed)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for i := range tables {
		orders, err := s.store.ListOrdersByTable(ctx, tables[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list orders for table %s: %w", tables[i].ID, err)
		}
		tables[i].Orders = orders
	}
	return tables, nil
}

// Get returns one table with its orders and, once closed, its bill.
func (s *TableService) Get(ctx context.Context, id uuid.UUID) (model.Table, error) {
	t, err := s.store.GetTable(ctx, id)
	if err != nil {
		return model.Table{}, notFound(err, "table")
	}
	if t.Orders, err = s.store.ListOrdersByTable(ctx, id); err != nil {
		return model.Table{}, fmt.Errorf("list orders: %w", err)
	}
	if t.IsClosed {
		bill, err := s.store.GetBill(ctx, id)
		switch {
		case err == nil:
			t.Bill = &bill
		case !errors.Is(err, pgx.ErrNoRows):
			return model.Table{}, fmt.Errorf("get bill: %w", err)
		}
	}
	return t, nil
}

// Orders returns the orders of an existing table.
func (s *TableService) Orders(ctx context.Context, id uuid.UUID) ([]model.Order, error) {
	if _, err := s.store.GetTable(ctx, id); err != nil {
		return nil, notFound(err, "table")
	}
	return s.store.ListOrdersByTable(ctx, id)
}

// Open creates a table. Names are unique among open tables; the database
// enforces the same rule for concurrent opens.
func (s *TableService) Open(ctx context.Context, req OpenTableRequest) (model.Table, error) {
	name, err := table.ValidateName(req.Name, s.policy)
	if err != nil {
		return model.Table{}, err
	}

	if req.RoomID != nil {
		if _, err := s.store.GetRoom(ctx, *req.RoomID); err != nil {
			return model.Table{}, notFound(err, "room")
		}
	}

	existing, err := s.store.ListOpenTablesByName(ctx, name)
	if err != nil {
		return model.Table{}, fmt.Errorf("check table name: %w", err)
	}
	if err := table.CheckDuplicate(name, existing); err != nil {
		return model.Table{}, err
	}

	t, err := s.store.CreateTable(ctx, database.CreateTableParams{
		Name:      name,
		RoomID:    req.RoomID,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		if isUniqueViolation(err, database.TableNameConstraint) {
			return model.Table{}, apierror.New(apierror.KindDuplicateName, "table %q is already open", name)
		}
		return model.Table{}, fmt.Errorf("create table: %w", err)
	}
	t.Orders = []model.Order{}

	s.notifier.Publish(ws.TopicFloor, EventTableUpdated, t)
	return t, nil
}
