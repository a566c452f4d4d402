package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/table"
)

// --- Mock transaction ---

// mockTx implements pgx.Tx with only the methods we need.
// Rolling back an uncommitted tx restores the store snapshot taken at Begin.
type mockTx struct {
	store     *memStore
	snap      memState
	committed bool
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.committed {
		m.store.restore(m.snap)
	}
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	store     *memStore
	err       error
	commitErr error
	begun     int
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.begun++
	return &mockTx{store: m.store, snap: m.store.snapshot(), commitErr: m.commitErr}, nil
}

// --- In-memory store ---

type memState struct {
	products map[uuid.UUID]model.Product
	rooms    map[uuid.UUID]model.Room
	tables   []model.Table
	orders   []model.Order
	bills    map[uuid.UUID]model.BillClose
	prints   []model.PrintQueueItem
	status   model.SystemStatus
}

// memStore implements every store interface of this package. fail forces
// the named method to return the given error.
type memStore struct {
	mu sync.Mutex
	memState
	now  time.Time
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		memState: memState{
			products: map[uuid.UUID]model.Product{},
			rooms:    map[uuid.UUID]model.Room{},
			bills:    map[uuid.UUID]model.BillClose{},
			status:   model.SystemStatus{OrdersEnabled: true, Version: 1},
		},
		now:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		fail: map[string]error{},
	}
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memState{
		products: make(map[uuid.UUID]model.Product, len(m.products)),
		rooms:    make(map[uuid.UUID]model.Room, len(m.rooms)),
		tables:   append([]model.Table(nil), m.tables...),
		bills:    make(map[uuid.UUID]model.BillClose, len(m.bills)),
		prints:   append([]model.PrintQueueItem(nil), m.prints...),
		status:   m.status,
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.rooms {
		s.rooms[k] = v
	}
	for k, v := range m.bills {
		s.bills[k] = v
	}
	for _, o := range m.orders {
		o.Items = append([]model.OrderItem(nil), o.Items...)
		s.orders = append(s.orders, o)
	}
	return s
}

func (m *memStore) restore(s memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memState = s
}

func (m *memStore) err(op string) error {
	return m.fail[op]
}

// --- seeding helpers ---

func (m *memStore) addProduct(name, price string, stock *int32) model.Product {
	p := model.Product{ID: uuid.New(), Name: name, Category: "food", Price: decimal.RequireFromString(price), StockQuantity: stock, IsActive: true}
	m.products[p.ID] = p
	return p
}

func (m *memStore) addRoom(number string) model.Room {
	r := model.Room{ID: uuid.New(), Number: number}
	m.rooms[r.ID] = r
	return r
}

func (m *memStore) addTable(name string, roomID *uuid.UUID) model.Table {
	t := model.Table{ID: uuid.New(), Name: name, RoomID: roomID, CreatedBy: uuid.New(), CreatedAt: m.now}
	m.tables = append(m.tables, t)
	return t
}

func (m *memStore) addOrder(tableID uuid.UUID, status enum.OrderStatus, items ...model.OrderItem) model.Order {
	o := model.Order{ID: uuid.New(), TableID: tableID, Status: status, CreatedAt: m.now}
	for _, it := range items {
		it.ID = uuid.New()
		it.OrderID = o.ID
		o.Items = append(o.Items, it)
	}
	m.orders = append(m.orders, o)
	return o
}

func (m *memStore) stockOf(id uuid.UUID) *int32 {
	return m.products[id].StockQuantity
}

func itemOf(p model.Product, qty int32) model.OrderItem {
	return model.OrderItem{ProductID: p.ID, ProductName: p.Name, Quantity: qty, UnitPrice: p.Price}
}

func stock(n int32) *int32 { return &n }

// --- tables ---

func (m *memStore) tableIndex(id uuid.UUID) int {
	for i, t := range m.tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) GetTable(ctx context.Context, id uuid.UUID) (model.Table, error) {
	if err := m.err("GetTable"); err != nil {
		return model.Table{}, err
	}
	i := m.tableIndex(id)
	if i < 0 {
		return model.Table{}, pgx.ErrNoRows
	}
	return m.tables[i], nil
}

func (m *memStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (model.Table, error) {
	return m.GetTable(ctx, id)
}

func (m *memStore) ListTables(ctx context.Context, isClosed *bool) ([]model.Table, error) {
	var out []model.Table
	for _, t := range m.tables {
		if isClosed == nil || t.IsClosed == *isClosed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ListOpenTablesByName(ctx context.Context, name string) ([]model.Table, error) {
	var out []model.Table
	for _, t := range m.tables {
		if !t.IsClosed && table.NameKey(t.Name) == table.NameKey(name) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) CreateTable(ctx context.Context, arg database.CreateTableParams) (model.Table, error) {
	if err := m.err("CreateTable"); err != nil {
		return model.Table{}, err
	}
	return m.addTable(arg.Name, arg.RoomID), nil
}

func (m *memStore) CloseTable(ctx context.Context, id uuid.UUID, at time.Time) (model.Table, error) {
	if err := m.err("CloseTable"); err != nil {
		return model.Table{}, err
	}
	i := m.tableIndex(id)
	if i < 0 {
		return model.Table{}, pgx.ErrNoRows
	}
	m.tables[i].IsClosed = true
	m.tables[i].ClosedAt = &at
	return m.tables[i], nil
}

func (m *memStore) CreateBill(ctx context.Context, b model.BillClose) (model.BillClose, error) {
	if err := m.err("CreateBill"); err != nil {
		return model.BillClose{}, err
	}
	m.bills[b.TableID] = b
	return b, nil
}

func (m *memStore) GetBill(ctx context.Context, tableID uuid.UUID) (model.BillClose, error) {
	b, ok := m.bills[tableID]
	if !ok {
		return model.BillClose{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *memStore) ListRoomTables(ctx context.Context, roomID uuid.UUID, from, to time.Time, includeOpen bool) ([]database.RoomTableRow, error) {
	var out []database.RoomTableRow
	for _, t := range m.tables {
		b, billed := m.bills[t.ID]
		linked := t.RoomID != nil && *t.RoomID == roomID
		if billed && b.RoomID != nil && *b.RoomID == roomID {
			linked = true
		}
		if !linked || t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) || (!t.IsClosed && !includeOpen) {
			continue
		}
		row := database.RoomTableRow{Table: t}
		if billed {
			row.Bill = &b
		}
		out = append(out, row)
	}
	return out, nil
}

// --- catalog ---

func (m *memStore) GetRoom(ctx context.Context, id uuid.UUID) (model.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return model.Room{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *memStore) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) TakeStock(ctx context.Context, id uuid.UUID, n int64) (bool, error) {
	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	if p.StockQuantity == nil {
		return true, nil
	}
	if int64(*p.StockQuantity) < n {
		return false, nil
	}
	p.StockQuantity = stock(*p.StockQuantity - int32(n))
	m.products[id] = p
	return true, nil
}

func (m *memStore) ReturnStock(ctx context.Context, id uuid.UUID, n int64) error {
	p, ok := m.products[id]
	if !ok || p.StockQuantity == nil {
		return nil
	}
	p.StockQuantity = stock(*p.StockQuantity + int32(n))
	m.products[id] = p
	return nil
}

// --- orders ---

func (m *memStore) orderIndex(id uuid.UUID) int {
	for i, o := range m.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range m.orders {
		if o.TableID == tableID {
			o.Items = append([]model.OrderItem(nil), o.Items...)
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (model.Order, error) {
	if err := m.err("CreateOrder"); err != nil {
		return model.Order{}, err
	}
	o := model.Order{ID: uuid.New(), TableID: arg.TableID, Status: enum.OrderStatusPending, CreatedBy: arg.CreatedBy, CreatedAt: m.now}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, it model.OrderItem) (model.OrderItem, error) {
	if err := m.err("CreateOrderItem"); err != nil {
		return model.OrderItem{}, err
	}
	i := m.orderIndex(it.OrderID)
	if i < 0 {
		return model.OrderItem{}, pgx.ErrNoRows
	}
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	m.orders[i].Items = append(m.orders[i].Items, it)
	return it, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (model.Order, error) {
	i := m.orderIndex(id)
	if i < 0 {
		return model.Order{}, pgx.ErrNoRows
	}
	o := m.orders[i]
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o, nil
}

func (m *memStore) UpdateOrderItem(ctx context.Context, id uuid.UUID, quantity int32, comment string) error {
	for i := range m.orders {
		for j := range m.orders[i].Items {
			if m.orders[i].Items[j].ID == id {
				m.orders[i].Items[j].Quantity = quantity
				m.orders[i].Items[j].Comment = comment
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	for i := range m.orders {
		for j, it := range m.orders[i].Items {
			if it.ID == id {
				m.orders[i].Items = append(m.orders[i].Items[:j:j], m.orders[i].Items[j+1:]...)
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) SetOrderStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus, at time.Time) (model.Order, error) {
	if err := m.err("SetOrderStatus"); err != nil {
		return model.Order{}, err
	}
	i := m.orderIndex(id)
	if i < 0 {
		return model.Order{}, pgx.ErrNoRows
	}
	m.orders[i].Status = status
	switch status {
	case enum.OrderStatusFinished:
		m.orders[i].FinishedAt = &at
	case enum.OrderStatusCancelled:
		m.orders[i].CancelledAt = &at
	}
	return m.GetOrderForUpdate(ctx, id)
}

// --- print queue ---

func (m *memStore) printIndex(id uuid.UUID) int {
	for i, it := range m.prints {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) ListPrintItems(ctx context.Context, status string) ([]model.PrintQueueItem, error) {
	out := []model.PrintQueueItem{}
	for _, it := range m.prints {
		if status == "" || string(it.Status) == status {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) GetPrintItemForUpdate(ctx context.Context, id uuid.UUID) (model.PrintQueueItem, error) {
	i := m.printIndex(id)
	if i < 0 {
		return model.PrintQueueItem{}, pgx.ErrNoRows
	}
	return m.prints[i], nil
}

func (m *memStore) CreatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error) {
	if err := m.err("CreatePrintItem"); err != nil {
		return model.PrintQueueItem{}, err
	}
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	m.prints = append(m.prints, it)
	return it, nil
}

func (m *memStore) UpdatePrintItem(ctx context.Context, it model.PrintQueueItem) (model.PrintQueueItem, error) {
	i := m.printIndex(it.ID)
	if i < 0 {
		return model.PrintQueueItem{}, pgx.ErrNoRows
	}
	m.prints[i] = it
	return it, nil
}

func (m *memStore) DeletePrintItem(ctx context.Context, id uuid.UUID) (int64, error) {
	i := m.printIndex(id)
	if i < 0 {
		return 0, nil
	}
	m.prints = append(m.prints[:i:i], m.prints[i+1:]...)
	return 1, nil
}

// --- system status ---

func (m *memStore) GetSystemStatus(ctx context.Context) (model.SystemStatus, error) {
	if err := m.err("GetSystemStatus"); err != nil {
		return model.SystemStatus{}, err
	}
	return m.status, nil
}

func (m *memStore) UpdateSystemStatus(ctx context.Context, arg database.UpdateSystemStatusParams) (model.SystemStatus, error) {
	if err := m.err("UpdateSystemStatus"); err != nil {
		return model.SystemStatus{}, err
	}
	m.status = model.SystemStatus{
		OrdersEnabled: arg.OrdersEnabled,
		Reason:        arg.Reason,
		Version:       m.status.Version + 1,
		UpdatedAt:     m.now,
		UpdatedBy:     arg.UpdatedBy,
	}
	return m.status, nil
}

// --- notifier ---

type published struct {
	topic     string
	eventType string
	payload   any
}

type recordingNotifier struct {
	events []published
}

func (r *recordingNotifier) Publish(topic, eventType string, payload any) {
	r.events = append(r.events, published{topic, eventType, payload})
}

func (r *recordingNotifier) types() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.topic+":"+e.eventType)
	}
	return out
}
