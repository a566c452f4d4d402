package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/billing"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/model"
)

// ReportStore defines the DB methods needed by ReportService.
type ReportStore interface {
	GetRoom(ctx context.Context, id uuid.UUID) (model.Room, error)
	ListRoomTables(ctx context.Context, roomID uuid.UUID, from, to time.Time, includeOpen bool) ([]database.RoomTableRow, error)
	ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]model.Order, error)
}

// RoomReportTable is one table's share of a room report.
type RoomReportTable struct {
	TableID   uuid.UUID                 `json:"table_id"`
	Name      string                    `json:"name"`
	IsClosed  bool                      `json:"is_closed"`
	ClosedAt  *time.Time                `json:"closed_at"`
	Bill      *model.BillClose          `json:"bill,omitempty"`
	BaseTotal decimal.Decimal           `json:"base_total"`
	Items     []billing.ConsumptionLine `json:"items"`
}

// RoomReport aggregates what was consumed on a room's tables during a day.
type RoomReport struct {
	Room          model.Room                `json:"room"`
	Date          string                    `json:"date"`
	Tables        []RoomReportTable         `json:"tables"`
	Items         []billing.ConsumptionLine `json:"items"`
	BaseTotal     decimal.Decimal           `json:"base_total"`
	ChargedToRoom decimal.Decimal           `json:"charged_to_room"`
	PaidOnSpot    decimal.Decimal           `json:"paid_on_spot"`
}

// ReportService builds read-only reports.
type ReportService struct {
	store ReportStore
}

// NewReportService creates a new ReportService.
func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// RoomConsumption reports the tables of a room created on day (in day's
// location). Open tables are included only when includeOpen is set.
func (s *ReportService) RoomConsumption(ctx context.Context, roomID uuid.UUID, day time.Time, includeOpen bool) (RoomReport, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return RoomReport{}, notFound(err, "room")
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	rows, err := s.store.ListRoomTables(ctx, roomID, from, to, includeOpen)
	if err != nil {
		return RoomReport{}, fmt.Errorf("list room tables: %w", err)
	}

	report := RoomReport{
		Room:          room,
		Date:          from.Format("2006-01-02"),
		Tables:        []RoomReportTable{},
		BaseTotal:     decimal.Zero,
		ChargedToRoom: decimal.Zero,
		PaidOnSpot:    decimal.Zero,
	}
	var all []model.Order
	for _, row := range rows {
		orders, err := s.store.ListOrdersByTable(ctx, row.Table.ID)
		if err != nil {
			return RoomReport{}, fmt.Errorf("list orders for table %s: %w", row.Table.ID, err)
		}
		all = append(all, orders...)

		base := billing.BaseTotal(orders)
		report.BaseTotal = report.BaseTotal.Add(base)
		if row.Bill != nil {
			if row.Bill.AddedToRoom() {
				report.ChargedToRoom = report.ChargedToRoom.Add(row.Bill.GrandTotal)
			} else {
				report.PaidOnSpot = report.PaidOnSpot.Add(row.Bill.GrandTotal)
			}
		}
		report.Tables = append(report.Tables, RoomReportTable{
			TableID:   row.Table.ID,
			Name:      row.Table.Name,
			IsClosed:  row.Table.IsClosed,
			ClosedAt:  row.Table.ClosedAt,
			Bill:      row.Bill,
			BaseTotal: base,
			Items:     billing.Consumption(orders),
		})
	}
	report.Items = billing.Consumption(all)
	if report.Items == nil {
		report.Items = []billing.ConsumptionLine{}
	}
	return report, nil
}
