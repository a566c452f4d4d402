package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/service"
)

// RoomStore defines the database methods needed by room handlers.
type RoomStore interface {
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (model.Room, error)
}

// RoomReporter builds the room consumption report.
// Satisfied by *service.ReportService.
type RoomReporter interface {
	RoomConsumption(ctx context.Context, roomID uuid.UUID, day time.Time, includeOpen bool) (service.RoomReport, error)
}

// RoomHandler handles room endpoints.
type RoomHandler struct {
	store    RoomStore
	reporter RoomReporter
	loc      *time.Location
}

// NewRoomHandler creates a RoomHandler. Report dates are read in loc.
func NewRoomHandler(store RoomStore, reporter RoomReporter, loc *time.Location) *RoomHandler {
	if loc == nil {
		loc = time.Local
	}
	return &RoomHandler{store: store, reporter: reporter, loc: loc}
}

// RegisterRoutes registers room endpoints. Expected to be mounted at /rooms.
func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/consumption-report", h.ConsumptionReport)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	room, err := h.store.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, notFound(err, "room"))
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ConsumptionReport handles GET /rooms/{id}/consumption-report?date=YYYY-MM-DD&include_all_tables=bool.
// date defaults to today.
func (h *RoomHandler) ConsumptionReport(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	day := time.Now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			badRequest(w, r, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = d
	}
	includeAll, err := boolQuery(r, "include_all_tables")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.reporter.RoomConsumption(r.Context(), id, day, includeAll != nil && *includeAll)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// notFound maps pgx.ErrNoRows from a direct store read.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apierror.New(apierror.KindNotFound, "%s not found", what)
	}
	return err
}
