package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/gate"
	"github.com/tableside/api/internal/model"
	"github.com/tableside/api/internal/ws"
)

// SystemStore defines the DB methods needed by SystemService.
type SystemStore interface {
	GetSystemStatus(ctx context.Context) (model.SystemStatus, error)
	UpdateSystemStatus(ctx context.Context, arg database.UpdateSystemStatusParams) (model.SystemStatus, error)
}

// Broadcaster propagates a status change to other API instances.
type Broadcaster interface {
	Broadcast(ctx context.Context, st model.SystemStatus) error
}

// SystemService reads and writes the order gate. The database row is
// authoritative; the in-process gate holds the latest snapshot.
type SystemService struct {
	store       SystemStore
	gate        *gate.Gate
	broadcaster Broadcaster
	notifier    Notifier
}

// NewSystemService creates a new SystemService. broadcaster may be nil.
func NewSystemService(store SystemStore, g *gate.Gate, broadcaster Broadcaster, notifier Notifier) *SystemService {
	return &SystemService{store: store, gate: g, broadcaster: broadcaster, notifier: orNop(notifier)}
}

// Load refreshes the gate from the database.
func (s *SystemService) Load(ctx context.Context) (model.SystemStatus, error) {
	st, err := s.store.GetSystemStatus(ctx)
	if err != nil {
		return model.SystemStatus{}, fmt.Errorf("get system status: %w", err)
	}
	s.gate.Publish(st)
	return st, nil
}

// Status returns the current snapshot.
func (s *SystemService) Status() model.SystemStatus {
	return s.gate.Snapshot()
}

// SetStatus opens or closes the gate. Closing requires a reason.
func (s *SystemService) SetStatus(ctx context.Context, enabled bool, reason string, by uuid.UUID) (model.SystemStatus, error) {
	reason, err := gate.Validate(enabled, reason)
	if err != nil {
		return model.SystemStatus{}, err
	}

	st, err := s.store.UpdateSystemStatus(ctx, database.UpdateSystemStatusParams{
		OrdersEnabled: enabled,
		Reason:        reason,
		UpdatedBy:     by,
	})
	if err != nil {
		return model.SystemStatus{}, fmt.Errorf("update system status: %w", err)
	}
	s.gate.Publish(st)

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx, st); err != nil {
			// Peers catch up on their next Load.
			log.Error().Err(err).Int64("version", st.Version).Msg("system: broadcast status")
		}
	}

	log.Info().
		Bool("orders_enabled", st.OrdersEnabled).
		Str("reason", st.Reason).
		Str("updated_by", by.String()).
		Msg("system: order gate changed")

	s.notifier.Publish(ws.TopicFloor, EventSystemUpdated, st)
	return st, nil
}
