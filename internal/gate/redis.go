package gate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tableside/api/internal/model"
)

// StatusChannel carries SystemStatus snapshots between API instances.
const StatusChannel = "system:status"

// RedisSync propagates gate changes to every instance sharing a Redis.
// The database row stays authoritative; a missed message is repaired on the
// next write or restart.
type RedisSync struct {
	rdb  *redis.Client
	gate *Gate
}

// NewRedisSync creates a RedisSync that feeds peer snapshots into g.
func NewRedisSync(rdb *redis.Client, g *Gate) *RedisSync {
	return &RedisSync{rdb: rdb, gate: g}
}

// Broadcast publishes s to the other instances.
func (s *RedisSync) Broadcast(ctx context.Context, st model.SystemStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.rdb.Publish(ctx, StatusChannel, data).Err()
}

// Run applies snapshots published by other instances until ctx is done.
func (s *RedisSync) Run(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, StatusChannel)
	defer sub.Close()

	log.Info().Str("channel", StatusChannel).Msg("gate: subscribed")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gate: sync shutting down")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.apply(msg.Payload); err != nil {
				log.Error().Err(err).Msg("gate: bad status message")
			}
		}
	}
}

func (s *RedisSync) apply(payload string) error {
	var st model.SystemStatus
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return err
	}
	if s.gate.Publish(st) {
		log.Info().
			Bool("orders_enabled", st.OrdersEnabled).
			Int64("version", st.Version).
			Msg("gate: status updated from peer")
	}
	return nil
}
