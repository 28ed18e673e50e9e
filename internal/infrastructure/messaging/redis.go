// Package messaging delivers outbox messages to the broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/core/id"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// Envelope is the wire form of a published outbox message.
type Envelope struct {
	ID            id.ID           `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   id.ID           `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
	Attempt       int             `json:"attempt"`
}

// NewEnvelope wraps msg for delivery.
func NewEnvelope(msg *postgres.OutboxMessage) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		CreatedAt:     msg.CreatedAt,
		Attempt:       msg.RetryCount + 1,
	}
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

var _ postgres.OutboxHandler = (*RedisHandler)(nil)

// RedisHandler publishes outbox messages on a Redis pub/sub channel.
type RedisHandler struct {
	rdb     publisher
	channel string
}

// NewRedisHandler creates a handler publishing on channel.
func NewRedisHandler(rdb redis.UniversalClient, channel string) *RedisHandler {
	return &RedisHandler{rdb: rdb, channel: channel}
}

// Handle publishes one message. Zero receivers is not an error.
func (h *RedisHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	body, err := json.Marshal(NewEnvelope(msg))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	receivers, err := h.rdb.Publish(ctx, h.channel, body).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	logger.Debug(ctx, "outbox message published",
		"message_id", msg.ID,
		"event_type", msg.EventType,
		"channel", h.channel,
		"receivers", receivers,
	)
	return nil
}

var _ postgres.OutboxHandler = LogHandler{}

// LogHandler only logs messages. Used when no broker is configured.
type LogHandler struct{}

// Handle logs msg.
func (LogHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "outbox message",
		"message_id", msg.ID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType,
	)
	return nil
}
