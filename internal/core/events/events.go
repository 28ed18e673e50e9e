// Package events defines domain events handed to the transactional outbox.
package events

import (
	"context"

	"stockledger/internal/core/id"
)

// Event types.
const (
	PeriodClosed = "inventory.period.closed"
)

// Aggregate types.
const (
	AggregateInventoryPeriod = "InventoryPeriod"
)

// DomainEvent represents an event to be published via outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher enqueues events within the caller's transaction. The event is
// delivered only if the transaction commits.
type Publisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}
