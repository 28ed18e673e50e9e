// Package ledger records quantity-affecting events as immutable ledger entries,
// driving cost layer mutation and GL posting inside one transaction.
package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
)

// Repository defines persistence for ledger entries and their consumptions.
// Both tables are insert-only.
type Repository interface {
	// FindBySource returns the entry recorded for key or NotFound.
	FindBySource(ctx context.Context, key IdempotencyKey) (*entity.LedgerEntry, error)

	// Insert stores entry. A clash on the idempotency key returns DUPLICATE_EVENT.
	Insert(ctx context.Context, entry *entity.LedgerEntry) error

	// InsertConsumptions stores the layer draws of a depleting entry.
	InsertConsumptions(ctx context.Context, consumptions []entity.BatchConsumption) error

	// Get loads an entry by id.
	Get(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error)

	// ListConsumptions returns the draws of the given entries in insertion order.
	ListConsumptions(ctx context.Context, entryIDs []id.ID) ([]entity.BatchConsumption, error)

	// List returns entries ordered by occurred_at, id.
	List(ctx context.Context, filter EntryFilter) ([]entity.LedgerEntry, error)

	// SumQty returns the sum of signed entry quantities for the key.
	SumQty(ctx context.Context, key costlayer.StockKey) (types.Quantity, error)
}

// IdempotencyKey identifies one source event's effect on one item.
type IdempotencyKey struct {
	OrgID      id.ID
	SourceType entity.SourceType
	SourceID   string
	ItemID     id.ID
}

// EntryFilter narrows List.
type EntryFilter struct {
	OrgID      id.ID
	BranchID   *id.ID
	ItemID     *id.ID
	EventType  *entity.EventType
	SourceType *entity.SourceType
	SourceID   *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// ItemCatalog reads items owned by catalog management.
type ItemCatalog interface {
	GetItem(ctx context.Context, orgID, itemID id.ID) (*entity.InventoryItem, error)
}

// PeriodGate admits writes into the period containing at.
// It creates the period lazily and fails with PERIOD_ALREADY_CLOSED when it
// is closed; the period stays share-locked until the transaction ends.
type PeriodGate interface {
	AcquireOpen(ctx context.Context, orgID, branchID id.ID, at time.Time) (*entity.InventoryPeriod, error)
}
