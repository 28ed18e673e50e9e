// Package period gates writes into monthly inventory periods and closes them
// behind a deterministic pre-close blockers check.
package period

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Repository defines persistence for periods and their frozen close artifacts.
type Repository interface {
	Get(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error)

	// GetForUpdate loads the period holding an exclusive row lock until the
	// transaction ends.
	GetForUpdate(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error)

	// FindByMonth returns the branch's period or NotFound.
	FindByMonth(ctx context.Context, orgID, branchID id.ID, year, month int) (*entity.InventoryPeriod, error)

	// CreateIfAbsent stores p unless the branch already has that month.
	// It returns the stored row and whether p was inserted.
	CreateIfAbsent(ctx context.Context, p *entity.InventoryPeriod) (*entity.InventoryPeriod, bool, error)

	// LockFrom share-locks the branch's periods from (year, month) onward and
	// returns them in chronological order.
	LockFrom(ctx context.Context, orgID, branchID id.ID, year, month int) ([]entity.InventoryPeriod, error)

	List(ctx context.Context, filter ListFilter) ([]entity.InventoryPeriod, error)

	// MarkClosed flips an OPEN period to CLOSED.
	MarkClosed(ctx context.Context, periodID id.ID, at time.Time, actorID string) error

	InsertSnapshot(ctx context.Context, rows []entity.ValuationSnapshot) error
	InsertMovementSummaries(ctx context.Context, rows []entity.MovementSummary) error

	InsertEvent(ctx context.Context, event *entity.PeriodEvent) error
	ListEvents(ctx context.Context, periodID id.ID) ([]entity.PeriodEvent, error)

	// NegativeStock returns items of the branch whose remaining layer
	// quantity sums below zero.
	NegativeStock(ctx context.Context, orgID, branchID id.ID) ([]ItemQty, error)

	// LedgerImbalances returns items of the branch whose ledger quantity sum
	// differs from their remaining layer quantity sum.
	LedgerImbalances(ctx context.Context, orgID, branchID id.ID) ([]Imbalance, error)
}

// ListFilter narrows List.
type ListFilter struct {
	OrgID    id.ID
	BranchID *id.ID
	Status   *entity.PeriodStatus
	Year     *int
}

// ItemQty is an on-hand quantity of one item.
type ItemQty struct {
	ItemID id.ID          `db:"item_id"`
	Qty    types.Quantity `db:"qty"`
}

// Imbalance is a conservation mismatch of one item.
type Imbalance struct {
	ItemID       id.ID          `db:"item_id"`
	LedgerQty    types.Quantity `db:"ledger_qty"`
	RemainingQty types.Quantity `db:"remaining_qty"`
}

// PayloadCodec stores close-event blocker lists, compressing large ones.
type PayloadCodec interface {
	Encode(data []byte) ([]byte, bool, error)
	Decode(data []byte, compressed bool) ([]byte, error)
}
