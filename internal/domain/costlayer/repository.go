// Package costlayer owns cost layers: it creates them on inbound events and
// depletes them FIFO on outbound ones. No other package mutates RemainingQty.
package costlayer

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Repository defines persistence for cost layers.
type Repository interface {
	// InsertLayer stores a new layer and assigns its Seq.
	InsertLayer(ctx context.Context, layer *entity.CostLayer) error

	// LockEligible returns layers with remaining > 0 and received_at <= asOf,
	// oldest first (received_at, seq), row-locked until the transaction ends.
	LockEligible(ctx context.Context, key StockKey, asOf time.Time) ([]entity.CostLayer, error)

	// Deplete subtracts qty from a layer's remaining quantity. Fails if the
	// layer no longer holds qty.
	Deplete(ctx context.Context, layerID id.ID, qty types.Quantity) error

	// SumRemaining returns on-hand quantity for the key.
	SumRemaining(ctx context.Context, key StockKey) (types.Quantity, error)

	// LatestLayer returns the most recently received layer or NotFound.
	LatestLayer(ctx context.Context, key StockKey) (*entity.CostLayer, error)

	// ListLayers returns layers matching filter in FIFO order.
	ListLayers(ctx context.Context, filter LayerFilter) ([]entity.CostLayer, error)
}

// StockKey identifies the stock of one item at one branch.
type StockKey struct {
	OrgID    id.ID
	BranchID id.ID
	ItemID   id.ID
}

// LayerFilter narrows ListLayers.
type LayerFilter struct {
	OrgID          id.ID
	BranchID       *id.ID
	ItemID         *id.ID
	ReceivedBefore *time.Time
	OnlyRemaining  bool
}
