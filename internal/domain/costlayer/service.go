package costlayer

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// Store provides cost layer operations.
// Both mutating operations join the caller's transaction when one is in ctx.
type Store struct {
	repo Repository
	txm  tx.Manager
}

// NewStore creates a new cost layer store.
func NewStore(repo Repository, txm tx.Manager) *Store {
	return &Store{repo: repo, txm: txm}
}

// NewLayer describes an inbound receipt of stock.
type NewLayer struct {
	Key           StockKey
	Qty           types.Quantity
	UnitCost      types.Money
	ReceivedAt    time.Time
	SourceType    entity.SourceType
	SourceID      string
	LedgerEntryID id.ID
}

// AddLayer creates a layer holding the whole received quantity.
func (s *Store) AddLayer(ctx context.Context, in NewLayer) (*entity.CostLayer, error) {
	if !in.Qty.IsPositive() {
		return nil, apperror.NewInvalidQuantity("layer quantity must be positive").
			WithDetail("qty", in.Qty.String())
	}
	if in.UnitCost.IsNegative() {
		return nil, apperror.NewValidation("unit cost cannot be negative").
			WithDetail("unit_cost", in.UnitCost.String())
	}

	layer := &entity.CostLayer{
		ID:            id.New(),
		OrgID:         in.Key.OrgID,
		BranchID:      in.Key.BranchID,
		ItemID:        in.Key.ItemID,
		ReceivedAt:    in.ReceivedAt.UTC(),
		UnitCost:      in.UnitCost,
		ReceivedQty:   in.Qty,
		RemainingQty:  in.Qty,
		SourceType:    in.SourceType,
		SourceID:      in.SourceID,
		LedgerEntryID: in.LedgerEntryID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.InsertLayer(ctx, layer); err != nil {
		return nil, fmt.Errorf("insert cost layer: %w", err)
	}

	logger.Debug(ctx, "cost layer added",
		"layer_id", layer.ID,
		"item_id", layer.ItemID,
		"qty", layer.ReceivedQty,
		"unit_cost", layer.UnitCost,
	)
	return layer, nil
}

// DepleteRequest describes an outbound movement to be costed FIFO.
type DepleteRequest struct {
	Key           StockKey
	Qty           types.Quantity
	AsOf          time.Time
	LedgerEntryID id.ID
}

// DepleteFIFO consumes Qty from the oldest eligible layers.
//
// The eligible layers are locked first and the whole plan is computed in
// memory; only a satisfiable plan is written. An unsatisfiable request
// returns INSUFFICIENT_STOCK having touched nothing.
func (s *Store) DepleteFIFO(ctx context.Context, req DepleteRequest) ([]entity.BatchConsumption, error) {
	if !req.Qty.IsPositive() {
		return nil, apperror.NewInvalidQuantity("depletion quantity must be positive").
			WithDetail("qty", req.Qty.String())
	}

	var consumptions []entity.BatchConsumption
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		layers, err := s.repo.LockEligible(ctx, req.Key, req.AsOf.UTC())
		if err != nil {
			return fmt.Errorf("lock eligible layers: %w", err)
		}

		plan, available := PlanFIFO(layers, req.Qty)
		if plan == nil {
			return apperror.NewInsufficientStock(
				req.Key.ItemID.String(),
				req.Key.BranchID.String(),
				req.Qty.String(),
				available.String(),
			)
		}
		if got := entity.TotalConsumed(plan); got != req.Qty {
			return apperror.NewInvariantViolation("fifo plan does not cover requested quantity").
				WithDetail("planned", got.String()).
				WithDetail("requested", req.Qty.String())
		}

		for i := range plan {
			if err := s.repo.Deplete(ctx, plan[i].LayerID, plan[i].QtyConsumed); err != nil {
				return fmt.Errorf("deplete layer %s: %w", plan[i].LayerID, err)
			}
			plan[i].LedgerEntryID = req.LedgerEntryID
			plan[i].OccurredAt = req.AsOf.UTC()
		}
		consumptions = plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "fifo depletion",
		"item_id", req.Key.ItemID,
		"branch_id", req.Key.BranchID,
		"qty", req.Qty,
		"layers", len(consumptions),
	)
	return consumptions, nil
}

// PlanFIFO computes the consumptions satisfying qty from layers, which must
// already be in FIFO order. It returns nil and the available total when the
// layers cannot cover qty.
func PlanFIFO(layers []entity.CostLayer, qty types.Quantity) ([]entity.BatchConsumption, types.Quantity) {
	var available types.Quantity
	for i := range layers {
		available += layers[i].RemainingQty
	}
	if available < qty {
		return nil, available
	}

	plan := make([]entity.BatchConsumption, 0, len(layers))
	need := qty
	for i := range layers {
		if need == 0 {
			break
		}
		l := &layers[i]
		if !l.RemainingQty.IsPositive() {
			continue
		}
		take := l.RemainingQty.Min(need)
		plan = append(plan, entity.BatchConsumption{
			LayerID:     l.ID,
			QtyConsumed: take,
			UnitCost:    l.UnitCost,
			CostTotal:   take.Cost(l.UnitCost),
		})
		need -= take
	}
	return plan, available
}

// OnHand returns the sum of remaining quantity for key.
func (s *Store) OnHand(ctx context.Context, key StockKey) (types.Quantity, error) {
	return s.repo.SumRemaining(ctx, key)
}

// LatestUnitCost returns the unit cost of the most recently received layer.
// ok is false when the item never had stock at the branch.
func (s *Store) LatestUnitCost(ctx context.Context, key StockKey) (cost types.Money, ok bool, err error) {
	layer, err := s.repo.LatestLayer(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return types.Zero(), false, nil
		}
		return types.Zero(), false, err
	}
	return layer.UnitCost, true, nil
}

// Layers lists layers for reporting.
func (s *Store) Layers(ctx context.Context, filter LayerFilter) ([]entity.CostLayer, error) {
	return s.repo.ListLayers(ctx, filter)
}
