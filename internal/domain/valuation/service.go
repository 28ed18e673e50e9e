// Package valuation computes period-boundary inventory valuations and
// per-item movement summaries. Everything here is read-only and deterministic
// given the ledger state.
package valuation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Repository defines the reads valuation needs.
type Repository interface {
	GetPeriod(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error)

	// LayersReceivedBefore returns every layer of the branch received before
	// boundary, including exhausted ones.
	LayersReceivedBefore(ctx context.Context, orgID, branchID id.ID, boundary time.Time) ([]entity.CostLayer, error)

	// ConsumedSince returns the branch's layer draws made by entries that
	// occurred at or after boundary.
	ConsumedSince(ctx context.Context, orgID, branchID id.ID, boundary time.Time) ([]entity.BatchConsumption, error)

	// AggregateMovements totals ledger entries with occurred_at in [from, to)
	// by (item, event type).
	AggregateMovements(ctx context.Context, orgID, branchID id.ID, from, to time.Time) ([]entity.MovementSummary, error)

	// FrozenSnapshot and FrozenMovements return the rows captured at close.
	FrozenSnapshot(ctx context.Context, periodID id.ID) ([]entity.ValuationSnapshot, error)
	FrozenMovements(ctx context.Context, periodID id.ID) ([]entity.MovementSummary, error)
}

// Service provides valuation and movement aggregation.
type Service struct {
	repo Repository
}

// NewService creates a new valuation service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Snapshot returns the per-item valuation at the end of the period.
// Closed periods return their frozen rows.
func (s *Service) Snapshot(ctx context.Context, periodID id.ID) ([]entity.ValuationSnapshot, error) {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.IsClosed() {
		return s.repo.FrozenSnapshot(ctx, periodID)
	}
	return s.ComputeSnapshot(ctx, period)
}

// ComputeSnapshot values the period's branch as of period.End() from live data.
func (s *Service) ComputeSnapshot(ctx context.Context, period *entity.InventoryPeriod) ([]entity.ValuationSnapshot, error) {
	boundary := period.End()

	layers, err := s.repo.LayersReceivedBefore(ctx, period.OrgID, period.BranchID, boundary)
	if err != nil {
		return nil, fmt.Errorf("load layers: %w", err)
	}
	later, err := s.repo.ConsumedSince(ctx, period.OrgID, period.BranchID, boundary)
	if err != nil {
		return nil, fmt.Errorf("load later consumptions: %w", err)
	}

	return ValueAt(period.ID, period.BranchID, layers, later), nil
}

// ValueAt rebuilds each layer's remaining quantity at a boundary by adding
// back draws made after it, then sums value per item. Items with no layer
// activity before the boundary are absent; items fully consumed by then
// appear with zero quantity and value. Rows are ordered by item id.
func ValueAt(periodID, branchID id.ID, layers []entity.CostLayer, laterDraws []entity.BatchConsumption) []entity.ValuationSnapshot {
	addBack := make(map[id.ID]types.Quantity, len(laterDraws))
	for _, c := range laterDraws {
		addBack[c.LayerID] += c.QtyConsumed
	}

	byItem := make(map[id.ID]*entity.ValuationSnapshot)
	for i := range layers {
		l := &layers[i]
		qty := l.RemainingQty + addBack[l.ID]

		row, ok := byItem[l.ItemID]
		if !ok {
			row = &entity.ValuationSnapshot{
				PeriodID:   periodID,
				ItemID:     l.ItemID,
				BranchID:   branchID,
				TotalValue: types.Zero(),
			}
			byItem[l.ItemID] = row
		}
		row.Qty += qty
		row.TotalValue = row.TotalValue.Add(qty.Cost(l.UnitCost))
	}

	out := make([]entity.ValuationSnapshot, 0, len(byItem))
	for _, row := range byItem {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ItemID.String() < out[j].ItemID.String()
	})
	return out
}

// SummarizeMovements returns per-item, per-event-type totals for the period.
// Closed periods return their frozen rows.
func (s *Service) SummarizeMovements(ctx context.Context, periodID id.ID) ([]entity.MovementSummary, error) {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.IsClosed() {
		return s.repo.FrozenMovements(ctx, periodID)
	}
	return s.ComputeMovements(ctx, period)
}

// ComputeMovements aggregates the period's ledger entries from live data.
func (s *Service) ComputeMovements(ctx context.Context, period *entity.InventoryPeriod) ([]entity.MovementSummary, error) {
	rows, err := s.repo.AggregateMovements(ctx, period.OrgID, period.BranchID, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("aggregate movements: %w", err)
	}
	for i := range rows {
		rows[i].PeriodID = period.ID
	}
	SortMovements(rows)
	return rows, nil
}

// SortMovements orders rows by (item id, event type).
func SortMovements(rows []entity.MovementSummary) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].ItemID.String(), rows[j].ItemID.String()
		if a != b {
			return a < b
		}
		return rows[i].EventType < rows[j].EventType
	})
}

// TotalValue sums TotalValue across rows.
func TotalValue(rows []entity.ValuationSnapshot) types.Money {
	total := types.Zero()
	for _, r := range rows {
		total = total.Add(r.TotalValue)
	}
	return total
}
