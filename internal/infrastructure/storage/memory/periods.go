package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/period"
	"stockledger/internal/domain/valuation"
)

var (
	_ period.Repository    = (*PeriodRepo)(nil)
	_ valuation.Repository = (*ReportRepo)(nil)
)

// PeriodRepo implements period.Repository.
type PeriodRepo struct{ s *Store }

func findPeriod(st *state, periodID id.ID) *entity.InventoryPeriod {
	for i := range st.periods {
		if st.periods[i].ID == periodID {
			return &st.periods[i]
		}
	}
	return nil
}

func monthIndex(year, month int) int { return year*12 + month - 1 }

func (r *PeriodRepo) Get(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	var found *entity.InventoryPeriod
	r.s.read(ctx, func(st *state) {
		if p := findPeriod(st, periodID); p != nil {
			cp := *p
			found = &cp
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("inventory period", periodID.String())
	}
	return found, nil
}

func (r *PeriodRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	return r.Get(ctx, periodID)
}

func (r *PeriodRepo) FindByMonth(ctx context.Context, orgID, branchID id.ID, year, month int) (*entity.InventoryPeriod, error) {
	var found *entity.InventoryPeriod
	r.s.read(ctx, func(st *state) {
		for _, p := range st.periods {
			if p.OrgID == orgID && p.BranchID == branchID && p.Year == year && p.Month == month {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("inventory period", fmt.Sprintf("%04d-%02d", year, month))
	}
	return found, nil
}

func (r *PeriodRepo) CreateIfAbsent(ctx context.Context, p *entity.InventoryPeriod) (*entity.InventoryPeriod, bool, error) {
	var (
		stored  entity.InventoryPeriod
		created bool
	)
	err := r.s.write(ctx, func(st *state) error {
		for _, existing := range st.periods {
			if existing.OrgID == p.OrgID && existing.BranchID == p.BranchID && existing.Year == p.Year && existing.Month == p.Month {
				stored = existing
				return nil
			}
		}
		st.periods = append(st.periods, *p)
		stored, created = *p, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (r *PeriodRepo) LockFrom(ctx context.Context, orgID, branchID id.ID, year, month int) ([]entity.InventoryPeriod, error) {
	from := monthIndex(year, month)
	var out []entity.InventoryPeriod
	r.s.read(ctx, func(st *state) {
		for _, p := range st.periods {
			if p.OrgID == orgID && p.BranchID == branchID && monthIndex(p.Year, p.Month) >= from {
				out = append(out, p)
			}
		}
	})
	sortPeriods(out)
	return out, nil
}

func sortPeriods(ps []entity.InventoryPeriod) {
	sort.SliceStable(ps, func(i, j int) bool {
		return monthIndex(ps[i].Year, ps[i].Month) < monthIndex(ps[j].Year, ps[j].Month)
	})
}

func (r *PeriodRepo) List(ctx context.Context, filter period.ListFilter) ([]entity.InventoryPeriod, error) {
	var out []entity.InventoryPeriod
	r.s.read(ctx, func(st *state) {
		for _, p := range st.periods {
			switch {
			case p.OrgID != filter.OrgID,
				filter.BranchID != nil && p.BranchID != *filter.BranchID,
				filter.Status != nil && p.Status != *filter.Status,
				filter.Year != nil && p.Year != *filter.Year:
				continue
			}
			out = append(out, p)
		}
	})
	sortPeriods(out)
	return out, nil
}

func (r *PeriodRepo) MarkClosed(ctx context.Context, periodID id.ID, at time.Time, actorID string) error {
	return r.s.write(ctx, func(st *state) error {
		p := findPeriod(st, periodID)
		if p == nil {
			return apperror.NewNotFound("inventory period", periodID.String())
		}
		if p.IsClosed() {
			return apperror.NewPeriodAlreadyClosed(p.ID.String(), p.Label())
		}
		p.Status = entity.PeriodClosed
		p.ClosedAt = &at
		p.ClosedByID = &actorID
		return nil
	})
}

func (r *PeriodRepo) InsertSnapshot(ctx context.Context, rows []entity.ValuationSnapshot) error {
	return r.s.write(ctx, func(st *state) error {
		st.snapshots = append(st.snapshots, rows...)
		return nil
	})
}

func (r *PeriodRepo) InsertMovementSummaries(ctx context.Context, rows []entity.MovementSummary) error {
	return r.s.write(ctx, func(st *state) error {
		st.movements = append(st.movements, rows...)
		return nil
	})
}

func (r *PeriodRepo) InsertEvent(ctx context.Context, event *entity.PeriodEvent) error {
	return r.s.write(ctx, func(st *state) error {
		stored := *event
		stored.Blockers = nil
		stored.Payload = slices.Clone(event.Payload)
		st.periodEvents = append(st.periodEvents, stored)
		return nil
	})
}

func (r *PeriodRepo) ListEvents(ctx context.Context, periodID id.ID) ([]entity.PeriodEvent, error) {
	var out []entity.PeriodEvent
	r.s.read(ctx, func(st *state) {
		for _, e := range st.periodEvents {
			if e.PeriodID == periodID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

func (r *PeriodRepo) NegativeStock(ctx context.Context, orgID, branchID id.ID) ([]period.ItemQty, error) {
	var out []period.ItemQty
	r.s.read(ctx, func(st *state) {
		onHand := remainingByItem(st, orgID, branchID)
		for itemID, qty := range onHand {
			if qty.IsNegative() {
				out = append(out, period.ItemQty{ItemID: itemID, Qty: qty})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID.String() < out[j].ItemID.String() })
	return out, nil
}

func (r *PeriodRepo) LedgerImbalances(ctx context.Context, orgID, branchID id.ID) ([]period.Imbalance, error) {
	var out []period.Imbalance
	r.s.read(ctx, func(st *state) {
		remaining := remainingByItem(st, orgID, branchID)
		ledgerQty := make(map[id.ID]types.Quantity)
		for _, e := range st.entries {
			if e.OrgID == orgID && e.BranchID == branchID {
				ledgerQty[e.ItemID] += e.Qty
			}
		}
		seen := make(map[id.ID]struct{})
		for itemID := range ledgerQty {
			seen[itemID] = struct{}{}
		}
		for itemID := range remaining {
			seen[itemID] = struct{}{}
		}
		for itemID := range seen {
			if ledgerQty[itemID] != remaining[itemID] {
				out = append(out, period.Imbalance{
					ItemID:       itemID,
					LedgerQty:    ledgerQty[itemID],
					RemainingQty: remaining[itemID],
				})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID.String() < out[j].ItemID.String() })
	return out, nil
}

func remainingByItem(st *state, orgID, branchID id.ID) map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity)
	for _, l := range st.layers {
		if l.OrgID == orgID && l.BranchID == branchID {
			out[l.ItemID] += l.RemainingQty
		}
	}
	return out
}

// CorruptLayer overwrites a layer's remaining quantity, bypassing the cost
// layer store. Tests use it to simulate out-of-band damage.
func (s *Store) CorruptLayer(layerID id.ID, remaining types.Quantity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.layers {
		if s.st.layers[i].ID == layerID {
			s.st.layers[i].RemainingQty = remaining
		}
	}
}

// ReportRepo implements valuation.Repository.
type ReportRepo struct{ s *Store }

func (r *ReportRepo) GetPeriod(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	return (&PeriodRepo{s: r.s}).Get(ctx, periodID)
}

func (r *ReportRepo) LayersReceivedBefore(ctx context.Context, orgID, branchID id.ID, boundary time.Time) ([]entity.CostLayer, error) {
	var out []entity.CostLayer
	r.s.read(ctx, func(st *state) {
		for _, l := range st.layers {
			if l.OrgID == orgID && l.BranchID == branchID && l.ReceivedAt.Before(boundary) {
				out = append(out, l)
			}
		}
	})
	sortFIFO(out)
	return out, nil
}

func (r *ReportRepo) ConsumedSince(ctx context.Context, orgID, branchID id.ID, boundary time.Time) ([]entity.BatchConsumption, error) {
	var out []entity.BatchConsumption
	r.s.read(ctx, func(st *state) {
		inBranch := make(map[id.ID]struct{})
		for _, l := range st.layers {
			if l.OrgID == orgID && l.BranchID == branchID {
				inBranch[l.ID] = struct{}{}
			}
		}
		for _, c := range st.consumptions {
			if _, ok := inBranch[c.LayerID]; ok && !c.OccurredAt.Before(boundary) {
				out = append(out, c)
			}
		}
	})
	return out, nil
}

func (r *ReportRepo) AggregateMovements(ctx context.Context, orgID, branchID id.ID, from, to time.Time) ([]entity.MovementSummary, error) {
	type key struct {
		item id.ID
		typ  entity.EventType
	}
	acc := make(map[key]*entity.MovementSummary)
	r.s.read(ctx, func(st *state) {
		for _, e := range st.entries {
			if e.OrgID != orgID || e.BranchID != branchID || e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
				continue
			}
			k := key{e.ItemID, e.EventType}
			row, ok := acc[k]
			if !ok {
				row = &entity.MovementSummary{ItemID: e.ItemID, EventType: e.EventType, Cost: types.Zero()}
				acc[k] = row
			}
			row.Qty += e.Qty
			row.Cost = row.Cost.Add(e.CostTotal)
			row.Entries++
		}
	})
	out := make([]entity.MovementSummary, 0, len(acc))
	for _, row := range acc {
		out = append(out, *row)
	}
	valuation.SortMovements(out)
	return out, nil
}

func (r *ReportRepo) FrozenSnapshot(ctx context.Context, periodID id.ID) ([]entity.ValuationSnapshot, error) {
	var out []entity.ValuationSnapshot
	r.s.read(ctx, func(st *state) {
		for _, row := range st.snapshots {
			if row.PeriodID == periodID {
				out = append(out, row)
			}
		}
	})
	return out, nil
}

func (r *ReportRepo) FrozenMovements(ctx context.Context, periodID id.ID) ([]entity.MovementSummary, error) {
	var out []entity.MovementSummary
	r.s.read(ctx, func(st *state) {
		for _, row := range st.movements {
			if row.PeriodID == periodID {
				out = append(out, row)
			}
		}
	})
	return out, nil
}
