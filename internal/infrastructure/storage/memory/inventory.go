package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/ledger"
)

var (
	_ costlayer.Repository = (*LayerRepo)(nil)
	_ ledger.Repository    = (*LedgerRepo)(nil)
	_ ledger.ItemCatalog   = (*Catalog)(nil)
)

// LayerRepo implements costlayer.Repository.
type LayerRepo struct{ s *Store }

func matchesKey(l *entity.CostLayer, key costlayer.StockKey) bool {
	return l.OrgID == key.OrgID && l.BranchID == key.BranchID && l.ItemID == key.ItemID
}

func sortFIFO(layers []entity.CostLayer) {
	sort.SliceStable(layers, func(i, j int) bool {
		return entity.FIFOLess(&layers[i], &layers[j])
	})
}

func (r *LayerRepo) InsertLayer(ctx context.Context, layer *entity.CostLayer) error {
	return r.s.write(ctx, func(st *state) error {
		st.layerSeq++
		layer.Seq = st.layerSeq
		st.layers = append(st.layers, *layer)
		return nil
	})
}

func (r *LayerRepo) LockEligible(ctx context.Context, key costlayer.StockKey, asOf time.Time) ([]entity.CostLayer, error) {
	var out []entity.CostLayer
	r.s.read(ctx, func(st *state) {
		for i := range st.layers {
			l := &st.layers[i]
			if matchesKey(l, key) && l.RemainingQty.IsPositive() && !l.ReceivedAt.After(asOf) {
				out = append(out, *l)
			}
		}
	})
	sortFIFO(out)
	return out, nil
}

func (r *LayerRepo) Deplete(ctx context.Context, layerID id.ID, qty types.Quantity) error {
	return r.s.write(ctx, func(st *state) error {
		for i := range st.layers {
			l := &st.layers[i]
			if l.ID != layerID {
				continue
			}
			if l.RemainingQty < qty {
				return apperror.NewConcurrentModification("cost layer", layerID.String())
			}
			l.RemainingQty -= qty
			return nil
		}
		return apperror.NewNotFound("cost layer", layerID.String())
	})
}

func (r *LayerRepo) SumRemaining(ctx context.Context, key costlayer.StockKey) (types.Quantity, error) {
	var total types.Quantity
	r.s.read(ctx, func(st *state) {
		for i := range st.layers {
			if matchesKey(&st.layers[i], key) {
				total += st.layers[i].RemainingQty
			}
		}
	})
	return total, nil
}

func (r *LayerRepo) LatestLayer(ctx context.Context, key costlayer.StockKey) (*entity.CostLayer, error) {
	var latest *entity.CostLayer
	r.s.read(ctx, func(st *state) {
		for i := range st.layers {
			l := st.layers[i]
			if !matchesKey(&l, key) {
				continue
			}
			if latest == nil || entity.FIFOLess(latest, &l) {
				latest = &l
			}
		}
	})
	if latest == nil {
		return nil, apperror.NewNotFound("cost layer", key.ItemID.String())
	}
	return latest, nil
}

func (r *LayerRepo) ListLayers(ctx context.Context, filter costlayer.LayerFilter) ([]entity.CostLayer, error) {
	var out []entity.CostLayer
	r.s.read(ctx, func(st *state) {
		for _, l := range st.layers {
			switch {
			case l.OrgID != filter.OrgID,
				filter.BranchID != nil && l.BranchID != *filter.BranchID,
				filter.ItemID != nil && l.ItemID != *filter.ItemID,
				filter.ReceivedBefore != nil && !l.ReceivedAt.Before(*filter.ReceivedBefore),
				filter.OnlyRemaining && !l.RemainingQty.IsPositive():
				continue
			}
			out = append(out, l)
		}
	})
	sortFIFO(out)
	return out, nil
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) FindBySource(ctx context.Context, key ledger.IdempotencyKey) (*entity.LedgerEntry, error) {
	var found *entity.LedgerEntry
	r.s.read(ctx, func(st *state) {
		for i := range st.entries {
			e := st.entries[i]
			if e.OrgID == key.OrgID && e.SourceType == key.SourceType && e.SourceID == key.SourceID && e.ItemID == key.ItemID {
				found = &e
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("ledger entry", fmt.Sprintf("%s/%s/%s", key.SourceType, key.SourceID, key.ItemID))
	}
	return found, nil
}

func (r *LedgerRepo) Insert(ctx context.Context, entry *entity.LedgerEntry) error {
	return r.s.write(ctx, func(st *state) error {
		for _, e := range st.entries {
			if e.OrgID == entry.OrgID && e.SourceType == entry.SourceType && e.SourceID == entry.SourceID && e.ItemID == entry.ItemID {
				return apperror.NewDuplicateEvent(string(entry.SourceType), entry.SourceID, entry.ItemID.String())
			}
		}
		st.entries = append(st.entries, *entry)
		return nil
	})
}

func (r *LedgerRepo) InsertConsumptions(ctx context.Context, consumptions []entity.BatchConsumption) error {
	return r.s.write(ctx, func(st *state) error {
		st.consumptions = append(st.consumptions, consumptions...)
		return nil
	})
}

func (r *LedgerRepo) Get(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error) {
	var found *entity.LedgerEntry
	r.s.read(ctx, func(st *state) {
		for i := range st.entries {
			if st.entries[i].ID == entryID {
				e := st.entries[i]
				found = &e
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("ledger entry", entryID.String())
	}
	return found, nil
}

func (r *LedgerRepo) ListConsumptions(ctx context.Context, entryIDs []id.ID) ([]entity.BatchConsumption, error) {
	want := make(map[id.ID]struct{}, len(entryIDs))
	for _, eid := range entryIDs {
		want[eid] = struct{}{}
	}
	var out []entity.BatchConsumption
	r.s.read(ctx, func(st *state) {
		for _, c := range st.consumptions {
			if _, ok := want[c.LedgerEntryID]; ok {
				out = append(out, c)
			}
		}
	})
	return out, nil
}

func (r *LedgerRepo) List(ctx context.Context, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	r.s.read(ctx, func(st *state) {
		for _, e := range st.entries {
			switch {
			case e.OrgID != filter.OrgID,
				filter.BranchID != nil && e.BranchID != *filter.BranchID,
				filter.ItemID != nil && e.ItemID != *filter.ItemID,
				filter.EventType != nil && e.EventType != *filter.EventType,
				filter.SourceType != nil && e.SourceType != *filter.SourceType,
				filter.SourceID != nil && e.SourceID != *filter.SourceID,
				filter.From != nil && e.OccurredAt.Before(*filter.From),
				filter.To != nil && !e.OccurredAt.Before(*filter.To):
				continue
			}
			out = append(out, e)
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *LedgerRepo) SumQty(ctx context.Context, key costlayer.StockKey) (types.Quantity, error) {
	var total types.Quantity
	r.s.read(ctx, func(st *state) {
		for _, e := range st.entries {
			if e.OrgID == key.OrgID && e.BranchID == key.BranchID && e.ItemID == key.ItemID {
				total += e.Qty
			}
		}
	})
	return total, nil
}

// Catalog implements ledger.ItemCatalog over seeded items.
type Catalog struct{ s *Store }

// SeedItem adds or replaces an item.
func (c *Catalog) SeedItem(item entity.InventoryItem) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.st.items[item.ID] = item
}

func (c *Catalog) GetItem(ctx context.Context, orgID, itemID id.ID) (*entity.InventoryItem, error) {
	var (
		item entity.InventoryItem
		ok   bool
	)
	c.s.read(ctx, func(st *state) {
		item, ok = st.items[itemID]
	})
	if !ok || item.OrgID != orgID {
		return nil, apperror.NewNotFound("inventory item", itemID.String())
	}
	return &item, nil
}
