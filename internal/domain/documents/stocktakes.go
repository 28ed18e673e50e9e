package documents

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/ledger"
)

// Stocktake identifies a physical count session.
type Stocktake struct {
	OrgID       id.ID     `json:"orgId"`
	BranchID    id.ID     `json:"branchId"`
	StocktakeID string    `json:"stocktakeId"`
	CountDate   time.Time `json:"countDate"`
}

// CountLine is the counted quantity of one item. UnitCost prices a surplus;
// without it the item's latest layer cost is used.
type CountLine struct {
	ItemID     id.ID          `json:"itemId"`
	CountedQty types.Quantity `json:"countedQty"`
	UnitCost   *types.Money   `json:"unitCost,omitempty"`
}

// OpenStocktake starts a count session. The period of its count date cannot
// close until the session is finalized.
func (s *Service) OpenStocktake(ctx context.Context, st Stocktake) (*entity.PendingDocument, error) {
	if id.IsNil(st.OrgID) || id.IsNil(st.BranchID) || st.StocktakeID == "" || st.CountDate.IsZero() {
		return nil, apperror.NewValidation("org, branch, stocktake id and countDate are required")
	}
	return s.open(ctx, &entity.PendingDocument{
		OrgID:        st.OrgID,
		BranchID:     st.BranchID,
		Kind:         entity.DocumentCount,
		SourceType:   entity.SourceStocktake,
		SourceID:     st.StocktakeID,
		BusinessDate: st.CountDate,
	})
}

// FinalizeStocktake compares counts with on-hand stock, records one
// ADJUSTMENT per item with a variance and resolves the session, atomically.
// A finalized session returns its recorded adjustments.
func (s *Service) FinalizeStocktake(ctx context.Context, orgID id.ID, stocktakeID string, counts []CountLine) ([]*ledger.RecordResult, error) {
	if len(counts) == 0 {
		return nil, apperror.NewValidation("stocktake has no counts")
	}
	seen := make(map[id.ID]struct{}, len(counts))
	for i, c := range counts {
		if id.IsNil(c.ItemID) {
			return nil, apperror.NewValidation(fmt.Sprintf("count %d: item is required", i))
		}
		if c.CountedQty.IsNegative() {
			return nil, apperror.NewInvalidQuantity(fmt.Sprintf("count %d: counted quantity cannot be negative", i))
		}
		if c.UnitCost != nil && c.UnitCost.IsNegative() {
			return nil, apperror.NewValidation(fmt.Sprintf("count %d: unit cost cannot be negative", i))
		}
		if _, dup := seen[c.ItemID]; dup {
			return nil, apperror.NewValidation(fmt.Sprintf("count %d: item %s counted twice", i, c.ItemID))
		}
		seen[c.ItemID] = struct{}{}
	}

	var results []*ledger.RecordResult
	err := s.atomically(ctx, func(ctx context.Context) error {
		doc, err := s.repo.FindBySource(ctx, orgID, entity.DocumentCount, entity.SourceStocktake, stocktakeID)
		if err != nil {
			return err
		}
		if doc.Status == entity.DocumentResolved {
			results, err = s.recordedAdjustments(ctx, doc)
			return err
		}

		results = make([]*ledger.RecordResult, 0, len(counts))
		for _, c := range counts {
			in, ok, err := s.adjustmentFor(ctx, doc, c)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			res, err := s.recorder.Record(ctx, in)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return s.resolveIfOpen(ctx, orgID, entity.DocumentCount, entity.SourceStocktake, stocktakeID)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// adjustmentFor returns the variance event for c, or false when the count
// matches on-hand stock.
func (s *Service) adjustmentFor(ctx context.Context, doc *entity.PendingDocument, c CountLine) (ledger.EventInput, bool, error) {
	key := costlayer.StockKey{OrgID: doc.OrgID, BranchID: doc.BranchID, ItemID: c.ItemID}
	onHand, err := s.layers.OnHand(ctx, key)
	if err != nil {
		return ledger.EventInput{}, false, err
	}
	variance := c.CountedQty - onHand
	if variance.IsZero() {
		return ledger.EventInput{}, false, nil
	}

	in := ledger.EventInput{
		OrgID:      doc.OrgID,
		BranchID:   doc.BranchID,
		ItemID:     c.ItemID,
		EventType:  entity.EventAdjustment,
		QtyDelta:   variance,
		SourceType: entity.SourceStocktake,
		SourceID:   doc.SourceID,
		OccurredAt: doc.BusinessDate,
		Payload: entity.AdjustmentPayload{
			StocktakeID: doc.SourceID,
			ExpectedQty: onHand,
			CountedQty:  c.CountedQty,
		},
	}
	if variance.IsPositive() {
		switch {
		case c.UnitCost != nil:
			in.UnitCost = *c.UnitCost
		default:
			cost, ok, err := s.layers.LatestUnitCost(ctx, key)
			if err != nil {
				return ledger.EventInput{}, false, err
			}
			if ok {
				in.UnitCost = cost
			} else {
				in.UnitCost = types.Zero()
			}
		}
	}
	return in, true, nil
}

func (s *Service) recordedAdjustments(ctx context.Context, doc *entity.PendingDocument) ([]*ledger.RecordResult, error) {
	sourceType := entity.SourceStocktake
	sourceID := doc.SourceID
	entries, err := s.recorder.Entries(ctx, ledger.EntryFilter{
		OrgID:      doc.OrgID,
		SourceType: &sourceType,
		SourceID:   &sourceID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*ledger.RecordResult, 0, len(entries))
	for i := range entries {
		out = append(out, &ledger.RecordResult{Entry: &entries[i], Replayed: true})
	}
	return out, nil
}
