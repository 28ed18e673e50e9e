package period

import (
	"context"
	"fmt"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents"
)

// maxRefs caps the references listed per blocker.
const maxRefs = 50

// RunPrecloseCheck returns the unresolved blockers of the period. Every check
// runs; the result order is fixed.
func (s *Service) RunPrecloseCheck(ctx context.Context, periodID id.ID) ([]entity.Blocker, error) {
	p, err := s.repo.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.blockers(ctx, p)
}

type check func(ctx context.Context, p *entity.InventoryPeriod) (*entity.Blocker, error)

func (s *Service) blockers(ctx context.Context, p *entity.InventoryPeriod) ([]entity.Blocker, error) {
	checks := []check{
		s.pendingReceipts,
		s.pendingTransfers,
		s.pendingCounts,
		s.negativeStock,
		s.ledgerImbalance,
	}

	out := make([]entity.Blocker, 0)
	for _, c := range checks {
		b, err := c(ctx, p)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

// pendingReceipts covers receipts dated up to the period end. Earlier ones
// count too: once this period closes they could never be posted.
func (s *Service) pendingReceipts(ctx context.Context, p *entity.InventoryPeriod) (*entity.Blocker, error) {
	end := p.End()
	docs, err := s.openDocuments(ctx, documents.Filter{
		OrgID:    p.OrgID,
		Kind:     kindPtr(entity.DocumentReceipt),
		BranchID: &p.BranchID,
		To:       &end,
	})
	if err != nil {
		return nil, fmt.Errorf("check pending receipts: %w", err)
	}
	return documentBlocker(entity.BlockerPendingReceipts, docs, "goods receipts not yet posted to the ledger"), nil
}

// pendingTransfers covers transfers dispatched before the period end that
// are still in transit, in either direction.
func (s *Service) pendingTransfers(ctx context.Context, p *entity.InventoryPeriod) (*entity.Blocker, error) {
	end := p.End()
	docs, err := s.openDocuments(ctx, documents.Filter{
		OrgID:              p.OrgID,
		Kind:               kindPtr(entity.DocumentTransfer),
		BranchID:           &p.BranchID,
		IncludeCounterpart: true,
		To:                 &end,
	})
	if err != nil {
		return nil, fmt.Errorf("check pending transfers: %w", err)
	}
	return documentBlocker(entity.BlockerPendingTransfers, docs, "transfers still in transit"), nil
}

// pendingCounts covers every open session counted on or before the period end.
func (s *Service) pendingCounts(ctx context.Context, p *entity.InventoryPeriod) (*entity.Blocker, error) {
	end := p.End()
	docs, err := s.openDocuments(ctx, documents.Filter{
		OrgID:    p.OrgID,
		Kind:     kindPtr(entity.DocumentCount),
		BranchID: &p.BranchID,
		To:       &end,
	})
	if err != nil {
		return nil, fmt.Errorf("check pending counts: %w", err)
	}
	return documentBlocker(entity.BlockerPendingCounts, docs, "stocktake sessions not finalized"), nil
}

func (s *Service) negativeStock(ctx context.Context, p *entity.InventoryPeriod) (*entity.Blocker, error) {
	rows, err := s.repo.NegativeStock(ctx, p.OrgID, p.BranchID)
	if err != nil {
		return nil, fmt.Errorf("check negative stock: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	refs := make([]string, 0, min(len(rows), maxRefs))
	for _, r := range rows[:min(len(rows), maxRefs)] {
		refs = append(refs, r.ItemID.String())
	}
	return &entity.Blocker{
		Code:        entity.BlockerNegativeStock,
		Count:       len(rows),
		Refs:        refs,
		Overridable: true,
		Message:     "items with negative on-hand quantity",
	}, nil
}

// ledgerImbalance is the conservation audit. It can never be overridden.
func (s *Service) ledgerImbalance(ctx context.Context, p *entity.InventoryPeriod) (*entity.Blocker, error) {
	rows, err := s.repo.LedgerImbalances(ctx, p.OrgID, p.BranchID)
	if err != nil {
		return nil, fmt.Errorf("check ledger conservation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	refs := make([]string, 0, min(len(rows), maxRefs))
	for _, r := range rows[:min(len(rows), maxRefs)] {
		refs = append(refs, r.ItemID.String())
	}
	return &entity.Blocker{
		Code:        entity.BlockerLedgerImbalance,
		Count:       len(rows),
		Refs:        refs,
		Overridable: false,
		Message:     "ledger quantity does not match cost layer remainder",
	}, nil
}

func (s *Service) openDocuments(ctx context.Context, filter documents.Filter) ([]entity.PendingDocument, error) {
	status := entity.DocumentOpen
	filter.Status = &status
	return s.docs.List(ctx, filter)
}

func documentBlocker(code entity.BlockerCode, docs []entity.PendingDocument, message string) *entity.Blocker {
	if len(docs) == 0 {
		return nil
	}
	refs := make([]string, 0, min(len(docs), maxRefs))
	for _, d := range docs[:min(len(docs), maxRefs)] {
		refs = append(refs, d.SourceID)
	}
	return &entity.Blocker{
		Code:        code,
		Count:       len(docs),
		Refs:        refs,
		Overridable: true,
		Message:     message,
	}
}

func kindPtr(k entity.DocumentKind) *entity.DocumentKind { return &k }

// overridable reports whether every blocker may be overridden.
func overridable(blockers []entity.Blocker) bool {
	for _, b := range blockers {
		if !b.Overridable {
			return false
		}
	}
	return true
}
