package posting

import (
	"context"
	"fmt"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// Resolver looks up the GL accounts for an event.
type Resolver struct {
	repo Repository
}

// NewResolver creates a new mapping resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the most specific mapping's accounts for the event.
// configured is false when no mapping matches or the match lacks an account
// the event type needs; that is a valid state, not an error.
func (r *Resolver) Resolve(ctx context.Context, orgID, branchID id.ID, category string, eventType entity.EventType, inbound bool) (accounts entity.PostingAccounts, configured bool, err error) {
	candidates, err := r.repo.FindMappings(ctx, orgID, branchID, category)
	if err != nil {
		return entity.PostingAccounts{}, false, fmt.Errorf("find posting mappings: %w", err)
	}

	m := SelectMapping(candidates, branchID, category)
	if m == nil {
		return entity.PostingAccounts{}, false, nil
	}

	if _, _, ok := Accounts(m.PostingAccounts, eventType, inbound); !ok {
		return m.PostingAccounts, false, nil
	}
	return m.PostingAccounts, true, nil
}

// SelectMapping picks the most specific mapping:
// (branch, category) > (null, category) > (branch, null) > (null, null).
func SelectMapping(candidates []entity.PostingMapping, branchID id.ID, category string) *entity.PostingMapping {
	var best *entity.PostingMapping
	bestRank := -1
	for i := range candidates {
		rank := specificity(&candidates[i], branchID, category)
		if rank > bestRank {
			best, bestRank = &candidates[i], rank
		}
	}
	return best
}

// specificity ranks a candidate, -1 meaning it does not apply.
func specificity(m *entity.PostingMapping, branchID id.ID, category string) int {
	branchMatch, branchWild := false, m.BranchID == nil
	if m.BranchID != nil {
		branchMatch = *m.BranchID == branchID
	}
	catMatch, catWild := false, m.Category == nil
	if m.Category != nil {
		catMatch = *m.Category == category
	}

	switch {
	case branchMatch && catMatch:
		return 3
	case branchWild && catMatch:
		return 2
	case branchMatch && catWild:
		return 1
	case branchWild && catWild:
		return 0
	default:
		return -1
	}
}

// Accounts returns the debit and credit accounts of an event under a mapping.
// ok is false when the event has no GL effect or an account is unset.
func Accounts(a entity.PostingAccounts, eventType entity.EventType, inbound bool) (debit, credit id.ID, ok bool) {
	var dr, cr *id.ID
	switch eventType {
	case entity.EventPurchase:
		dr, cr = a.InventoryAccountID, a.GRNIAccountID
	case entity.EventSale:
		dr, cr = a.COGSAccountID, a.InventoryAccountID
	case entity.EventWaste:
		dr, cr = a.WasteAccountID, a.InventoryAccountID
	case entity.EventAdjustment:
		if inbound {
			dr, cr = a.InventoryAccountID, a.GainAccountID
		} else {
			dr, cr = a.ShrinkAccountID, a.InventoryAccountID
		}
	default:
		return id.Nil(), id.Nil(), false
	}
	if dr == nil || cr == nil || id.IsNil(*dr) || id.IsNil(*cr) {
		return id.Nil(), id.Nil(), false
	}
	return *dr, *cr, true
}

// HasGLEffect reports whether eventType is ever posted to the GL.
// Transfers move value between branches of one org and stay in inventory.
func HasGLEffect(eventType entity.EventType) bool {
	switch eventType {
	case entity.EventTransferIn, entity.EventTransferOut:
		return false
	}
	return true
}
