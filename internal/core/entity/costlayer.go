package entity

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// CostLayer is a discrete priced receipt of stock with a remaining quantity.
// RemainingQty only ever decreases and never goes below zero.
type CostLayer struct {
	ID       id.ID `db:"id" json:"id"`
	OrgID    id.ID `db:"org_id" json:"orgId"`
	BranchID id.ID `db:"branch_id" json:"branchId"`
	ItemID   id.ID `db:"item_id" json:"itemId"`

	ReceivedAt   time.Time      `db:"received_at" json:"receivedAt"`
	UnitCost     types.Money    `db:"unit_cost" json:"unitCost"`
	ReceivedQty  types.Quantity `db:"received_qty" json:"receivedQty"`
	RemainingQty types.Quantity `db:"remaining_qty" json:"remainingQty"`

	// Seq is the insertion sequence; it breaks ReceivedAt ties.
	Seq int64 `db:"seq" json:"seq"`

	SourceType    SourceType `db:"source_type" json:"sourceType"`
	SourceID      string     `db:"source_id" json:"sourceId"`
	LedgerEntryID id.ID      `db:"ledger_entry_id" json:"ledgerEntryId"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Value returns RemainingQty * UnitCost.
func (l *CostLayer) Value() types.Money {
	return l.RemainingQty.Cost(l.UnitCost)
}

// FIFOLess orders layers oldest first, insertion order breaking ties.
func FIFOLess(a, b *CostLayer) bool {
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.Before(b.ReceivedAt)
	}
	return a.Seq < b.Seq
}

// BatchConsumption records how much of one layer a depleting entry consumed.
type BatchConsumption struct {
	LedgerEntryID id.ID          `db:"ledger_entry_id" json:"ledgerEntryId"`
	LayerID       id.ID          `db:"layer_id" json:"layerId"`
	QtyConsumed   types.Quantity `db:"qty_consumed" json:"qtyConsumed"`
	UnitCost      types.Money    `db:"unit_cost" json:"unitCost"`
	CostTotal     types.Money    `db:"cost_total" json:"costTotal"`

	// OccurredAt mirrors the consuming entry's business time so that
	// as-of valuations can add consumptions back without a join.
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}

// TotalCost sums CostTotal across consumptions.
func TotalCost(cs []BatchConsumption) types.Money {
	total := types.Zero()
	for _, c := range cs {
		total = total.Add(c.CostTotal)
	}
	return total
}

// TotalConsumed sums QtyConsumed across consumptions.
func TotalConsumed(cs []BatchConsumption) types.Quantity {
	var total types.Quantity
	for _, c := range cs {
		total += c.QtyConsumed
	}
	return total
}
