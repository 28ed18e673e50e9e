// Package entity provides the ledger's domain entities.
// Entities reference each other by id only; nothing holds back-pointers.
package entity

import (
	"encoding/json"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// EventType classifies a quantity-affecting business event.
type EventType string

const (
	EventPurchase    EventType = "PURCHASE"
	EventSale        EventType = "SALE"
	EventWaste       EventType = "WASTE"
	EventTransferIn  EventType = "TRANSFER_IN"
	EventTransferOut EventType = "TRANSFER_OUT"
	EventAdjustment  EventType = "ADJUSTMENT"
)

// Direction is the allowed sign of an event's quantity.
type Direction int

const (
	DirectionEither Direction = iota
	DirectionInbound
	DirectionOutbound
)

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	switch e {
	case EventPurchase, EventSale, EventWaste, EventTransferIn, EventTransferOut, EventAdjustment:
		return true
	}
	return false
}

// Direction returns the sign rule for e.
func (e EventType) Direction() Direction {
	switch e {
	case EventPurchase, EventTransferIn:
		return DirectionInbound
	case EventSale, EventWaste, EventTransferOut:
		return DirectionOutbound
	default:
		return DirectionEither
	}
}

// SourceType names the upstream entity that produced an event.
type SourceType string

const (
	SourceOrder            SourceType = "ORDER"
	SourceGoodsReceipt     SourceType = "GOODS_RECEIPT"
	SourceWasteLog         SourceType = "WASTE_LOG"
	SourceTransferDispatch SourceType = "TRANSFER_DISPATCH"
	SourceTransferReceipt  SourceType = "TRANSFER_RECEIPT"
	SourceStocktake        SourceType = "STOCKTAKE"
	SourceBackfill         SourceType = "BACKFILL"
	SourceManual           SourceType = "MANUAL"
)

// LedgerEntry is one immutable quantity movement. Never updated or deleted.
type LedgerEntry struct {
	ID       id.ID `db:"id" json:"id"`
	OrgID    id.ID `db:"org_id" json:"orgId"`
	BranchID id.ID `db:"branch_id" json:"branchId"`
	ItemID   id.ID `db:"item_id" json:"itemId"`
	PeriodID id.ID `db:"period_id" json:"periodId"`

	EventType EventType `db:"event_type" json:"eventType"`

	// Qty is signed: positive for inflows, negative for outflows.
	Qty types.Quantity `db:"qty" json:"qty"`

	// CostTotal carries the same sign as Qty.
	CostTotal types.Money `db:"cost_total" json:"costTotal"`

	SourceType SourceType `db:"source_type" json:"sourceType"`
	SourceID   string     `db:"source_id" json:"sourceId"`

	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`

	// GLSkipped is set when no posting mapping was configured.
	GLSkipped      bool   `db:"gl_skipped" json:"glSkipped"`
	JournalEntryID *id.ID `db:"journal_entry_id" json:"journalEntryId,omitempty"`

	// Payload is the tagged event payload envelope, see EncodePayload.
	Payload json.RawMessage `db:"payload" json:"payload,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsInbound reports whether the entry added stock.
func (e *LedgerEntry) IsInbound() bool {
	return e.Qty.IsPositive()
}

// UnitCost returns the average unit cost of the movement.
func (e *LedgerEntry) UnitCost() types.Money {
	if e.Qty.IsZero() {
		return types.Zero()
	}
	return e.CostTotal.Div(e.Qty.Decimal()).Round(4)
}
