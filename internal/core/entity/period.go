package entity

import (
	"fmt"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// PeriodStatus is the close state of an inventory period.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "OPEN"
	PeriodClosed PeriodStatus = "CLOSED"
)

// InventoryPeriod is one calendar month of one branch. Months are UTC.
// OPEN -> CLOSED is the only transition; CLOSED is terminal.
type InventoryPeriod struct {
	ID       id.ID        `db:"id" json:"id"`
	OrgID    id.ID        `db:"org_id" json:"orgId"`
	BranchID id.ID        `db:"branch_id" json:"branchId"`
	Year     int          `db:"year" json:"year"`
	Month    int          `db:"month" json:"month"`
	Status   PeriodStatus `db:"status" json:"status"`

	ClosedAt   *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	ClosedByID *string    `db:"closed_by_id" json:"closedById,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewPeriod builds an OPEN period for the month containing at.
func NewPeriod(orgID, branchID id.ID, at time.Time) InventoryPeriod {
	year, month := PeriodOf(at)
	return InventoryPeriod{
		ID:        id.New(),
		OrgID:     orgID,
		BranchID:  branchID,
		Year:      year,
		Month:     month,
		Status:    PeriodOpen,
		CreatedAt: time.Now().UTC(),
	}
}

// PeriodOf returns the UTC year and month containing t.
func PeriodOf(t time.Time) (year, month int) {
	t = t.UTC()
	return t.Year(), int(t.Month())
}

// Start is the first instant of the period.
func (p *InventoryPeriod) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period (exclusive bound).
func (p *InventoryPeriod) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls in [Start, End).
func (p *InventoryPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start()) && t.Before(p.End())
}

// Label renders the period as YYYY-MM.
func (p *InventoryPeriod) Label() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// IsClosed reports whether the period is CLOSED.
func (p *InventoryPeriod) IsClosed() bool {
	return p.Status == PeriodClosed
}

// BlockerCode names a pre-close condition.
type BlockerCode string

const (
	BlockerPendingReceipts  BlockerCode = "PENDING_RECEIPTS"
	BlockerPendingTransfers BlockerCode = "PENDING_TRANSFERS"
	BlockerPendingCounts    BlockerCode = "PENDING_COUNTS"
	BlockerNegativeStock    BlockerCode = "NEGATIVE_STOCK"
	BlockerLedgerImbalance  BlockerCode = "LEDGER_IMBALANCE"
)

// Blocker is one unresolved condition preventing a close.
type Blocker struct {
	Code        BlockerCode `json:"code"`
	Count       int         `json:"count"`
	Refs        []string    `json:"refs,omitempty"`
	Overridable bool        `json:"overridable"`
	Message     string      `json:"message"`
}

// PeriodEventType names an audited period transition.
type PeriodEventType string

const (
	PeriodEventOpen  PeriodEventType = "OPEN"
	PeriodEventClose PeriodEventType = "CLOSE"
)

// PeriodEvent is an immutable audit row of a period transition.
type PeriodEvent struct {
	ID        id.ID           `db:"id" json:"id"`
	PeriodID  id.ID           `db:"period_id" json:"periodId"`
	EventType PeriodEventType `db:"event_type" json:"eventType"`
	ActorID   string          `db:"actor_id" json:"actorId"`
	Override  bool            `db:"override" json:"override"`
	Reason    string          `db:"reason" json:"reason,omitempty"`

	// Blockers present at the time of the event (overridden ones on CLOSE).
	Blockers []Blocker `db:"-" json:"blockers,omitempty"`

	// Payload is the stored form of Blockers, zstd-compressed when Compressed.
	Payload    []byte `db:"payload" json:"-"`
	Compressed bool   `db:"compressed" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ValuationSnapshot is the value of one item at one branch at a period boundary.
// Frozen rows of a CLOSED period never change.
type ValuationSnapshot struct {
	PeriodID   id.ID          `db:"period_id" json:"periodId"`
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	BranchID   id.ID          `db:"branch_id" json:"branchId"`
	Qty        types.Quantity `db:"qty" json:"qty"`
	TotalValue types.Money    `db:"total_value" json:"totalValue"`
}

// MovementSummary totals one item's ledger entries of one event type in a period.
type MovementSummary struct {
	PeriodID  id.ID          `db:"period_id" json:"periodId"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	EventType EventType      `db:"event_type" json:"eventType"`
	Qty       types.Quantity `db:"qty" json:"qty"`
	Cost      types.Money    `db:"cost" json:"cost"`
	Entries   int            `db:"entries" json:"entries"`
}
