package entity

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// DocumentKind classifies upstream documents the close must wait for.
type DocumentKind string

const (
	DocumentReceipt  DocumentKind = "RECEIPT"
	DocumentTransfer DocumentKind = "TRANSFER"
	DocumentCount    DocumentKind = "COUNT"
)

// DocumentStatus is OPEN until the document has reached the ledger.
type DocumentStatus string

const (
	DocumentOpen     DocumentStatus = "OPEN"
	DocumentResolved DocumentStatus = "RESOLVED"
)

// PendingDocument tracks a goods receipt not yet posted, a transfer in
// transit or a stocktake session not yet finalized.
type PendingDocument struct {
	ID       id.ID `db:"id" json:"id"`
	OrgID    id.ID `db:"org_id" json:"orgId"`
	BranchID id.ID `db:"branch_id" json:"branchId"`

	// CounterpartBranchID is the receiving branch of a transfer.
	CounterpartBranchID *id.ID `db:"counterpart_branch_id" json:"counterpartBranchId,omitempty"`

	Kind       DocumentKind   `db:"kind" json:"kind"`
	SourceType SourceType     `db:"source_type" json:"sourceType"`
	SourceID   string         `db:"source_id" json:"sourceId"`
	Status     DocumentStatus `db:"status" json:"status"`

	BusinessDate time.Time  `db:"business_date" json:"businessDate"`
	OpenedAt     time.Time  `db:"opened_at" json:"openedAt"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// InventoryItem is the catalog view the engine reads. Owned by catalog management.
type InventoryItem struct {
	ID            id.ID          `db:"id" json:"id"`
	OrgID         id.ID          `db:"org_id" json:"orgId"`
	SKU           string         `db:"sku" json:"sku"`
	Name          string         `db:"name" json:"name"`
	UnitOfMeasure string         `db:"unit_of_measure" json:"unitOfMeasure"`
	Category      string         `db:"category" json:"category"`
	ReorderLevel  types.Quantity `db:"reorder_level" json:"reorderLevel"`
	Perishable    bool           `db:"perishable" json:"perishable"`
}
