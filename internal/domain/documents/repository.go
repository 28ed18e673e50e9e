// Package documents adapts upstream subsystems (receiving, POS, waste,
// transfers, stocktakes) to the ledger and tracks the documents that have not
// reached it yet, which the period close must wait for.
package documents

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// Repository defines persistence for pending documents.
type Repository interface {
	// Open stores doc unless a document with the same (org, kind, source)
	// exists; either way it returns the stored row.
	Open(ctx context.Context, doc *entity.PendingDocument) (*entity.PendingDocument, error)

	// FindBySource returns the document or NotFound.
	FindBySource(ctx context.Context, orgID id.ID, kind entity.DocumentKind, sourceType entity.SourceType, sourceID string) (*entity.PendingDocument, error)

	// Resolve marks an OPEN document RESOLVED.
	Resolve(ctx context.Context, docID id.ID, at time.Time) error

	// List returns documents matching filter ordered by business date, source id.
	List(ctx context.Context, filter Filter) ([]entity.PendingDocument, error)
}

// Filter narrows List.
type Filter struct {
	OrgID  id.ID
	Kind   *entity.DocumentKind
	Status *entity.DocumentStatus

	// BranchID matches the document's branch, and also its counterpart
	// branch when IncludeCounterpart is set.
	BranchID           *id.ID
	IncludeCounterpart bool

	// BusinessDate in [From, To)
	From *time.Time
	To   *time.Time
}
