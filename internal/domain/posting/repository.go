// Package posting resolves GL posting mappings and turns ledger entries into
// balanced journal entries.
package posting

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// Repository defines persistence for mappings (read-only) and journals.
type Repository interface {
	// FindMappings returns the org's mappings whose branch is branchID or
	// null and whose category is category or null.
	FindMappings(ctx context.Context, orgID, branchID id.ID, category string) ([]entity.PostingMapping, error)

	// InsertJournal stores the entry and its lines.
	InsertJournal(ctx context.Context, j *entity.JournalEntry) error

	// GetJournal loads an entry with its lines.
	GetJournal(ctx context.Context, journalID id.ID) (*entity.JournalEntry, error)

	// ListJournals returns entries (with lines) ordered by posted_at, number.
	ListJournals(ctx context.Context, filter JournalFilter) ([]entity.JournalEntry, error)
}

// JournalFilter narrows ListJournals.
type JournalFilter struct {
	OrgID      id.ID
	BranchID   *id.ID
	SourceType *entity.SourceType
	SourceID   *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
