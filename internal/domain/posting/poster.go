package posting

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)


// Status is the result of a posting attempt.
type Status string

const (
	StatusPosted        Status = "POSTED"
	StatusNotConfigured Status = "NOT_CONFIGURED"
	StatusZeroAmount    Status = "ZERO_AMOUNT"
	StatusNotApplicable Status = "NOT_APPLICABLE"
)

// Outcome describes what the poster did for one ledger entry.
type Outcome struct {
	Status  Status               `json:"status"`
	Journal *entity.JournalEntry `json:"journal,omitempty"`
}

// GLSkipped reports whether the entry must carry the glSkipped flag.
func (o Outcome) GLSkipped() bool {
	return o.Status == StatusNotConfigured
}

// JournalID returns the created journal's id, if any.
func (o Outcome) JournalID() *id.ID {
	if o.Journal == nil {
		return nil
	}
	jid := o.Journal.ID
	return &jid
}

// Poster creates journal entries for ledger entries.
type Poster struct {
	repo     Repository
	resolver *Resolver
	numbers  numerator.Generator
}

// NewPoster creates a new GL journal poster.
func NewPoster(repo Repository, resolver *Resolver, numbers numerator.Generator) *Poster {
	return &Poster{repo: repo, resolver: resolver, numbers: numbers}
}

// Post creates at most one balanced journal for entry. It must run in the
// transaction that writes entry: a failure here rolls the event back.
// entry.ID must already be assigned.
func (p *Poster) Post(ctx context.Context, entry *entity.LedgerEntry, category string) (Outcome, error) {
	if !HasGLEffect(entry.EventType) {
		return Outcome{Status: StatusNotApplicable}, nil
	}

	inbound := entry.Qty.IsPositive()
	accounts, configured, err := p.resolver.Resolve(ctx, entry.OrgID, entry.BranchID, category, entry.EventType, inbound)
	if err != nil {
		return Outcome{}, err
	}
	if !configured {
		logger.Info(ctx, "gl posting not configured, skipping",
			"org_id", entry.OrgID,
			"branch_id", entry.BranchID,
			"category", category,
			"event_type", entry.EventType,
			"ledger_entry_id", entry.ID,
		)
		return Outcome{Status: StatusNotConfigured}, nil
	}

	amount := entry.CostTotal.Abs()
	if amount.IsZero() {
		return Outcome{Status: StatusZeroAmount}, nil
	}

	debit, credit, _ := Accounts(accounts, entry.EventType, inbound)
	journal, err := p.build(ctx, entry, debit, credit, amount)
	if err != nil {
		return Outcome{}, err
	}

	if err := journal.Validate(); err != nil {
		logger.Error(ctx, "refusing to persist unbalanced journal",
			"ledger_entry_id", entry.ID,
			"event_type", entry.EventType,
			"amount", amount,
			"debit_account", debit,
			"credit_account", credit,
			"error", err,
		)
		return Outcome{}, err
	}

	if err := p.repo.InsertJournal(ctx, journal); err != nil {
		return Outcome{}, fmt.Errorf("insert journal: %w", err)
	}

	logger.Info(ctx, "journal posted",
		"journal_id", journal.ID,
		"number", journal.Number,
		"ledger_entry_id", entry.ID,
		"amount", amount,
	)
	return Outcome{Status: StatusPosted, Journal: journal}, nil
}

func (p *Poster) build(ctx context.Context, entry *entity.LedgerEntry, debit, credit id.ID, amount types.Money) (*entity.JournalEntry, error) {
	number, err := p.numbers.GetNextNumber(ctx,
		numerator.JournalConfig(entry.OrgID), nil, entry.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("journal number: %w", err)
	}

	jid := id.New()
	return &entity.JournalEntry{
		ID:            jid,
		OrgID:         entry.OrgID,
		BranchID:      entry.BranchID,
		Number:        number,
		SourceType:    entry.SourceType,
		SourceID:      entry.SourceID,
		LedgerEntryID: entry.ID,
		EventType:     entry.EventType,
		PostedAt:      entry.OccurredAt,
		Memo:          fmt.Sprintf("%s %s/%s", entry.EventType, entry.SourceType, entry.SourceID),
		Lines: []entity.JournalLine{
			{JournalEntryID: jid, LineNo: 1, AccountID: debit, Debit: amount, Credit: types.Zero()},
			{JournalEntryID: jid, LineNo: 2, AccountID: credit, Debit: types.Zero(), Credit: amount},
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Journals lists journal entries for reporting.
func (p *Poster) Journals(ctx context.Context, filter JournalFilter) ([]entity.JournalEntry, error) {
	return p.repo.ListJournals(ctx, filter)
}

// Journal loads one journal entry.
func (p *Poster) Journal(ctx context.Context, journalID id.ID) (*entity.JournalEntry, error) {
	return p.repo.GetJournal(ctx, journalID)
}
