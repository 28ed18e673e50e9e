package entity

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// PostingMapping routes inventory events of an org (optionally narrowed to a
// branch and/or item category) to GL accounts. Owned by the accounting
// subsystem; the engine only reads it.
type PostingMapping struct {
	ID       id.ID   `db:"id" json:"id"`
	OrgID    id.ID   `db:"org_id" json:"orgId"`
	BranchID *id.ID  `db:"branch_id" json:"branchId,omitempty"`
	Category *string `db:"category" json:"category,omitempty"`

	PostingAccounts
}

// PostingAccounts is the resolved account set. Any of them may be unset.
type PostingAccounts struct {
	InventoryAccountID *id.ID `db:"inventory_account_id" json:"inventoryAccountId,omitempty"`
	COGSAccountID      *id.ID `db:"cogs_account_id" json:"cogsAccountId,omitempty"`
	WasteAccountID     *id.ID `db:"waste_account_id" json:"wasteAccountId,omitempty"`
	ShrinkAccountID    *id.ID `db:"shrink_account_id" json:"shrinkAccountId,omitempty"`
	GRNIAccountID      *id.ID `db:"grni_account_id" json:"grniAccountId,omitempty"`
	GainAccountID      *id.ID `db:"gain_account_id" json:"gainAccountId,omitempty"`
}

// JournalEntry is a balanced double-entry posting. Append-only.
type JournalEntry struct {
	ID       id.ID  `db:"id" json:"id"`
	OrgID    id.ID  `db:"org_id" json:"orgId"`
	BranchID id.ID  `db:"branch_id" json:"branchId"`
	Number   string `db:"number" json:"number"`

	SourceType    SourceType `db:"source_type" json:"sourceType"`
	SourceID      string     `db:"source_id" json:"sourceId"`
	LedgerEntryID id.ID      `db:"ledger_entry_id" json:"ledgerEntryId"`
	EventType     EventType  `db:"event_type" json:"eventType"`

	PostedAt time.Time `db:"posted_at" json:"postedAt"`
	Memo     string    `db:"memo" json:"memo"`

	Lines []JournalLine `db:"-" json:"lines"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// JournalLine is one side of a posting; exactly one of Debit/Credit is positive.
type JournalLine struct {
	JournalEntryID id.ID       `db:"journal_entry_id" json:"journalEntryId"`
	LineNo         int         `db:"line_no" json:"lineNo"`
	AccountID      id.ID       `db:"account_id" json:"accountId"`
	Debit          types.Money `db:"debit" json:"debit"`
	Credit         types.Money `db:"credit" json:"credit"`
}

// Totals returns the debit and credit sums.
func (j *JournalEntry) Totals() (debit, credit types.Money) {
	debit, credit = types.Zero(), types.Zero()
	for _, l := range j.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Validate enforces the double-entry invariant.
func (j *JournalEntry) Validate() error {
	if len(j.Lines) < 2 {
		return apperror.NewUnbalancedJournal("0", "0").
			WithDetail("reason", "journal needs at least two lines")
	}
	for _, l := range j.Lines {
		if id.IsNil(l.AccountID) {
			return apperror.NewValidation("journal line without account").WithDetail("line_no", l.LineNo)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return apperror.NewUnbalancedJournal(l.Debit.String(), l.Credit.String()).
				WithDetail("reason", "negative amount").WithDetail("line_no", l.LineNo)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return apperror.NewUnbalancedJournal(l.Debit.String(), l.Credit.String()).
				WithDetail("reason", "line must be one-sided").WithDetail("line_no", l.LineNo)
		}
	}
	debit, credit := j.Totals()
	if !debit.Equal(credit) {
		return apperror.NewUnbalancedJournal(debit.String(), credit.String())
	}
	return nil
}
