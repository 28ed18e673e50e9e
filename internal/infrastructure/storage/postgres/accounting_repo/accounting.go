// Package accounting_repo provides the PostgreSQL posting mapping and
// journal repository.
package accounting_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/posting"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	mappingsTable     = "acc_posting_mappings"
	journalsTable     = "acc_journal_entries"
	journalLinesTable = "acc_journal_lines"

	journalNumberConstraint = "uq_acc_journal_entries_number"
)

var mappingColumns = []string{
	"id", "org_id", "branch_id", "category",
	"inventory_account_id", "cogs_account_id", "waste_account_id",
	"shrink_account_id", "grni_account_id", "gain_account_id",
}

var journalColumns = []string{
	"id", "org_id", "branch_id", "number",
	"source_type", "source_id", "ledger_entry_id", "event_type",
	"posted_at", "memo", "created_at",
}

var lineColumns = []string{"journal_entry_id", "line_no", "account_id", "debit", "credit"}

// Repo implements posting.Repository.
type Repo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewRepo creates a new accounting repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindMappings returns the candidate mappings for (branch, category).
func (r *Repo) FindMappings(ctx context.Context, orgID, branchID id.ID, category string) ([]entity.PostingMapping, error) {
	sql, args, err := r.mappingsQuery(orgID, branchID, category).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.PostingMapping
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select posting mappings: %w", err)
	}
	return out, nil
}

func (r *Repo) mappingsQuery(orgID, branchID id.ID, category string) squirrel.SelectBuilder {
	return r.builder.Select(mappingColumns...).
		From(mappingsTable).
		Where(squirrel.Eq{"org_id": orgID}).
		Where(squirrel.Or{squirrel.Eq{"branch_id": branchID}, squirrel.Eq{"branch_id": nil}}).
		Where(squirrel.Or{squirrel.Eq{"category": category}, squirrel.Eq{"category": nil}})
}

// InsertJournal stores the entry header and its lines in one round-trip.
func (r *Repo) InsertJournal(ctx context.Context, j *entity.JournalEntry) error {
	if err := j.Validate(); err != nil {
		return err
	}

	header, args, err := r.builder.Insert(journalsTable).
		Columns(journalColumns...).
		Values(
			j.ID, j.OrgID, j.BranchID, j.Number,
			j.SourceType, j.SourceID, j.LedgerEntryID, j.EventType,
			j.PostedAt, j.Memo, j.CreatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	queries := []postgres.BatchQuery{{SQL: header, Args: args}}
	for _, l := range j.Lines {
		sql, args, err := r.builder.Insert(journalLinesTable).
			Columns(lineColumns...).
			Values(j.ID, l.LineNo, l.AccountID, l.Debit, l.Credit).
			ToSql()
		if err != nil {
			return fmt.Errorf("build line insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if err := r.inserter.ExecuteBatch(ctx, queries); err != nil {
		if postgres.IsUniqueViolation(err, journalNumberConstraint) {
			return apperror.NewConflict("journal number already used").
				WithDetail("number", j.Number).WithCause(err)
		}
		return fmt.Errorf("insert journal: %w", err)
	}
	return nil
}

// GetJournal loads an entry with its lines.
func (r *Repo) GetJournal(ctx context.Context, journalID id.ID) (*entity.JournalEntry, error) {
	sql, args, err := r.builder.Select(journalColumns...).
		From(journalsTable).
		Where(squirrel.Eq{"id": journalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var j entity.JournalEntry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &j, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("journal entry", journalID.String())
		}
		return nil, fmt.Errorf("get journal: %w", err)
	}

	journals := []entity.JournalEntry{j}
	if err := r.attachLines(ctx, journals); err != nil {
		return nil, err
	}
	return &journals[0], nil
}

// ListJournals returns entries with lines ordered by posted_at, number.
func (r *Repo) ListJournals(ctx context.Context, filter posting.JournalFilter) ([]entity.JournalEntry, error) {
	sql, args, err := r.journalsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.JournalEntry
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select journals: %w", err)
	}
	if err := r.attachLines(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) journalsQuery(filter posting.JournalFilter) squirrel.SelectBuilder {
	q := r.builder.Select(journalColumns...).
		From(journalsTable).
		Where(squirrel.Eq{"org_id": filter.OrgID})

	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.SourceType != nil {
		q = q.Where(squirrel.Eq{"source_type": *filter.SourceType})
	}
	if filter.SourceID != nil {
		q = q.Where(squirrel.Eq{"source_id": *filter.SourceID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"posted_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"posted_at": *filter.To})
	}

	q = q.OrderBy("posted_at", "number")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

func (r *Repo) attachLines(ctx context.Context, journals []entity.JournalEntry) error {
	if len(journals) == 0 {
		return nil
	}
	ids := make([]id.ID, len(journals))
	index := make(map[id.ID]int, len(journals))
	for i := range journals {
		ids[i] = journals[i].ID
		index[journals[i].ID] = i
	}

	sql, args, err := r.builder.Select(lineColumns...).
		From(journalLinesTable).
		Where(squirrel.Eq{"journal_entry_id": ids}).
		OrderBy("journal_entry_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var lines []entity.JournalLine
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return fmt.Errorf("select journal lines: %w", err)
	}
	for _, l := range lines {
		i := index[l.JournalEntryID]
		journals[i].Lines = append(journals[i].Lines, l)
	}
	return nil
}

var _ posting.Repository = (*Repo)(nil)
