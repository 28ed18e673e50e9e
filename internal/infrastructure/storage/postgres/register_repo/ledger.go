package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	ledgerEntriesTable = "inv_ledger_entries"
	consumptionsTable  = "inv_ledger_consumptions"

	// ledgerSourceConstraint is the idempotency key index.
	ledgerSourceConstraint = "uq_inv_ledger_entries_source"
)

var entryColumns = []string{
	"id", "org_id", "branch_id", "item_id", "period_id",
	"event_type", "qty", "cost_total",
	"source_type", "source_id", "occurred_at",
	"gl_skipped", "journal_entry_id", "payload", "created_at",
}

var consumptionColumns = []string{
	"ledger_entry_id", "layer_id", "qty_consumed", "unit_cost", "cost_total", "occurred_at",
}

// LedgerRepo implements ledger.Repository. Both tables are insert-only;
// the schema rejects UPDATE and DELETE.
type LedgerRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindBySource returns the entry recorded under key.
func (r *LedgerRepo) FindBySource(ctx context.Context, key ledger.IdempotencyKey) (*entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(ledgerEntriesTable).
		Where(squirrel.Eq{
			"org_id":      key.OrgID,
			"source_type": key.SourceType,
			"source_id":   key.SourceID,
			"item_id":     key.ItemID,
		})
	return r.getEntry(ctx, q, key.SourceID)
}

// Insert stores entry. A clash on the idempotency index is DUPLICATE_EVENT.
func (r *LedgerRepo) Insert(ctx context.Context, e *entity.LedgerEntry) error {
	q := r.builder.Insert(ledgerEntriesTable).
		Columns(entryColumns...).
		Values(
			e.ID, e.OrgID, e.BranchID, e.ItemID, e.PeriodID,
			e.EventType, e.Qty, e.CostTotal,
			e.SourceType, e.SourceID, e.OccurredAt,
			e.GLSkipped, e.JournalEntryID, []byte(e.Payload), e.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, ledgerSourceConstraint) {
			return apperror.NewDuplicateEvent(string(e.SourceType), e.SourceID, e.ItemID.String()).WithCause(err)
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// InsertConsumptions copies the draws of one entry.
func (r *LedgerRepo) InsertConsumptions(ctx context.Context, consumptions []entity.BatchConsumption) error {
	rows := make([][]any, 0, len(consumptions))
	for _, c := range consumptions {
		rows = append(rows, []any{c.LedgerEntryID, c.LayerID, c.QtyConsumed, c.UnitCost, c.CostTotal, c.OccurredAt})
	}
	if _, err := r.inserter.CopyFromSlice(ctx, consumptionsTable, consumptionColumns, rows); err != nil {
		return fmt.Errorf("insert consumptions: %w", err)
	}
	return nil
}

// Get loads an entry by id.
func (r *LedgerRepo) Get(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"id": entryID})
	return r.getEntry(ctx, q, entryID.String())
}

// ListConsumptions returns draws of the entries in insertion order.
func (r *LedgerRepo) ListConsumptions(ctx context.Context, entryIDs []id.ID) ([]entity.BatchConsumption, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	q := r.builder.Select(consumptionColumns...).
		From(consumptionsTable).
		Where(squirrel.Eq{"ledger_entry_id": entryIDs}).
		OrderBy("seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.BatchConsumption
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select consumptions: %w", err)
	}
	return out, nil
}

// List returns entries matching filter ordered by occurred_at, id.
func (r *LedgerRepo) List(ctx context.Context, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.LedgerEntry
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	return out, nil
}

func (r *LedgerRepo) listQuery(filter ledger.EntryFilter) squirrel.SelectBuilder {
	q := r.builder.Select(entryColumns...).
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"org_id": filter.OrgID})

	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.EventType != nil {
		q = q.Where(squirrel.Eq{"event_type": *filter.EventType})
	}
	if filter.SourceType != nil {
		q = q.Where(squirrel.Eq{"source_type": *filter.SourceType})
	}
	if filter.SourceID != nil {
		q = q.Where(squirrel.Eq{"source_id": *filter.SourceID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"occurred_at": *filter.To})
	}

	q = q.OrderBy("occurred_at", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// SumQty returns the signed quantity sum of the key's entries.
func (r *LedgerRepo) SumQty(ctx context.Context, key costlayer.StockKey) (types.Quantity, error) {
	q := r.builder.Select("COALESCE(SUM(qty), 0)::bigint").
		From(ledgerEntriesTable).
		Where(keyWhere(key))

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var scaled int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&scaled); err != nil {
		return 0, fmt.Errorf("sum ledger qty: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(scaled), nil
}

func (r *LedgerRepo) getEntry(ctx context.Context, q squirrel.SelectBuilder, ref string) (*entity.LedgerEntry, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var e entity.LedgerEntry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", ref)
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &e, nil
}

var _ ledger.Repository = (*LedgerRepo)(nil)
