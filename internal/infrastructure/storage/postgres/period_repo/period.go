// Package period_repo provides the PostgreSQL inventory period repository.
package period_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/period"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	periodsTable   = "inv_periods"
	snapshotsTable = "inv_valuation_snapshots"
	movementsTable = "inv_movement_summaries"
	eventsTable    = "inv_period_events"
)

var periodColumns = []string{
	"id", "org_id", "branch_id", "year", "month", "status",
	"closed_at", "closed_by_id", "created_at",
}

var eventColumns = []string{
	"id", "period_id", "event_type", "actor_id", "override", "reason",
	"payload", "compressed", "created_at",
}

// Repo implements period.Repository.
type Repo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewRepo creates a new period repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Repo) Get(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	return r.getOne(ctx, r.byID(periodID), periodID.String())
}

func (r *Repo) GetForUpdate(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	return r.getOne(ctx, r.byID(periodID).Suffix("FOR UPDATE"), periodID.String())
}

func (r *Repo) byID(periodID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(periodColumns...).
		From(periodsTable).
		Where(squirrel.Eq{"id": periodID})
}

// FindByMonth returns the branch's period or NotFound.
func (r *Repo) FindByMonth(ctx context.Context, orgID, branchID id.ID, year, month int) (*entity.InventoryPeriod, error) {
	q := r.builder.Select(periodColumns...).
		From(periodsTable).
		Where(squirrel.Eq{"org_id": orgID, "branch_id": branchID, "year": year, "month": month})
	return r.getOne(ctx, q, fmt.Sprintf("%s/%04d-%02d", branchID, year, month))
}

func (r *Repo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*entity.InventoryPeriod, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p entity.InventoryPeriod
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory period", key)
		}
		return nil, fmt.Errorf("get period: %w", err)
	}
	return &p, nil
}

// CreateIfAbsent inserts p; a concurrent or earlier insert of the same month
// wins and is returned instead.
func (r *Repo) CreateIfAbsent(ctx context.Context, p *entity.InventoryPeriod) (*entity.InventoryPeriod, bool, error) {
	sql, args, err := r.builder.Insert(periodsTable).
		Columns(periodColumns...).
		Values(p.ID, p.OrgID, p.BranchID, p.Year, p.Month, p.Status, p.ClosedAt, p.ClosedByID, p.CreatedAt).
		Suffix("ON CONFLICT (org_id, branch_id, year, month) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build insert: %w", err)
	}

	var insertedID id.ID
	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&insertedID)
	switch {
	case err == nil:
		stored := *p
		return &stored, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.FindByMonth(ctx, p.OrgID, p.BranchID, p.Year, p.Month)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("insert period: %w", err)
	}
}

// LockFrom share-locks the branch's periods from (year, month) onward.
func (r *Repo) LockFrom(ctx context.Context, orgID, branchID id.ID, year, month int) ([]entity.InventoryPeriod, error) {
	q := r.builder.Select(periodColumns...).
		From(periodsTable).
		Where(squirrel.Eq{"org_id": orgID, "branch_id": branchID}).
		Where("(year, month) >= (?, ?)", year, month).
		OrderBy("year", "month").
		Suffix("FOR SHARE")
	return r.selectPeriods(ctx, q)
}

func (r *Repo) List(ctx context.Context, filter period.ListFilter) ([]entity.InventoryPeriod, error) {
	return r.selectPeriods(ctx, r.listQuery(filter))
}

func (r *Repo) listQuery(filter period.ListFilter) squirrel.SelectBuilder {
	q := r.builder.Select(periodColumns...).
		From(periodsTable).
		Where(squirrel.Eq{"org_id": filter.OrgID})
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Year != nil {
		q = q.Where(squirrel.Eq{"year": *filter.Year})
	}
	return q.OrderBy("branch_id", "year", "month")
}

func (r *Repo) selectPeriods(ctx context.Context, q squirrel.SelectBuilder) ([]entity.InventoryPeriod, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.InventoryPeriod
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select periods: %w", err)
	}
	return out, nil
}

// MarkClosed flips an OPEN period to CLOSED.
func (r *Repo) MarkClosed(ctx context.Context, periodID id.ID, at time.Time, actorID string) error {
	sql, args, err := r.builder.Update(periodsTable).
		Set("status", entity.PeriodClosed).
		Set("closed_at", at).
		Set("closed_by_id", actorID).
		Where(squirrel.Eq{"id": periodID, "status": entity.PeriodOpen}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("close period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("inventory period", periodID.String())
	}
	return nil
}

func (r *Repo) InsertSnapshot(ctx context.Context, rows []entity.ValuationSnapshot) error {
	data := make([][]any, len(rows))
	for i, s := range rows {
		data[i] = []any{s.PeriodID, s.ItemID, s.BranchID, s.Qty.Int64Scaled(), s.TotalValue}
	}
	_, err := r.inserter.CopyFromSlice(ctx, snapshotsTable,
		[]string{"period_id", "item_id", "branch_id", "qty", "total_value"}, data)
	if err != nil {
		return fmt.Errorf("copy valuation snapshot: %w", err)
	}
	return nil
}

func (r *Repo) InsertMovementSummaries(ctx context.Context, rows []entity.MovementSummary) error {
	data := make([][]any, len(rows))
	for i, m := range rows {
		data[i] = []any{m.PeriodID, m.ItemID, string(m.EventType), m.Qty.Int64Scaled(), m.Cost, m.Entries}
	}
	_, err := r.inserter.CopyFromSlice(ctx, movementsTable,
		[]string{"period_id", "item_id", "event_type", "qty", "cost", "entries"}, data)
	if err != nil {
		return fmt.Errorf("copy movement summaries: %w", err)
	}
	return nil
}

// InsertEvent stores an audit row; the payload must already be encoded.
func (r *Repo) InsertEvent(ctx context.Context, event *entity.PeriodEvent) error {
	sql, args, err := r.builder.Insert(eventsTable).
		Columns(eventColumns...).
		Values(
			event.ID, event.PeriodID, event.EventType, event.ActorID, event.Override, event.Reason,
			event.Payload, event.Compressed, event.CreatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert period event: %w", err)
	}
	return nil
}

// ListEvents returns the period's audit rows oldest first, payloads still encoded.
func (r *Repo) ListEvents(ctx context.Context, periodID id.ID) ([]entity.PeriodEvent, error) {
	sql, args, err := r.builder.Select(eventColumns...).
		From(eventsTable).
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.PeriodEvent
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select period events: %w", err)
	}
	return out, nil
}

// NegativeStock returns items whose remaining layer quantity sums below zero.
func (r *Repo) NegativeStock(ctx context.Context, orgID, branchID id.ID) ([]period.ItemQty, error) {
	sql, args, err := r.builder.Select("item_id", "SUM(remaining_qty)::bigint AS qty").
		From("inv_cost_layers").
		Where(squirrel.Eq{"org_id": orgID, "branch_id": branchID}).
		GroupBy("item_id").
		Having("SUM(remaining_qty) < 0").
		OrderBy("item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []period.ItemQty
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select negative stock: %w", err)
	}
	return out, nil
}

// LedgerImbalances compares per-item ledger sums with remaining layer sums.
func (r *Repo) LedgerImbalances(ctx context.Context, orgID, branchID id.ID) ([]period.Imbalance, error) {
	const query = `
		WITH ledger AS (
			SELECT item_id, SUM(qty)::bigint AS qty
			FROM inv_ledger_entries
			WHERE org_id = $1 AND branch_id = $2
			GROUP BY item_id
		), layers AS (
			SELECT item_id, SUM(remaining_qty)::bigint AS qty
			FROM inv_cost_layers
			WHERE org_id = $1 AND branch_id = $2
			GROUP BY item_id
		)
		SELECT COALESCE(l.item_id, c.item_id) AS item_id,
		       COALESCE(l.qty, 0) AS ledger_qty,
		       COALESCE(c.qty, 0) AS remaining_qty
		FROM ledger l
		FULL OUTER JOIN layers c ON c.item_id = l.item_id
		WHERE COALESCE(l.qty, 0) <> COALESCE(c.qty, 0)
		ORDER BY 1`

	var out []period.Imbalance
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, query, orgID, branchID); err != nil {
		return nil, fmt.Errorf("select ledger imbalances: %w", err)
	}
	return out, nil
}

var _ period.Repository = (*Repo)(nil)
