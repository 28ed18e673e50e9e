// Package report_repo provides the PostgreSQL valuation and movement report
// repository.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/valuation"
	"stockledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements valuation.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetPeriod loads the period a report is built for.
func (r *ReportRepo) GetPeriod(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	sql, args, err := r.builder.
		Select("id", "org_id", "branch_id", "year", "month", "status", "closed_at", "closed_by_id", "created_at").
		From("inv_periods").
		Where(squirrel.Eq{"id": periodID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p entity.InventoryPeriod
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory period", periodID.String())
		}
		return nil, fmt.Errorf("get period: %w", err)
	}
	return &p, nil
}

// LayersReceivedBefore returns every layer of the branch received before
// boundary, exhausted ones included, in FIFO order.
func (r *ReportRepo) LayersReceivedBefore(ctx context.Context, orgID, branchID id.ID, boundary time.Time) ([]entity.CostLayer, error) {
	sql, args, err := r.builder.
		Select(
			"id", "org_id", "branch_id", "item_id",
			"received_at", "unit_cost", "received_qty", "remaining_qty", "seq",
			"source_type", "source_id", "ledger_entry_id", "created_at",
		).
		From("inv_cost_layers").
		Where(squirrel.Eq{"org_id": orgID, "branch_id": branchID}).
		Where(squirrel.Lt{"received_at": boundary}).
		OrderBy("received_at", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.CostLayer
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select layers: %w", err)
	}
	return out, nil
}

// ConsumedSince returns draws on the branch's layers made at or after boundary.
func (r *ReportRepo) ConsumedSince(ctx context.Context, orgID, branchID id.ID, boundary time.Time) ([]entity.BatchConsumption, error) {
	const query = `
		SELECT c.ledger_entry_id, c.layer_id, c.qty_consumed, c.unit_cost, c.cost_total, c.occurred_at
		FROM inv_ledger_consumptions c
		JOIN inv_cost_layers l ON l.id = c.layer_id
		WHERE l.org_id = $1
		  AND l.branch_id = $2
		  AND c.occurred_at >= $3
		ORDER BY c.seq`

	var out []entity.BatchConsumption
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, query, orgID, branchID, boundary); err != nil {
		return nil, fmt.Errorf("select consumptions: %w", err)
	}
	return out, nil
}

// AggregateMovements totals ledger entries in [from, to) by (item, event type).
// PeriodID is left for the caller to fill.
func (r *ReportRepo) AggregateMovements(ctx context.Context, orgID, branchID id.ID, from, to time.Time) ([]entity.MovementSummary, error) {
	const query = `
		SELECT
			e.item_id,
			e.event_type,
			SUM(e.qty)::bigint AS qty,
			SUM(e.cost_total) AS cost,
			COUNT(*) AS entries
		FROM inv_ledger_entries e
		WHERE e.org_id = $1
		  AND e.branch_id = $2
		  AND e.occurred_at >= $3
		  AND e.occurred_at < $4
		GROUP BY e.item_id, e.event_type
		ORDER BY e.item_id, e.event_type`

	var out []entity.MovementSummary
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, query, orgID, branchID, from, to); err != nil {
		return nil, fmt.Errorf("aggregate movements: %w", err)
	}
	valuation.SortMovements(out)
	return out, nil
}

// FrozenSnapshot returns the valuation rows captured when the period closed.
func (r *ReportRepo) FrozenSnapshot(ctx context.Context, periodID id.ID) ([]entity.ValuationSnapshot, error) {
	sql, args, err := r.builder.
		Select("period_id", "item_id", "branch_id", "qty", "total_value").
		From("inv_valuation_snapshots").
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.ValuationSnapshot
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return out, nil
}

// FrozenMovements returns the movement summaries captured when the period closed.
func (r *ReportRepo) FrozenMovements(ctx context.Context, periodID id.ID) ([]entity.MovementSummary, error) {
	sql, args, err := r.builder.
		Select("period_id", "item_id", "event_type", "qty", "cost", "entries").
		From("inv_movement_summaries").
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("item_id", "event_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.MovementSummary
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	valuation.SortMovements(out)
	return out, nil
}

var _ valuation.Repository = (*ReportRepo)(nil)
