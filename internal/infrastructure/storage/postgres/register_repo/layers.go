// Package register_repo provides PostgreSQL implementations of the cost layer
// and ledger registers.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/infrastructure/storage/postgres"
)

const costLayersTable = "inv_cost_layers"

var layerColumns = []string{
	"id", "org_id", "branch_id", "item_id",
	"received_at", "unit_cost", "received_qty", "remaining_qty", "seq",
	"source_type", "source_id", "ledger_entry_id", "created_at",
}

// LayerRepo implements costlayer.Repository.
type LayerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLayerRepo creates a new cost layer repository.
func NewLayerRepo(txManager *postgres.TxManager) *LayerRepo {
	return &LayerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InsertLayer stores layer; seq comes from the table's sequence.
func (r *LayerRepo) InsertLayer(ctx context.Context, layer *entity.CostLayer) error {
	q := r.builder.Insert(costLayersTable).
		Columns(
			"id", "org_id", "branch_id", "item_id",
			"received_at", "unit_cost", "received_qty", "remaining_qty",
			"source_type", "source_id", "ledger_entry_id", "created_at",
		).
		Values(
			layer.ID, layer.OrgID, layer.BranchID, layer.ItemID,
			layer.ReceivedAt, layer.UnitCost, layer.ReceivedQty, layer.RemainingQty,
			layer.SourceType, layer.SourceID, layer.LedgerEntryID, layer.CreatedAt,
		).
		Suffix("RETURNING seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&layer.Seq); err != nil {
		if postgres.IsCheckViolation(err) {
			return apperror.NewInvariantViolation("cost layer quantities out of range").
				WithDetail("layer_id", layer.ID.String()).WithCause(err)
		}
		return fmt.Errorf("insert cost layer: %w", err)
	}
	return nil
}

// LockEligible row-locks the key's depletable layers in FIFO order.
func (r *LayerRepo) LockEligible(ctx context.Context, key costlayer.StockKey, asOf time.Time) ([]entity.CostLayer, error) {
	q := r.builder.Select(layerColumns...).
		From(costLayersTable).
		Where(keyWhere(key)).
		Where(squirrel.Gt{"remaining_qty": int64(0)}).
		Where(squirrel.LtOrEq{"received_at": asOf}).
		OrderBy("received_at", "seq").
		Suffix("FOR UPDATE")

	return r.selectLayers(ctx, q)
}

// Deplete subtracts qty from the layer. The guard keeps remaining_qty
// non-negative even if the row changed since it was read.
func (r *LayerRepo) Deplete(ctx context.Context, layerID id.ID, qty types.Quantity) error {
	q := r.builder.Update(costLayersTable).
		Set("remaining_qty", squirrel.Expr("remaining_qty - ?", qty)).
		Where(squirrel.Eq{"id": layerID}).
		Where(squirrel.GtOrEq{"remaining_qty": qty})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deplete cost layer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("cost layer", layerID.String()).
			WithDetail("qty", qty.String())
	}
	return nil
}

// SumRemaining returns the key's on-hand quantity.
func (r *LayerRepo) SumRemaining(ctx context.Context, key costlayer.StockKey) (types.Quantity, error) {
	q := r.builder.Select("COALESCE(SUM(remaining_qty), 0)::bigint").
		From(costLayersTable).
		Where(keyWhere(key))

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var scaled int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&scaled); err != nil {
		return 0, fmt.Errorf("sum remaining: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(scaled), nil
}

// LatestLayer returns the most recently received layer.
func (r *LayerRepo) LatestLayer(ctx context.Context, key costlayer.StockKey) (*entity.CostLayer, error) {
	q := r.builder.Select(layerColumns...).
		From(costLayersTable).
		Where(keyWhere(key)).
		OrderBy("received_at DESC", "seq DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var layer entity.CostLayer
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &layer, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("cost layer", key.ItemID.String())
		}
		return nil, fmt.Errorf("latest layer: %w", err)
	}
	return &layer, nil
}

// ListLayers returns layers matching filter in FIFO order.
func (r *LayerRepo) ListLayers(ctx context.Context, filter costlayer.LayerFilter) ([]entity.CostLayer, error) {
	return r.selectLayers(ctx, r.listQuery(filter))
}

func (r *LayerRepo) listQuery(filter costlayer.LayerFilter) squirrel.SelectBuilder {
	q := r.builder.Select(layerColumns...).
		From(costLayersTable).
		Where(squirrel.Eq{"org_id": filter.OrgID})

	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.ReceivedBefore != nil {
		q = q.Where(squirrel.Lt{"received_at": *filter.ReceivedBefore})
	}
	if filter.OnlyRemaining {
		q = q.Where(squirrel.Gt{"remaining_qty": int64(0)})
	}
	return q.OrderBy("received_at", "seq")
}

func (r *LayerRepo) selectLayers(ctx context.Context, q squirrel.SelectBuilder) ([]entity.CostLayer, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var layers []entity.CostLayer
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &layers, sql, args...); err != nil {
		return nil, fmt.Errorf("select cost layers: %w", err)
	}
	return layers, nil
}

func keyWhere(key costlayer.StockKey) squirrel.Eq {
	return squirrel.Eq{
		"org_id":    key.OrgID,
		"branch_id": key.BranchID,
		"item_id":   key.ItemID,
	}
}

var _ costlayer.Repository = (*LayerRepo)(nil)
