// Package catalog_repo provides read-only access to the inventory item catalog.
// Items are owned by catalog management; the ledger never writes them.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const itemsTable = "inventory_items"

var itemColumns = postgres.ExtractDBColumns[entity.InventoryItem]()

// ItemRepo implements ledger.ItemCatalog.
type ItemRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewItemRepo creates a new item catalog reader.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetItem returns the org's item or NotFound.
func (r *ItemRepo) GetItem(ctx context.Context, orgID, itemID id.ID) (*entity.InventoryItem, error) {
	sql, args, err := r.itemQuery(orgID, itemID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item entity.InventoryItem
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory item", itemID.String())
		}
		return nil, fmt.Errorf("get %s: %w", itemsTable, err)
	}
	return &item, nil
}

func (r *ItemRepo) itemQuery(orgID, itemID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID, "org_id": orgID})
}

var _ ledger.ItemCatalog = (*ItemRepo)(nil)
