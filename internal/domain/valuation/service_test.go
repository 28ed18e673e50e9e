package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

func TestValueAt_AddsBackLaterDraws(t *testing.T) {
	periodID, branchID := id.New(), id.New()
	itemA, itemB := id.New(), id.New()

	layers := []entity.CostLayer{
		{ID: id.New(), ItemID: itemA, UnitCost: types.MustMoney("100"), RemainingQty: 0},
		{ID: id.New(), ItemID: itemA, UnitCost: types.MustMoney("120"), RemainingQty: types.MustQuantity("5")},
		{ID: id.New(), ItemID: itemB, UnitCost: types.MustMoney("2.5"), RemainingQty: 0},
	}
	// After the boundary 3 units were drawn from A's second layer.
	later := []entity.BatchConsumption{
		{LayerID: layers[1].ID, QtyConsumed: types.MustQuantity("3")},
	}

	rows := ValueAt(periodID, branchID, layers, later)
	require.Len(t, rows, 2)

	byItem := map[id.ID]entity.ValuationSnapshot{}
	for _, r := range rows {
		assert.Equal(t, periodID, r.PeriodID)
		assert.Equal(t, branchID, r.BranchID)
		byItem[r.ItemID] = r
	}

	a := byItem[itemA]
	assert.Equal(t, types.MustQuantity("8"), a.Qty)
	assert.True(t, types.MustMoney("960").Equal(a.TotalValue))

	b := byItem[itemB]
	assert.True(t, b.Qty.IsZero(), "fully consumed items stay listed")
	assert.True(t, b.TotalValue.IsZero())

	assert.True(t, types.MustMoney("960").Equal(TotalValue(rows)))
	assert.True(t, rows[0].ItemID.String() < rows[1].ItemID.String())
}

func TestValueAt_IsDeterministic(t *testing.T) {
	periodID, branchID := id.New(), id.New()
	var layers []entity.CostLayer
	for range 20 {
		layers = append(layers, entity.CostLayer{
			ID:           id.New(),
			ItemID:       id.New(),
			UnitCost:     types.MustMoney("1.1"),
			RemainingQty: types.MustQuantity("2"),
		})
	}
	assert.Equal(t, ValueAt(periodID, branchID, layers, nil), ValueAt(periodID, branchID, layers, nil))
}

func TestSortMovements(t *testing.T) {
	a, b := id.New(), id.New()
	if b.String() < a.String() {
		a, b = b, a
	}
	rows := []entity.MovementSummary{
		{ItemID: b, EventType: entity.EventPurchase},
		{ItemID: a, EventType: entity.EventWaste},
		{ItemID: a, EventType: entity.EventPurchase},
	}
	SortMovements(rows)
	assert.Equal(t, a, rows[0].ItemID)
	assert.Equal(t, entity.EventPurchase, rows[0].EventType)
	assert.Equal(t, entity.EventWaste, rows[1].EventType)
	assert.Equal(t, b, rows[2].ItemID)
}
