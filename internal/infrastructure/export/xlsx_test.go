package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

func testPeriod() *entity.InventoryPeriod {
	return &entity.InventoryPeriod{ID: id.New(), BranchID: id.New(), Year: 2026, Month: 3}
}

func TestWriteValuation(t *testing.T) {
	p := testPeriod()
	rows := []entity.ValuationSnapshot{
		{PeriodID: p.ID, BranchID: p.BranchID, ItemID: id.New(), Qty: types.NewQuantity(16), TotalValue: types.MustMoney("82")},
		{PeriodID: p.ID, BranchID: p.BranchID, ItemID: id.New(), Qty: types.MustQuantity("0.5"), TotalValue: types.MustMoney("1.25")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteValuation(&buf, p, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(ValuationSheet)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"Period", "Branch", "Item", "Quantity", "Value"}, got[0])
	assert.Equal(t, "2026-03", got[1][0])
	assert.Equal(t, rows[0].ItemID.String(), got[1][2])
	assert.Equal(t, "16", got[1][3])
	assert.Equal(t, "0.5", got[2][3])
	assert.Equal(t, "Total", got[3][0])
	assert.Equal(t, "83.25", got[3][4])
}

func TestWriteMovements(t *testing.T) {
	p := testPeriod()
	rows := []entity.MovementSummary{
		{PeriodID: p.ID, ItemID: id.New(), EventType: entity.EventSale, Qty: types.NewQuantity(-3), Cost: types.MustMoney("-15"), Entries: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMovements(&buf, p, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(MovementsSheet)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"2026-03", rows[0].ItemID.String(), "SALE", "-3", "-15", "2"}, got[1])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "valuation-2026-03.xlsx", FileName("valuation", testPeriod()))
}
