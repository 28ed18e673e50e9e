package costlayer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/infrastructure/storage/memory"
)

var day1 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func newStore() (*costlayer.Store, costlayer.StockKey) {
	mem := memory.New()
	key := costlayer.StockKey{OrgID: id.New(), BranchID: id.New(), ItemID: id.New()}
	return costlayer.NewStore(mem.Layers(), mem), key
}

func addLayer(t *testing.T, s *costlayer.Store, key costlayer.StockKey, qty, cost string, at time.Time) *entity.CostLayer {
	t.Helper()
	l, err := s.AddLayer(context.Background(), costlayer.NewLayer{
		Key:           key,
		Qty:           types.MustQuantity(qty),
		UnitCost:      types.MustMoney(cost),
		ReceivedAt:    at,
		SourceType:    entity.SourceGoodsReceipt,
		SourceID:      "GR-" + qty,
		LedgerEntryID: id.New(),
	})
	require.NoError(t, err)
	return l
}

func TestDepleteFIFO_SpansLayersOldestFirst(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()
	a := addLayer(t, s, key, "10", "100", day1)
	b := addLayer(t, s, key, "10", "120", day1.Add(24*time.Hour))

	got, err := s.DepleteFIFO(ctx, costlayer.DepleteRequest{
		Key:           key,
		Qty:           types.MustQuantity("15"),
		AsOf:          day1.Add(48 * time.Hour),
		LedgerEntryID: id.New(),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, a.ID, got[0].LayerID)
	assert.Equal(t, types.MustQuantity("10"), got[0].QtyConsumed)
	assert.True(t, types.MustMoney("1000").Equal(got[0].CostTotal))
	assert.Equal(t, b.ID, got[1].LayerID)
	assert.Equal(t, types.MustQuantity("5"), got[1].QtyConsumed)
	assert.True(t, types.MustMoney("600").Equal(got[1].CostTotal))
	assert.True(t, types.MustMoney("1600").Equal(entity.TotalCost(got)))

	remaining, err := s.Layers(ctx, costlayer.LayerFilter{OrgID: key.OrgID, ItemID: &key.ItemID})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.True(t, remaining[0].RemainingQty.IsZero())
	assert.Equal(t, types.MustQuantity("5"), remaining[1].RemainingQty)

	onHand, err := s.OnHand(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("5"), onHand)
}

func TestDepleteFIFO_InsufficientStockMutatesNothing(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()
	addLayer(t, s, key, "5", "100", day1)

	_, err := s.DepleteFIFO(ctx, costlayer.DepleteRequest{
		Key:           key,
		Qty:           types.MustQuantity("8"),
		AsOf:          day1.Add(time.Hour),
		LedgerEntryID: id.New(),
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "8.0000", appErr.Details["requested"])
	assert.Equal(t, "5.0000", appErr.Details["available"])

	onHand, err := s.OnHand(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("5"), onHand)
}

func TestDepleteFIFO_IgnoresLayersReceivedLater(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()
	addLayer(t, s, key, "4", "100", day1)
	addLayer(t, s, key, "10", "90", day1.Add(72*time.Hour))

	_, err := s.DepleteFIFO(ctx, costlayer.DepleteRequest{
		Key:           key,
		Qty:           types.MustQuantity("6"),
		AsOf:          day1.Add(24 * time.Hour),
		LedgerEntryID: id.New(),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
}

func TestDepleteFIFO_TiesBrokenByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()
	first := addLayer(t, s, key, "3", "10", day1)
	addLayer(t, s, key, "3", "20", day1)

	got, err := s.DepleteFIFO(ctx, costlayer.DepleteRequest{
		Key:           key,
		Qty:           types.MustQuantity("2"),
		AsOf:          day1,
		LedgerEntryID: id.New(),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].LayerID)
}

func TestDepleteFIFO_RejectsNonPositive(t *testing.T) {
	s, key := newStore()
	_, err := s.DepleteFIFO(context.Background(), costlayer.DepleteRequest{Key: key, AsOf: day1})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))
}

func TestAddLayer_Validation(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()

	_, err := s.AddLayer(ctx, costlayer.NewLayer{Key: key, Qty: 0, UnitCost: types.MustMoney("1"), ReceivedAt: day1})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	_, err = s.AddLayer(ctx, costlayer.NewLayer{Key: key, Qty: types.NewQuantity(1), UnitCost: types.MustMoney("-1"), ReceivedAt: day1})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestLatestUnitCost(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()

	_, ok, err := s.LatestUnitCost(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	addLayer(t, s, key, "1", "7.5", day1)
	addLayer(t, s, key, "1", "8.25", day1.Add(time.Hour))

	cost, ok, err := s.LatestUnitCost(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, types.MustMoney("8.25").Equal(cost))
}

func TestPlanFIFO(t *testing.T) {
	layers := []entity.CostLayer{
		{ID: id.New(), RemainingQty: types.MustQuantity("0.5"), UnitCost: types.MustMoney("2")},
		{ID: id.New(), RemainingQty: 0, UnitCost: types.MustMoney("3")},
		{ID: id.New(), RemainingQty: types.MustQuantity("2"), UnitCost: types.MustMoney("4")},
	}

	plan, available := costlayer.PlanFIFO(layers, types.MustQuantity("1.25"))
	assert.Equal(t, types.MustQuantity("2.5"), available)
	require.Len(t, plan, 2)
	assert.Equal(t, layers[0].ID, plan[0].LayerID)
	assert.Equal(t, layers[2].ID, plan[1].LayerID)
	assert.Equal(t, types.MustQuantity("0.75"), plan[1].QtyConsumed)
	assert.True(t, types.MustMoney("4").Equal(entity.TotalCost(plan)))
	assert.Equal(t, types.MustQuantity("1.25"), entity.TotalConsumed(plan))

	plan, available = costlayer.PlanFIFO(layers, types.MustQuantity("3"))
	assert.Nil(t, plan)
	assert.Equal(t, types.MustQuantity("2.5"), available)
}

func TestDepleteFIFO_ConcurrentDrawsNeverOverdeplete(t *testing.T) {
	ctx := context.Background()
	s, key := newStore()
	addLayer(t, s, key, "10", "100", day1)
	addLayer(t, s, key, "5", "120", day1.Add(time.Hour))

	const workers = 24
	consumed := make([][]entity.BatchConsumption, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed[i], errs[i] = s.DepleteFIFO(ctx, costlayer.DepleteRequest{
				Key:           key,
				Qty:           types.MustQuantity("1"),
				AsOf:          day1.Add(48 * time.Hour),
				LedgerEntryID: id.New(),
			})
		}()
	}
	wg.Wait()

	perLayer := map[id.ID]types.Quantity{}
	succeeded := 0
	for i := range workers {
		if errs[i] != nil {
			assert.True(t, apperror.HasCode(errs[i], apperror.CodeInsufficientStock), "unexpected error: %v", errs[i])
			assert.Empty(t, consumed[i])
			continue
		}
		succeeded++
		assert.Equal(t, types.MustQuantity("1"), entity.TotalConsumed(consumed[i]))
		for _, c := range consumed[i] {
			perLayer[c.LayerID] += c.QtyConsumed
		}
	}
	assert.Equal(t, 15, succeeded)

	layers, err := s.Layers(ctx, costlayer.LayerFilter{OrgID: key.OrgID, ItemID: &key.ItemID})
	require.NoError(t, err)
	require.Len(t, layers, 2)
	for _, l := range layers {
		assert.Equal(t, l.ReceivedQty, perLayer[l.ID], "layer %s", l.ID)
		assert.True(t, l.RemainingQty.IsZero())
	}

	onHand, err := s.OnHand(ctx, key)
	require.NoError(t, err)
	assert.True(t, onHand.IsZero())
}
