package documents_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/posting"
	"stockledger/internal/engine/enginetest"
)

var (
	mar3  = enginetest.Day(2026, time.March, 3)
	mar10 = enginetest.Day(2026, time.March, 10)
	mar20 = enginetest.Day(2026, time.March, 20)
)

func qty(s string) types.Quantity { return types.MustQuantity(s) }

func TestPostReceipt_SplitsCostsIntoLayers(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	f.MapAll()
	tomato, onion := f.Item("TOMATO", "produce"), f.Item("ONION", "produce")

	r := documents.GoodsReceipt{
		OrgID:      f.OrgID,
		BranchID:   f.BranchID,
		ReceiptID:  "GR-7",
		SupplierID: "SUP-1",
		ReceivedAt: mar3,
		Lines: []documents.ReceiptLine{
			{LineID: "1", ItemID: tomato, Qty: qty("10"), UnitCost: types.MustMoney("2")},
			{LineID: "2", ItemID: onion, Qty: qty("5"), UnitCost: types.MustMoney("1")},
			{LineID: "3", ItemID: tomato, Qty: qty("4"), UnitCost: types.MustMoney("2.5")},
		},
	}
	_, err := f.Documents.AnnounceReceipt(ctx, r)
	require.NoError(t, err)

	results, err := f.Documents.PostReceipt(ctx, r)
	require.NoError(t, err)
	require.Len(t, results, 2)

	tom := results[0]
	assert.Equal(t, tomato, tom.Entry.ItemID)
	assert.Equal(t, qty("14"), tom.Entry.Qty)
	assert.True(t, types.MustMoney("30").Equal(tom.Entry.CostTotal))
	require.Len(t, tom.Layers, 2)
	assert.True(t, types.MustMoney("2.5").Equal(tom.Layers[1].UnitCost))
	assert.Equal(t, posting.StatusPosted, tom.Posting.Status)

	open := entity.DocumentOpen
	pending, err := f.Documents.Pending(ctx, documents.Filter{OrgID: f.OrgID, Status: &open})
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Posting the same receipt again changes nothing.
	again, err := f.Documents.PostReceipt(ctx, r)
	require.NoError(t, err)
	for _, res := range again {
		assert.True(t, res.Replayed)
	}
	onHand, err := f.Layers.OnHand(ctx, costlayer.StockKey{OrgID: f.OrgID, BranchID: f.BranchID, ItemID: tomato})
	require.NoError(t, err)
	assert.Equal(t, qty("14"), onHand)
}

func TestPostReceipt_Validation(t *testing.T) {
	f := enginetest.New(t)
	item := f.Item("X", "")
	base := func() documents.GoodsReceipt {
		return documents.GoodsReceipt{
			OrgID: f.OrgID, BranchID: f.BranchID, ReceiptID: "GR-1", ReceivedAt: mar3,
			Lines: []documents.ReceiptLine{{ItemID: item, Qty: qty("1"), UnitCost: types.MustMoney("1")}},
		}
	}

	tests := []struct {
		name   string
		mutate func(r *documents.GoodsReceipt)
		code   string
	}{
		{"no lines", func(r *documents.GoodsReceipt) { r.Lines = nil }, apperror.CodeValidation},
		{"no receipt id", func(r *documents.GoodsReceipt) { r.ReceiptID = "" }, apperror.CodeValidation},
		{"zero qty", func(r *documents.GoodsReceipt) { r.Lines[0].Qty = 0 }, apperror.CodeInvalidQuantity},
		{"negative cost", func(r *documents.GoodsReceipt) { r.Lines[0].UnitCost = types.MustMoney("-1") }, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(&r)
			_, err := f.Documents.PostReceipt(context.Background(), r)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestRecordOrderDepletion_MergesLinesAndReplays(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	f.MapAll()
	cheese, dough := f.Item("CHEESE", "dairy"), f.Item("DOUGH", "dry")
	f.Purchase(t, cheese, "GR-1", "2", "10", mar3)
	f.Purchase(t, dough, "GR-2", "5", "1", mar3)

	order := documents.OrderDepletion{
		OrgID:       f.OrgID,
		BranchID:    f.BranchID,
		OrderID:     "ORD-42",
		CompletedAt: mar10,
		MenuItemID:  "pizza",
		Lines: []documents.Line{
			{ItemID: cheese, Qty: qty("0.2")},
			{ItemID: dough, Qty: qty("0.3")},
			{ItemID: cheese, Qty: qty("0.1")},
		},
	}
	results, err := f.Documents.RecordOrderDepletion(ctx, order)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, qty("-0.3"), results[0].Entry.Qty)
	assert.True(t, types.MustMoney("-3").Equal(results[0].Entry.CostTotal))
	assert.Equal(t, posting.StatusPosted, results[0].Posting.Status)

	replayed, err := f.Documents.RecordOrderDepletion(ctx, order)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.True(t, replayed[0].Replayed)
	assert.Equal(t, results[0].Entry.ID, replayed[0].Entry.ID)

	onHand, err := f.Layers.OnHand(ctx, costlayer.StockKey{OrgID: f.OrgID, BranchID: f.BranchID, ItemID: cheese})
	require.NoError(t, err)
	assert.Equal(t, qty("1.7"), onHand)
}

func TestRecordWaste(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	f.MapAll()
	item := f.Item("CREAM", "dairy")
	f.Purchase(t, item, "GR-1", "3", "4", mar3)

	res, err := f.Documents.RecordWaste(ctx, documents.WasteLog{
		OrgID: f.OrgID, BranchID: f.BranchID, WasteLogID: "WL-1", LoggedAt: mar10,
		Reason: "spoiled", Line: documents.Line{ItemID: item, Qty: qty("1")},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.EventWaste, res.Entry.EventType)
	require.Equal(t, posting.StatusPosted, res.Posting.Status)
	assert.Equal(t, f.Accounts.Waste, res.Posting.Journal.Lines[0].AccountID)

	_, err = f.Documents.RecordWaste(ctx, documents.WasteLog{
		OrgID: f.OrgID, BranchID: f.BranchID, WasteLogID: "WL-2", LoggedAt: mar10,
		Line: documents.Line{ItemID: item, Qty: qty("1")},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestTransfer_MovesValueWithoutJournal(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	f.MapAll()
	item := f.Item("WINE", "bar")
	f.Purchase(t, item, "GR-1", "4", "10", mar3)
	f.Purchase(t, item, "GR-2", "6", "12", mar3.Add(time.Hour))

	out, err := f.Documents.DispatchTransfer(ctx, documents.TransferDispatch{
		OrgID:        f.OrgID,
		TransferID:   "TR-1",
		FromBranchID: f.BranchID,
		ToBranchID:   f.OtherID,
		DispatchedAt: mar10,
		Lines:        []documents.Line{{ItemID: item, Qty: qty("6")}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, types.MustMoney("-64").Equal(out[0].Entry.CostTotal))
	assert.Equal(t, posting.StatusNotApplicable, out[0].Posting.Status)

	transfer := entity.DocumentTransfer
	inTransit, err := f.Documents.Pending(ctx, documents.Filter{
		OrgID: f.OrgID, Kind: &transfer, BranchID: &f.OtherID, IncludeCounterpart: true,
	})
	require.NoError(t, err)
	require.Len(t, inTransit, 1)
	assert.Equal(t, entity.DocumentOpen, inTransit[0].Status)

	in, err := f.Documents.ReceiveTransfer(ctx, documents.TransferReceipt{
		OrgID: f.OrgID, TransferID: "TR-1", ReceivedAt: mar20,
	})
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, f.OtherID, in[0].Entry.BranchID)
	assert.Equal(t, qty("6"), in[0].Entry.Qty)
	assert.True(t, types.MustMoney("64").Equal(in[0].Entry.CostTotal))
	require.Len(t, in[0].Layers, 2)
	assert.True(t, types.MustMoney("10").Equal(in[0].Layers[0].UnitCost))
	assert.True(t, types.MustMoney("12").Equal(in[0].Layers[1].UnitCost))

	journals, err := f.Poster.Journals(ctx, posting.JournalFilter{OrgID: f.OrgID})
	require.NoError(t, err)
	assert.Len(t, journals, 2, "only the purchases post")

	src, err := f.Layers.OnHand(ctx, costlayer.StockKey{OrgID: f.OrgID, BranchID: f.BranchID, ItemID: item})
	require.NoError(t, err)
	assert.Equal(t, qty("4"), src)

	inTransit, err = f.Documents.Pending(ctx, documents.Filter{OrgID: f.OrgID, Kind: &transfer})
	require.NoError(t, err)
	require.Len(t, inTransit, 1)
	assert.Equal(t, entity.DocumentResolved, inTransit[0].Status)

	// Receiving twice replays.
	again, err := f.Documents.ReceiveTransfer(ctx, documents.TransferReceipt{
		OrgID: f.OrgID, TransferID: "TR-1", ReceivedAt: mar20,
	})
	require.NoError(t, err)
	assert.True(t, again[0].Replayed)
}

func TestDispatchTransfer_Rules(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	item := f.Item("WINE", "bar")
	f.Purchase(t, item, "GR-1", "1", "10", mar3)

	_, err := f.Documents.DispatchTransfer(ctx, documents.TransferDispatch{
		OrgID: f.OrgID, TransferID: "TR-1", FromBranchID: f.BranchID, ToBranchID: f.BranchID,
		DispatchedAt: mar10, Lines: []documents.Line{{ItemID: item, Qty: qty("1")}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.Documents.DispatchTransfer(ctx, documents.TransferDispatch{
		OrgID: f.OrgID, TransferID: "TR-2", FromBranchID: f.BranchID, ToBranchID: f.OtherID,
		DispatchedAt: mar10, Lines: []documents.Line{{ItemID: item, Qty: qty("2")}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	// A failed dispatch leaves no in-transit document behind.
	_, err = f.Documents.ReceiveTransfer(ctx, documents.TransferReceipt{
		OrgID: f.OrgID, TransferID: "TR-2", ReceivedAt: mar20,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestFinalizeStocktake(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	f.MapAll()
	beef, salt, herbs, rice := f.Item("BEEF", "meat"), f.Item("SALT", "dry"), f.Item("HERBS", "produce"), f.Item("RICE", "dry")
	f.Purchase(t, beef, "GR-1", "10", "8", mar3)
	f.Purchase(t, salt, "GR-2", "5", "2", mar3)
	f.Purchase(t, rice, "GR-3", "4", "1", mar3)

	_, err := f.Documents.OpenStocktake(ctx, documents.Stocktake{
		OrgID: f.OrgID, BranchID: f.BranchID, StocktakeID: "ST-1", CountDate: mar20,
	})
	require.NoError(t, err)

	herbCost := types.MustMoney("1.5")
	counts := []documents.CountLine{
		{ItemID: beef, CountedQty: qty("7")},
		{ItemID: salt, CountedQty: qty("6")},
		{ItemID: herbs, CountedQty: qty("2"), UnitCost: &herbCost},
		{ItemID: rice, CountedQty: qty("4")},
	}
	results, err := f.Documents.FinalizeStocktake(ctx, f.OrgID, "ST-1", counts)
	require.NoError(t, err)
	require.Len(t, results, 3, "matching counts record nothing")

	shortfall := results[0].Entry
	assert.Equal(t, entity.EventAdjustment, shortfall.EventType)
	assert.Equal(t, qty("-3"), shortfall.Qty)
	assert.True(t, types.MustMoney("-24").Equal(shortfall.CostTotal))
	assert.True(t, shortfall.OccurredAt.Equal(mar20))
	assert.Equal(t, f.Accounts.Shrink, results[0].Posting.Journal.Lines[0].AccountID)

	surplus := results[1].Entry
	assert.Equal(t, qty("1"), surplus.Qty)
	assert.True(t, types.MustMoney("2").Equal(surplus.CostTotal), "priced at the latest layer cost")

	explicit := results[2].Entry
	assert.True(t, types.MustMoney("3").Equal(explicit.CostTotal))

	replay, err := f.Documents.FinalizeStocktake(ctx, f.OrgID, "ST-1", counts)
	require.NoError(t, err)
	require.Len(t, replay, 3)
	for _, r := range replay {
		assert.True(t, r.Replayed)
	}

	onHand, err := f.Layers.OnHand(ctx, costlayer.StockKey{OrgID: f.OrgID, BranchID: f.BranchID, ItemID: beef})
	require.NoError(t, err)
	assert.Equal(t, qty("7"), onHand)
}

func TestFinalizeStocktake_Validation(t *testing.T) {
	ctx := context.Background()
	f := enginetest.New(t)
	item := f.Item("X", "")

	_, err := f.Documents.FinalizeStocktake(ctx, f.OrgID, "ST-1", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.Documents.FinalizeStocktake(ctx, f.OrgID, "ST-1", []documents.CountLine{
		{ItemID: item, CountedQty: qty("-1")},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuantity))

	_, err = f.Documents.FinalizeStocktake(ctx, f.OrgID, "ST-1", []documents.CountLine{
		{ItemID: item, CountedQty: qty("1")},
		{ItemID: item, CountedQty: qty("2")},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.Documents.FinalizeStocktake(ctx, f.OrgID, "ST-404", []documents.CountLine{
		{ItemID: item, CountedQty: qty("1")},
	})
	assert.True(t, apperror.IsNotFound(err))
}
