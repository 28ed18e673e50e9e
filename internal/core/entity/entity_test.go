package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

func TestJournalEntry_Validate(t *testing.T) {
	inv, cogs := id.New(), id.New()
	amount := types.MustMoney("1600")

	balanced := JournalEntry{Lines: []JournalLine{
		{LineNo: 1, AccountID: cogs, Debit: amount, Credit: types.Zero()},
		{LineNo: 2, AccountID: inv, Debit: types.Zero(), Credit: amount},
	}}
	assert.NoError(t, balanced.Validate())

	unbalanced := JournalEntry{Lines: []JournalLine{
		{LineNo: 1, AccountID: cogs, Debit: amount, Credit: types.Zero()},
		{LineNo: 2, AccountID: inv, Debit: types.Zero(), Credit: types.MustMoney("1599.99")},
	}}
	err := unbalanced.Validate()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnbalancedJournal))

	twoSided := JournalEntry{Lines: []JournalLine{
		{LineNo: 1, AccountID: cogs, Debit: amount, Credit: amount},
		{LineNo: 2, AccountID: inv, Debit: types.Zero(), Credit: types.Zero()},
	}}
	assert.True(t, apperror.HasCode(twoSided.Validate(), apperror.CodeUnbalancedJournal))

	single := JournalEntry{Lines: []JournalLine{{LineNo: 1, AccountID: inv, Debit: amount}}}
	assert.True(t, apperror.HasCode(single.Validate(), apperror.CodeUnbalancedJournal))
}

func TestEventType_Direction(t *testing.T) {
	assert.Equal(t, DirectionInbound, EventPurchase.Direction())
	assert.Equal(t, DirectionInbound, EventTransferIn.Direction())
	assert.Equal(t, DirectionOutbound, EventSale.Direction())
	assert.Equal(t, DirectionOutbound, EventWaste.Direction())
	assert.Equal(t, DirectionOutbound, EventTransferOut.Direction())
	assert.Equal(t, DirectionEither, EventAdjustment.Direction())
	assert.False(t, EventType("REFUND").Valid())
}

func TestPayloadRoundTrip(t *testing.T) {
	branch := id.New()
	raw, err := EncodePayload(TransferPayload{TransferID: "tr-9", CounterpartBranchID: branch})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"transfer"`)

	p, err := DecodePayload(raw)
	require.NoError(t, err)
	tp, ok := p.(TransferPayload)
	require.True(t, ok)
	assert.Equal(t, branch, tp.CounterpartBranchID)
	assert.True(t, tp.Accepts(EventTransferOut))
	assert.False(t, tp.Accepts(EventSale))

	_, err = DecodePayload([]byte(`{"kind":"refund","data":{}}`))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	none, err := DecodePayload(nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestPayloadValidate(t *testing.T) {
	assert.Error(t, WastePayload{}.Validate())
	assert.NoError(t, WastePayload{Reason: "spoiled"}.Validate())
	assert.Error(t, TransferPayload{TransferID: "x"}.Validate())
	assert.Error(t, AdjustmentPayload{CountedQty: types.NewQuantity(-1)}.Validate())
}

func TestInventoryPeriod_Bounds(t *testing.T) {
	p := NewPeriod(id.New(), id.New(), time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2024-12", p.Label())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), p.End())
	assert.True(t, p.Contains(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(p.End()))
	assert.Equal(t, PeriodOpen, p.Status)
}

func TestFIFOLess(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := &CostLayer{ReceivedAt: t1, Seq: 2}
	b := &CostLayer{ReceivedAt: t1, Seq: 1}
	c := &CostLayer{ReceivedAt: t1.Add(-time.Hour), Seq: 9}
	assert.True(t, FIFOLess(b, a))
	assert.True(t, FIFOLess(c, b))
	assert.False(t, FIFOLess(a, a))
}
