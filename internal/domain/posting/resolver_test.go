package posting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

func strPtr(s string) *string { return &s }

func TestSelectMapping_Precedence(t *testing.T) {
	branch, otherBranch := id.New(), id.New()
	orgWide := entity.PostingMapping{ID: id.New()}
	branchOnly := entity.PostingMapping{ID: id.New(), BranchID: id.Ptr(branch)}
	categoryOnly := entity.PostingMapping{ID: id.New(), Category: strPtr("produce")}
	exact := entity.PostingMapping{ID: id.New(), BranchID: id.Ptr(branch), Category: strPtr("produce")}
	foreign := entity.PostingMapping{ID: id.New(), BranchID: id.Ptr(otherBranch), Category: strPtr("produce")}

	tests := []struct {
		name       string
		candidates []entity.PostingMapping
		want       *id.ID
	}{
		{"none", nil, nil},
		{"org wide only", []entity.PostingMapping{orgWide}, &orgWide.ID},
		{"branch beats org wide", []entity.PostingMapping{orgWide, branchOnly}, &branchOnly.ID},
		{"category beats branch", []entity.PostingMapping{branchOnly, categoryOnly, orgWide}, &categoryOnly.ID},
		{"exact beats all", []entity.PostingMapping{categoryOnly, exact, branchOnly, orgWide}, &exact.ID},
		{"other branch ignored", []entity.PostingMapping{foreign}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectMapping(tt.candidates, branch, "produce")
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, got.ID)
		})
	}
}

func TestAccounts_Rules(t *testing.T) {
	a := entity.PostingAccounts{
		InventoryAccountID: id.Ptr(id.New()),
		COGSAccountID:      id.Ptr(id.New()),
		WasteAccountID:     id.Ptr(id.New()),
		ShrinkAccountID:    id.Ptr(id.New()),
		GRNIAccountID:      id.Ptr(id.New()),
		GainAccountID:      id.Ptr(id.New()),
	}

	tests := []struct {
		event         entity.EventType
		inbound       bool
		debit, credit *id.ID
	}{
		{entity.EventPurchase, true, a.InventoryAccountID, a.GRNIAccountID},
		{entity.EventSale, false, a.COGSAccountID, a.InventoryAccountID},
		{entity.EventWaste, false, a.WasteAccountID, a.InventoryAccountID},
		{entity.EventAdjustment, false, a.ShrinkAccountID, a.InventoryAccountID},
		{entity.EventAdjustment, true, a.InventoryAccountID, a.GainAccountID},
	}
	for _, tt := range tests {
		dr, cr, ok := Accounts(a, tt.event, tt.inbound)
		require.True(t, ok, tt.event)
		assert.Equal(t, *tt.debit, dr, tt.event)
		assert.Equal(t, *tt.credit, cr, tt.event)
	}

	_, _, ok := Accounts(a, entity.EventTransferOut, false)
	assert.False(t, ok)

	a.WasteAccountID = nil
	_, _, ok = Accounts(a, entity.EventWaste, false)
	assert.False(t, ok, "missing waste account means not configured")
}

func TestHasGLEffect(t *testing.T) {
	assert.True(t, HasGLEffect(entity.EventPurchase))
	assert.True(t, HasGLEffect(entity.EventAdjustment))
	assert.False(t, HasGLEffect(entity.EventTransferIn))
	assert.False(t, HasGLEffect(entity.EventTransferOut))
}
