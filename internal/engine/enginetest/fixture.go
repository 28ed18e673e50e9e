// Package enginetest builds an in-memory engine with seeded reference data.
package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/engine"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/pkg/compress"
)

// Fixture is an engine over a fresh memory store with one org, two branches
// and a set of items.
type Fixture struct {
	*engine.Engine

	Store  *memory.Store
	Locker *memory.Locker

	OrgID    id.ID
	BranchID id.ID
	OtherID  id.ID

	Accounts Accounts
}

// Accounts are the GL accounts of the default mapping.
type Accounts struct {
	Inventory, COGS, Waste, Shrink, GRNI, Gain id.ID
}

// New builds a fixture. Conservation is verified after every event.
func New(t *testing.T) *Fixture {
	t.Helper()
	return NewWith(t, nil)
}

// NewWith builds a fixture after letting adjust replace parts of the backend.
func NewWith(t *testing.T, adjust func(b *engine.Backend)) *Fixture {
	t.Helper()

	store := memory.New()
	locker := memory.NewLocker()
	codec, err := compress.NewCodec(256)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	cfg := ledger.DefaultConfig()
	cfg.RetryBackoff = 0
	cfg.VerifyConservation = true

	backend := store.Backend(locker, codec)
	if adjust != nil {
		adjust(&backend)
	}

	return &Fixture{
		Engine:   engine.New(backend, cfg),
		Store:    store,
		Locker:   locker,
		OrgID:    id.New(),
		BranchID: id.New(),
		OtherID:  id.New(),
		Accounts: Accounts{
			Inventory: id.New(),
			COGS:      id.New(),
			Waste:     id.New(),
			Shrink:    id.New(),
			GRNI:      id.New(),
			Gain:      id.New(),
		},
	}
}

// Item seeds an item of category into the catalog.
func (f *Fixture) Item(sku, category string) id.ID {
	item := entity.InventoryItem{
		ID:            id.New(),
		OrgID:         f.OrgID,
		SKU:           sku,
		Name:          sku,
		UnitOfMeasure: "kg",
		Category:      category,
	}
	f.Store.Catalog().SeedItem(item)
	return item.ID
}

// MapAll seeds an org-wide mapping with every account set.
func (f *Fixture) MapAll() {
	f.Map(nil, nil, f.FullAccounts())
}

// FullAccounts returns the fixture's accounts as a complete posting set.
func (f *Fixture) FullAccounts() entity.PostingAccounts {
	return entity.PostingAccounts{
		InventoryAccountID: id.Ptr(f.Accounts.Inventory),
		COGSAccountID:      id.Ptr(f.Accounts.COGS),
		WasteAccountID:     id.Ptr(f.Accounts.Waste),
		ShrinkAccountID:    id.Ptr(f.Accounts.Shrink),
		GRNIAccountID:      id.Ptr(f.Accounts.GRNI),
		GainAccountID:      id.Ptr(f.Accounts.Gain),
	}
}

// Map seeds a mapping.
func (f *Fixture) Map(branchID *id.ID, category *string, accounts entity.PostingAccounts) {
	f.Store.Accounting().SeedMapping(entity.PostingMapping{
		OrgID:           f.OrgID,
		BranchID:        branchID,
		Category:        category,
		PostingAccounts: accounts,
	})
}

// Purchase records a PURCHASE of qty at unitCost.
func (f *Fixture) Purchase(t *testing.T, itemID id.ID, sourceID, qty, unitCost string, at time.Time) *ledger.RecordResult {
	t.Helper()
	res, err := f.Recorder.RecordEvent(context.Background(), ledger.EventInput{
		OrgID:      f.OrgID,
		BranchID:   f.BranchID,
		ItemID:     itemID,
		EventType:  entity.EventPurchase,
		QtyDelta:   types.MustQuantity(qty),
		UnitCost:   types.MustMoney(unitCost),
		SourceType: entity.SourceGoodsReceipt,
		SourceID:   sourceID,
		OccurredAt: at,
	})
	require.NoError(t, err)
	return res
}

// Sale builds a SALE input of qty units.
func (f *Fixture) Sale(itemID id.ID, sourceID, qty string, at time.Time) ledger.EventInput {
	return ledger.EventInput{
		OrgID:      f.OrgID,
		BranchID:   f.BranchID,
		ItemID:     itemID,
		EventType:  entity.EventSale,
		QtyDelta:   types.MustQuantity(qty).Neg(),
		SourceType: entity.SourceOrder,
		SourceID:   sourceID,
		OccurredAt: at,
	}
}

// Closer returns a context whose caller may close periods, and override
// blockers when override is set.
func Closer(userID string, override bool) context.Context {
	perms := []string{string(security.PermissionClosePeriod)}
	if override {
		perms = append(perms, string(security.PermissionOverrideClose))
	}
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      userID,
		Permissions: perms,
	})
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
