package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

func TestExtractDBColumns_PendingDocument(t *testing.T) {
	cols := ExtractDBColumns[entity.PendingDocument]()

	assert.Equal(t, []string{
		"id", "org_id", "branch_id", "counterpart_branch_id",
		"kind", "source_type", "source_id", "status",
		"business_date", "opened_at", "resolved_at",
	}, cols)
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	cols := ExtractDBColumns[entity.PostingMapping]()

	assert.Contains(t, cols, "category")
	assert.Contains(t, cols, "inventory_account_id")
	assert.Contains(t, cols, "gain_account_id")
	assert.Len(t, cols, 10)
}

func TestExtractDBColumns_SkipsIgnoredFields(t *testing.T) {
	cols := ExtractDBColumns[entity.JournalEntry]()

	assert.NotContains(t, cols, "lines")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap(t *testing.T) {
	inv := id.New()
	category := "dairy"
	m := entity.PostingMapping{
		ID:              id.New(),
		OrgID:           id.New(),
		Category:        &category,
		PostingAccounts: entity.PostingAccounts{InventoryAccountID: &inv},
	}

	data := StructToMap(&m)

	assert.Equal(t, m.ID, data["id"])
	assert.Equal(t, &category, data["category"])
	assert.Equal(t, &inv, data["inventory_account_id"])
	assert.Nil(t, data["cogs_account_id"])
	assert.Nil(t, StructToMap(42))
}

func TestSelectColumns(t *testing.T) {
	now := time.Now().UTC()
	doc := entity.PendingDocument{ID: id.New(), SourceID: "GR-1", BusinessDate: now}

	cols, vals := SelectColumns(StructToMap(doc), []string{"id", "source_id", "missing", "business_date"})

	require.Len(t, vals, 3)
	assert.Equal(t, []string{"id", "source_id", "business_date"}, cols)
	assert.Equal(t, "GR-1", vals[1])
	assert.Equal(t, now, vals[2])
}
