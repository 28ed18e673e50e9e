package catalog_repo

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
)

func TestItemQuery(t *testing.T) {
	repo := NewItemRepo(nil)
	org, item := id.New(), id.New()

	sql, args, err := repo.itemQuery(org, item).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT "+strings.Join(itemColumns, ", ")+" FROM inventory_items WHERE id = $1 AND org_id = $2",
		sql)
	assert.Equal(t, fmt.Sprint([]any{item.String(), org.String()}), fmt.Sprint(args))
	assert.Contains(t, itemColumns, "reorder_level")
}
