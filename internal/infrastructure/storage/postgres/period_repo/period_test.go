package period_repo

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/period"
)

func TestListQuery(t *testing.T) {
	repo := NewRepo(nil)
	org, branch := id.New(), id.New()
	closed := entity.PeriodClosed
	year := 2026
	cols := strings.Join(periodColumns, ", ")

	tests := []struct {
		name     string
		filter   period.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "org only",
			filter:   period.ListFilter{OrgID: org},
			wantSQL:  "SELECT " + cols + " FROM inv_periods WHERE org_id = $1 ORDER BY branch_id, year, month",
			wantArgs: []any{org.String()},
		},
		{
			name:   "all filters",
			filter: period.ListFilter{OrgID: org, BranchID: &branch, Status: &closed, Year: &year},
			wantSQL: "SELECT " + cols + " FROM inv_periods WHERE org_id = $1 AND branch_id = $2 " +
				"AND status = $3 AND year = $4 ORDER BY branch_id, year, month",
			wantArgs: []any{org.String(), branch.String(), closed, year},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, fmt.Sprint(tt.wantArgs), fmt.Sprint(args))
		})
	}
}

func TestByIDQuery(t *testing.T) {
	repo := NewRepo(nil)
	p := id.New()

	sql, args, err := repo.byID(p).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql, "FROM inv_periods WHERE id = $1 FOR UPDATE"), sql)
	assert.Equal(t, fmt.Sprint([]any{p.String()}), fmt.Sprint(args))
}
