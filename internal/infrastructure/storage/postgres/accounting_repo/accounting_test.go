package accounting_repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/posting"
)

func TestMappingsQuery(t *testing.T) {
	repo := NewRepo(nil)
	org, branch := id.New(), id.New()

	sql, args, err := repo.mappingsQuery(org, branch, "dairy").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT "+strings.Join(mappingColumns, ", ")+" FROM acc_posting_mappings "+
			"WHERE org_id = $1 AND (branch_id = $2 OR branch_id IS NULL) AND (category = $3 OR category IS NULL)",
		sql)
	assert.Equal(t, fmt.Sprint([]any{org.String(), branch.String(), "dairy"}), fmt.Sprint(args))
}

func TestJournalsQuery(t *testing.T) {
	repo := NewRepo(nil)
	org, branch := id.New(), id.New()
	source := entity.SourceGoodsReceipt
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := strings.Join(journalColumns, ", ")

	tests := []struct {
		name     string
		filter   posting.JournalFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "org only",
			filter:   posting.JournalFilter{OrgID: org},
			wantSQL:  "SELECT " + cols + " FROM acc_journal_entries WHERE org_id = $1 ORDER BY posted_at, number",
			wantArgs: []any{org.String()},
		},
		{
			name: "narrowed and paged",
			filter: posting.JournalFilter{
				OrgID: org, BranchID: &branch, SourceType: &source, From: &from,
				Limit: 50, Offset: 100,
			},
			wantSQL: "SELECT " + cols + " FROM acc_journal_entries WHERE org_id = $1 AND branch_id = $2 " +
				"AND source_type = $3 AND posted_at >= $4 ORDER BY posted_at, number LIMIT 50 OFFSET 100",
			wantArgs: []any{org.String(), branch.String(), source, from},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.journalsQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, fmt.Sprint(tt.wantArgs), fmt.Sprint(args))
		})
	}
}
