package document_repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents"
)

func TestListQuery(t *testing.T) {
	repo := NewRepo(nil)
	org, branch := id.New(), id.New()
	kind := entity.DocumentTransfer
	open := entity.DocumentOpen
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	cols := strings.Join(selectCols, ", ")

	tests := []struct {
		name     string
		filter   documents.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "org only",
			filter:   documents.Filter{OrgID: org},
			wantSQL:  "SELECT " + cols + " FROM inv_pending_documents WHERE org_id = $1 ORDER BY business_date, source_id",
			wantArgs: []any{org.String()},
		},
		{
			name:    "branch without counterpart",
			filter:  documents.Filter{OrgID: org, BranchID: &branch, Status: &open},
			wantSQL: "SELECT " + cols + " FROM inv_pending_documents WHERE org_id = $1 AND status = $2 AND branch_id = $3 ORDER BY business_date, source_id",
			wantArgs: []any{org.String(), open, branch.String()},
		},
		{
			name: "branch with counterpart in window",
			filter: documents.Filter{
				OrgID: org, Kind: &kind, BranchID: &branch, IncludeCounterpart: true,
				From: &from, To: &to,
			},
			wantSQL: "SELECT " + cols + " FROM inv_pending_documents WHERE org_id = $1 AND kind = $2 " +
				"AND (branch_id = $3 OR counterpart_branch_id = $4) " +
				"AND business_date >= $5 AND business_date < $6 ORDER BY business_date, source_id",
			wantArgs: []any{org.String(), kind, branch.String(), branch.String(), from, to},
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

func TestSelectColumnsMatchEntity(t *testing.T) {
	assert.Equal(t, "id", selectCols[0])
	assert.Contains(t, selectCols, "counterpart_branch_id")
	assert.Contains(t, selectCols, "resolved_at")
}
