package dto

import (
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/period"
	"stockledger/internal/domain/posting"
	"stockledger/internal/domain/valuation"
)

// EnsurePeriodRequest opens a branch month if it does not exist yet.
type EnsurePeriodRequest struct {
	OrgID    id.ID `json:"orgId" binding:"required"`
	BranchID id.ID `json:"branchId" binding:"required"`
	Year     int   `json:"year" binding:"required,min=2000,max=9999"`
	Month    int   `json:"month" binding:"required,min=1,max=12"`
}

// ListPeriodsQuery filters GET /periods.
type ListPeriodsQuery struct {
	OrgID    string `form:"orgId" binding:"required,uuid"`
	BranchID string `form:"branchId" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,oneof=OPEN CLOSED"`
	Year     int    `form:"year" binding:"omitempty,min=2000,max=9999"`
}

// ToFilter converts the query. Fields are already validated.
func (q *ListPeriodsQuery) ToFilter() period.ListFilter {
	f := period.ListFilter{OrgID: id.MustParse(q.OrgID), BranchID: id.MustParseOptional(q.BranchID)}
	if q.Status != "" {
		st := entity.PeriodStatus(q.Status)
		f.Status = &st
	}
	if q.Year != 0 {
		year := q.Year
		f.Year = &year
	}
	return f
}

// ClosePeriodRequest closes a period, optionally overriding blockers.
type ClosePeriodRequest struct {
	Override bool   `json:"override"`
	Reason   string `json:"reason"`
}

// PrecloseResponse is the blocker report of a period.
type PrecloseResponse struct {
	PeriodID    string           `json:"periodId"`
	Period      string           `json:"period"`
	Status      string           `json:"status"`
	CanClose    bool             `json:"canClose"`
	Overridable bool             `json:"overridable"`
	Blockers    []entity.Blocker `json:"blockers"`
}

// NewPrecloseResponse builds the report.
func NewPrecloseResponse(p *entity.InventoryPeriod, blockers []entity.Blocker) PrecloseResponse {
	overridable := true
	for _, b := range blockers {
		overridable = overridable && b.Overridable
	}
	if blockers == nil {
		blockers = []entity.Blocker{}
	}
	return PrecloseResponse{
		PeriodID:    p.ID.String(),
		Period:      p.Label(),
		Status:      string(p.Status),
		CanClose:    !p.IsClosed() && len(blockers) == 0,
		Overridable: !p.IsClosed() && len(blockers) > 0 && overridable,
		Blockers:    blockers,
	}
}

// ValuationResponse is the valuation report of a period.
type ValuationResponse struct {
	Period     *entity.InventoryPeriod    `json:"period"`
	Frozen     bool                       `json:"frozen"`
	TotalValue types.Money                `json:"totalValue"`
	Rows       []entity.ValuationSnapshot `json:"rows"`
}

// NewValuationResponse builds the report.
func NewValuationResponse(p *entity.InventoryPeriod, rows []entity.ValuationSnapshot) ValuationResponse {
	if rows == nil {
		rows = []entity.ValuationSnapshot{}
	}
	return ValuationResponse{
		Period:     p,
		Frozen:     p.IsClosed(),
		TotalValue: valuation.TotalValue(rows),
		Rows:       rows,
	}
}

// MovementsResponse is the movement summary of a period.
type MovementsResponse struct {
	Period *entity.InventoryPeriod  `json:"period"`
	Frozen bool                     `json:"frozen"`
	Rows   []entity.MovementSummary `json:"rows"`
}

// NewMovementsResponse builds the report.
func NewMovementsResponse(p *entity.InventoryPeriod, rows []entity.MovementSummary) MovementsResponse {
	if rows == nil {
		rows = []entity.MovementSummary{}
	}
	return MovementsResponse{Period: p, Frozen: p.IsClosed(), Rows: rows}
}

// JournalsQuery filters GET /journals.
type JournalsQuery struct {
	OrgID      string     `form:"orgId" binding:"required,uuid"`
	BranchID   string     `form:"branchId" binding:"omitempty,uuid"`
	SourceType string     `form:"sourceType"`
	SourceID   string     `form:"sourceId"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset     int        `form:"offset" binding:"omitempty,min=0"`
}

// DefaultJournalLimit caps GET /journals when no limit is given.
const DefaultJournalLimit = 100

// ToFilter converts the query. Fields are already validated.
func (q *JournalsQuery) ToFilter() posting.JournalFilter {
	f := posting.JournalFilter{
		OrgID:    id.MustParse(q.OrgID),
		BranchID: id.MustParseOptional(q.BranchID),
		From:     q.From,
		To:       q.To,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if f.Limit == 0 {
		f.Limit = DefaultJournalLimit
	}
	if q.SourceType != "" {
		st := entity.SourceType(q.SourceType)
		f.SourceType = &st
	}
	if q.SourceID != "" {
		sid := q.SourceID
		f.SourceID = &sid
	}
	return f
}
