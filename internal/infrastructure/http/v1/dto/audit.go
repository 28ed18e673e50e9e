package dto

import "stockledger/internal/core/id"

// AuditQuery selects the trail of one entity.
type AuditQuery struct {
	OrgID      string `form:"orgId" binding:"required,uuid"`
	EntityType string `form:"entityType" binding:"required"`
	EntityID   string `form:"entityId" binding:"required"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// DefaultAuditLimit caps GET /audit when no limit is given.
const DefaultAuditLimit = 50

// Org returns the validated organization id.
func (q *AuditQuery) Org() id.ID { return id.MustParse(q.OrgID) }

// EffectiveLimit applies DefaultAuditLimit.
func (q *AuditQuery) EffectiveLimit() int {
	if q.Limit == 0 {
		return DefaultAuditLimit
	}
	return q.Limit
}
