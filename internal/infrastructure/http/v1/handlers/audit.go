package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/audit"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// AuditHandler serves the API audit trail.
type AuditHandler struct {
	*BaseHandler
	reader audit.Reader
}

// NewAuditHandler creates a new audit handler. A nil reader serves empty trails.
func NewAuditHandler(base *BaseHandler, reader audit.Reader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// History handles GET /audit.
func (h *AuditHandler) History(c *gin.Context) {
	var q dto.AuditQuery
	if !h.BindQuery(c, &q) {
		return
	}
	orgID := q.Org()
	if !h.RequireOrg(c, orgID) {
		return
	}

	limit := q.EffectiveLimit()
	if h.reader == nil {
		h.OK(c, dto.NewListResponse([]audit.Entry(nil), limit, 0))
		return
	}
	entries, err := h.reader.History(c.Request.Context(), orgID, q.EntityType, q.EntityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries, limit, 0))
}
