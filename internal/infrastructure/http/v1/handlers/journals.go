package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/posting"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// JournalsHandler exposes the GL journal entries created by posting.
type JournalsHandler struct {
	*BaseHandler
	poster *posting.Poster
}

// NewJournalsHandler creates a new journals handler.
func NewJournalsHandler(base *BaseHandler, poster *posting.Poster) *JournalsHandler {
	return &JournalsHandler{BaseHandler: base, poster: poster}
}

// List handles GET /journals.
func (h *JournalsHandler) List(c *gin.Context) {
	var q dto.JournalsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()
	if !h.RequireOrg(c, filter.OrgID) {
		return
	}

	journals, err := h.poster.Journals(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(journals, filter.Limit, filter.Offset))
}
