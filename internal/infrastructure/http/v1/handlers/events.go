package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// EventsHandler records raw business events.
type EventsHandler struct {
	*BaseHandler
	recorder *ledger.Recorder
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(base *BaseHandler, recorder *ledger.Recorder) *EventsHandler {
	return &EventsHandler{BaseHandler: base, recorder: recorder}
}

// Record handles POST /events.
// Responds 201 for a new entry and 200 when the source key was already recorded.
func (h *EventsHandler) Record(c *gin.Context) {
	var req dto.RecordEventRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !h.RequireOrg(c, req.OrgID) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.recorder.RecordEvent(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.NewRecordResponse(res)
	if resp.Replayed {
		h.OK(c, resp)
		return
	}
	h.Audit(c, req.OrgID, audit.ActionRecordEvent, "ledger_entry", res.Entry.ID.String(), req)
	c.JSON(http.StatusCreated, resp)
}
