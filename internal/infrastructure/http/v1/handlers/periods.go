package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/period"
	"stockledger/internal/domain/valuation"
	"stockledger/internal/infrastructure/export"
	"stockledger/internal/infrastructure/http/v1/dto"
)

const formatXLSX = "xlsx"

// PeriodsHandler manages inventory periods and their reports.
type PeriodsHandler struct {
	*BaseHandler
	periods   *period.Service
	valuation *valuation.Service
}

// NewPeriodsHandler creates a new periods handler.
func NewPeriodsHandler(base *BaseHandler, periods *period.Service, val *valuation.Service) *PeriodsHandler {
	return &PeriodsHandler{BaseHandler: base, periods: periods, valuation: val}
}

// Ensure handles POST /periods.
func (h *PeriodsHandler) Ensure(c *gin.Context) {
	var req dto.EnsurePeriodRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	p, err := h.periods.EnsurePeriod(c.Request.Context(), req.OrgID, req.BranchID, req.Year, req.Month)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Audit(c, req.OrgID, audit.ActionEnsurePeriod, "inventory_period", p.ID.String(), req)
	h.OK(c, p)
}

// List handles GET /periods.
func (h *PeriodsHandler) List(c *gin.Context) {
	var q dto.ListPeriodsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()
	if !h.RequireOrg(c, filter.OrgID) {
		return
	}

	periods, err := h.periods.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(periods, 0, 0))
}

// Get handles GET /periods/:id.
func (h *PeriodsHandler) Get(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}
	h.OK(c, p)
}

// Preclose handles GET /periods/:id/preclose.
func (h *PeriodsHandler) Preclose(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	blockers, err := h.periods.RunPrecloseCheck(c.Request.Context(), p.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewPrecloseResponse(p, blockers))
}

// Close handles POST /periods/:id/close.
func (h *PeriodsHandler) Close(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}
	var req dto.ClosePeriodRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.periods.Close(c.Request.Context(), period.CloseRequest{
		PeriodID: p.ID,
		Override: req.Override,
		Reason:   req.Reason,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Audit(c, p.OrgID, audit.ActionClosePeriod, "inventory_period", p.ID.String(), gin.H{
		"override":   req.Override,
		"reason":     req.Reason,
		"overridden": result.Overridden,
		"totalValue": valuation.TotalValue(result.Snapshot),
	})
	h.OK(c, result)
}

// History handles GET /periods/:id/history.
func (h *PeriodsHandler) History(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	events, err := h.periods.History(c.Request.Context(), p.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(events, 0, 0))
}

// Valuation handles GET /periods/:id/valuation[?format=xlsx].
func (h *PeriodsHandler) Valuation(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	rows, err := h.valuation.Snapshot(c.Request.Context(), p.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if c.Query("format") == formatXLSX {
		h.xlsx(c, export.FileName("valuation", p), func(w io.Writer) error {
			return export.WriteValuation(w, p, rows)
		})
		return
	}
	h.OK(c, dto.NewValuationResponse(p, rows))
}

// Movements handles GET /periods/:id/movements[?format=xlsx].
func (h *PeriodsHandler) Movements(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	rows, err := h.valuation.SummarizeMovements(c.Request.Context(), p.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if c.Query("format") == formatXLSX {
		h.xlsx(c, export.FileName("movements", p), func(w io.Writer) error {
			return export.WriteMovements(w, p, rows)
		})
		return
	}
	h.OK(c, dto.NewMovementsResponse(p, rows))
}

// period loads the :id period and checks the caller's org access.
func (h *PeriodsHandler) period(c *gin.Context) (*entity.InventoryPeriod, bool) {
	periodID, ok := h.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := h.periods.Get(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	if !h.RequireOrg(c, p.OrgID) {
		return nil, false
	}
	return p, true
}

func (h *PeriodsHandler) xlsx(c *gin.Context, fileName string, write func(w io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
