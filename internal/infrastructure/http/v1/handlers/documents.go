package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// DocumentsHandler takes upstream documents (receipts, orders, waste,
// transfers, stocktakes) into the ledger.
type DocumentsHandler struct {
	*BaseHandler
	service *documents.Service
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(base *BaseHandler, service *documents.Service) *DocumentsHandler {
	return &DocumentsHandler{BaseHandler: base, service: service}
}

// AnnounceReceipt handles POST /goods-receipts/announce.
func (h *DocumentsHandler) AnnounceReceipt(c *gin.Context) {
	var req dto.GoodsReceiptRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	doc, err := h.service.AnnounceReceipt(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Audit(c, req.OrgID, audit.ActionAnnounceReceipt, "goods_receipt", req.ReceiptID, req)
	h.Created(c, doc)
}

// PostReceipt handles POST /goods-receipts/post.
func (h *DocumentsHandler) PostReceipt(c *gin.Context) {
	var req dto.GoodsReceiptRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	results, err := h.service.PostReceipt(c.Request.Context(), req.ToDomain())
	h.recorded(c, req.OrgID, audit.ActionPostReceipt, "goods_receipt", req.ReceiptID, req, results, err)
}

// Deplete handles POST /orders/deplete.
func (h *DocumentsHandler) Deplete(c *gin.Context) {
	var req dto.OrderDepletionRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	results, err := h.service.RecordOrderDepletion(c.Request.Context(), req.ToDomain())
	h.recorded(c, req.OrgID, audit.ActionDeplete, "order", req.OrderID, req, results, err)
}

// Waste handles POST /waste.
func (h *DocumentsHandler) Waste(c *gin.Context) {
	var req dto.WasteRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	res, err := h.service.RecordWaste(c.Request.Context(), req.ToDomain())
	var results []*ledger.RecordResult
	if res != nil {
		results = append(results, res)
	}
	h.recorded(c, req.OrgID, audit.ActionWaste, "waste_log", req.WasteLogID, req, results, err)
}

// DispatchTransfer handles POST /transfers/dispatch.
func (h *DocumentsHandler) DispatchTransfer(c *gin.Context) {
	var req dto.TransferDispatchRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	results, err := h.service.DispatchTransfer(c.Request.Context(), req.ToDomain())
	h.recorded(c, req.OrgID, audit.ActionDispatch, "transfer", req.TransferID, req, results, err)
}

// ReceiveTransfer handles POST /transfers/receive.
func (h *DocumentsHandler) ReceiveTransfer(c *gin.Context) {
	var req dto.TransferReceiveRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	results, err := h.service.ReceiveTransfer(c.Request.Context(), req.ToDomain())
	h.recorded(c, req.OrgID, audit.ActionReceive, "transfer", req.TransferID, req, results, err)
}

// OpenStocktake handles POST /stocktakes/open.
func (h *DocumentsHandler) OpenStocktake(c *gin.Context) {
	var req dto.OpenStocktakeRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	doc, err := h.service.OpenStocktake(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Audit(c, req.OrgID, audit.ActionOpenStocktake, "stocktake", req.StocktakeID, req)
	h.Created(c, doc)
}

// FinalizeStocktake handles POST /stocktakes/finalize.
func (h *DocumentsHandler) FinalizeStocktake(c *gin.Context) {
	var req dto.FinalizeStocktakeRequest
	if !h.BindJSON(c, &req) || !h.RequireOrg(c, req.OrgID) {
		return
	}

	results, err := h.service.FinalizeStocktake(c.Request.Context(), req.OrgID, req.StocktakeID, req.Counts)
	h.recorded(c, req.OrgID, audit.ActionFinalize, "stocktake", req.StocktakeID, req, results, err)
}

// recorded writes the response of a ledger-recording document: 201 when
// anything new was recorded, 200 for a pure replay.
func (h *DocumentsHandler) recorded(
	c *gin.Context,
	orgID id.ID,
	action audit.Action,
	entityType, entityID string,
	changes any,
	results []*ledger.RecordResult,
	err error,
) {
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.NewRecordResponse(results...)
	if resp.Replayed {
		h.OK(c, resp)
		return
	}
	h.Audit(c, orgID, action, entityType, entityID, changes)
	c.JSON(http.StatusCreated, resp)
}
