package dto

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents"
)

// LineRequest is an item quantity.
type LineRequest struct {
	ItemID id.ID          `json:"itemId" binding:"required"`
	Qty    types.Quantity `json:"qty"`
}

func toLines(in []LineRequest) []documents.Line {
	out := make([]documents.Line, 0, len(in))
	for _, l := range in {
		out = append(out, documents.Line{ItemID: l.ItemID, Qty: l.Qty})
	}
	return out
}

// GoodsReceiptRequest announces or posts a procurement receipt.
type GoodsReceiptRequest struct {
	OrgID      id.ID                   `json:"orgId" binding:"required"`
	BranchID   id.ID                   `json:"branchId" binding:"required"`
	ReceiptID  string                  `json:"receiptId" binding:"required"`
	SupplierID string                  `json:"supplierId"`
	InvoiceRef string                  `json:"invoiceRef"`
	ReceivedAt time.Time               `json:"receivedAt" binding:"required"`
	Lines      []documents.ReceiptLine `json:"lines"`
}

// ToDomain converts the request.
func (r *GoodsReceiptRequest) ToDomain() documents.GoodsReceipt {
	return documents.GoodsReceipt{
		OrgID:      r.OrgID,
		BranchID:   r.BranchID,
		ReceiptID:  r.ReceiptID,
		SupplierID: r.SupplierID,
		InvoiceRef: r.InvoiceRef,
		ReceivedAt: r.ReceivedAt,
		Lines:      r.Lines,
	}
}

// OrderDepletionRequest carries the ingredient usage of a completed order.
type OrderDepletionRequest struct {
	OrgID       id.ID         `json:"orgId" binding:"required"`
	BranchID    id.ID         `json:"branchId" binding:"required"`
	OrderID     string        `json:"orderId" binding:"required"`
	CompletedAt time.Time     `json:"completedAt" binding:"required"`
	MenuItemID  string        `json:"menuItemId"`
	Lines       []LineRequest `json:"lines" binding:"required,min=1"`
}

// ToDomain converts the request.
func (r *OrderDepletionRequest) ToDomain() documents.OrderDepletion {
	return documents.OrderDepletion{
		OrgID:       r.OrgID,
		BranchID:    r.BranchID,
		OrderID:     r.OrderID,
		CompletedAt: r.CompletedAt,
		MenuItemID:  r.MenuItemID,
		Lines:       toLines(r.Lines),
	}
}

// WasteRequest logs a discard.
type WasteRequest struct {
	OrgID      id.ID       `json:"orgId" binding:"required"`
	BranchID   id.ID       `json:"branchId" binding:"required"`
	WasteLogID string      `json:"wasteLogId" binding:"required"`
	LoggedAt   time.Time   `json:"loggedAt" binding:"required"`
	Reason     string      `json:"reason" binding:"required"`
	Note       string      `json:"note"`
	Line       LineRequest `json:"line"`
}

// ToDomain converts the request.
func (r *WasteRequest) ToDomain() documents.WasteLog {
	return documents.WasteLog{
		OrgID:      r.OrgID,
		BranchID:   r.BranchID,
		WasteLogID: r.WasteLogID,
		LoggedAt:   r.LoggedAt,
		Reason:     r.Reason,
		Note:       r.Note,
		Line:       documents.Line{ItemID: r.Line.ItemID, Qty: r.Line.Qty},
	}
}

// TransferDispatchRequest ships goods between branches.
type TransferDispatchRequest struct {
	OrgID        id.ID         `json:"orgId" binding:"required"`
	TransferID   string        `json:"transferId" binding:"required"`
	FromBranchID id.ID         `json:"fromBranchId" binding:"required"`
	ToBranchID   id.ID         `json:"toBranchId" binding:"required"`
	DispatchedAt time.Time     `json:"dispatchedAt" binding:"required"`
	Lines        []LineRequest `json:"lines" binding:"required,min=1"`
}

// ToDomain converts the request.
func (r *TransferDispatchRequest) ToDomain() documents.TransferDispatch {
	return documents.TransferDispatch{
		OrgID:        r.OrgID,
		TransferID:   r.TransferID,
		FromBranchID: r.FromBranchID,
		ToBranchID:   r.ToBranchID,
		DispatchedAt: r.DispatchedAt,
		Lines:        toLines(r.Lines),
	}
}

// TransferReceiveRequest acknowledges a dispatched transfer.
type TransferReceiveRequest struct {
	OrgID      id.ID     `json:"orgId" binding:"required"`
	TransferID string    `json:"transferId" binding:"required"`
	ReceivedAt time.Time `json:"receivedAt" binding:"required"`
}

// ToDomain converts the request.
func (r *TransferReceiveRequest) ToDomain() documents.TransferReceipt {
	return documents.TransferReceipt{OrgID: r.OrgID, TransferID: r.TransferID, ReceivedAt: r.ReceivedAt}
}

// OpenStocktakeRequest starts a count session.
type OpenStocktakeRequest struct {
	OrgID       id.ID     `json:"orgId" binding:"required"`
	BranchID    id.ID     `json:"branchId" binding:"required"`
	StocktakeID string    `json:"stocktakeId" binding:"required"`
	CountDate   time.Time `json:"countDate" binding:"required"`
}

// ToDomain converts the request.
func (r *OpenStocktakeRequest) ToDomain() documents.Stocktake {
	return documents.Stocktake{
		OrgID:       r.OrgID,
		BranchID:    r.BranchID,
		StocktakeID: r.StocktakeID,
		CountDate:   r.CountDate,
	}
}

// FinalizeStocktakeRequest submits the counted quantities.
type FinalizeStocktakeRequest struct {
	OrgID       id.ID                 `json:"orgId" binding:"required"`
	StocktakeID string                `json:"stocktakeId" binding:"required"`
	Counts      []documents.CountLine `json:"counts" binding:"required,min=1"`
}
