package documents

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// GoodsReceipt is a procurement receipt.
type GoodsReceipt struct {
	OrgID      id.ID         `json:"orgId"`
	BranchID   id.ID         `json:"branchId"`
	ReceiptID  string        `json:"receiptId"`
	SupplierID string        `json:"supplierId,omitempty"`
	InvoiceRef string        `json:"invoiceRef,omitempty"`
	ReceivedAt time.Time     `json:"receivedAt"`
	Lines      []ReceiptLine `json:"lines"`
}

// ReceiptLine is one priced line of a receipt.
type ReceiptLine struct {
	LineID   string         `json:"lineId,omitempty"`
	ItemID   id.ID          `json:"itemId"`
	Qty      types.Quantity `json:"qty"`
	UnitCost types.Money    `json:"unitCost"`
}

func (r *GoodsReceipt) validate() error {
	if id.IsNil(r.OrgID) || id.IsNil(r.BranchID) || r.ReceiptID == "" {
		return apperror.NewValidation("org, branch and receipt id are required")
	}
	if r.ReceivedAt.IsZero() {
		return apperror.NewValidation("receivedAt is required")
	}
	lines := make([]Line, len(r.Lines))
	for i, l := range r.Lines {
		if l.UnitCost.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("line %d: unit cost cannot be negative", i))
		}
		lines[i] = Line{ItemID: l.ItemID, Qty: l.Qty}
	}
	return validateLines(lines)
}

// AnnounceReceipt registers a receipt that exists upstream but is not posted
// yet. Until it is posted the period it falls in cannot close.
func (s *Service) AnnounceReceipt(ctx context.Context, r GoodsReceipt) (*entity.PendingDocument, error) {
	if id.IsNil(r.OrgID) || id.IsNil(r.BranchID) || r.ReceiptID == "" || r.ReceivedAt.IsZero() {
		return nil, apperror.NewValidation("org, branch, receipt id and receivedAt are required")
	}
	return s.open(ctx, &entity.PendingDocument{
		OrgID:        r.OrgID,
		BranchID:     r.BranchID,
		Kind:         entity.DocumentReceipt,
		SourceType:   entity.SourceGoodsReceipt,
		SourceID:     r.ReceiptID,
		BusinessDate: r.ReceivedAt,
	})
}

// PostReceipt records one PURCHASE per item and resolves the pending
// receipt, atomically. Lines of one item at different costs become
// separate layers of the item's single event.
func (s *Service) PostReceipt(ctx context.Context, r GoodsReceipt) ([]*ledger.RecordResult, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	inputs := receiptEvents(r)

	var results []*ledger.RecordResult
	err := s.atomically(ctx, func(ctx context.Context) error {
		results = make([]*ledger.RecordResult, 0, len(inputs))
		for _, in := range inputs {
			res, err := s.recorder.Record(ctx, in)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return s.resolveIfOpen(ctx, r.OrgID, entity.DocumentReceipt, entity.SourceGoodsReceipt, r.ReceiptID)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func receiptEvents(r GoodsReceipt) []ledger.EventInput {
	order := make([]id.ID, 0, len(r.Lines))
	byItem := make(map[id.ID][]ReceiptLine, len(r.Lines))
	for _, l := range r.Lines {
		if _, ok := byItem[l.ItemID]; !ok {
			order = append(order, l.ItemID)
		}
		byItem[l.ItemID] = append(byItem[l.ItemID], l)
	}

	inputs := make([]ledger.EventInput, 0, len(order))
	for _, itemID := range order {
		lines := byItem[itemID]
		in := ledger.EventInput{
			OrgID:      r.OrgID,
			BranchID:   r.BranchID,
			ItemID:     itemID,
			EventType:  entity.EventPurchase,
			SourceType: entity.SourceGoodsReceipt,
			SourceID:   r.ReceiptID,
			OccurredAt: r.ReceivedAt,
			Payload: entity.PurchasePayload{
				SupplierID:    r.SupplierID,
				ReceiptLineID: lines[0].LineID,
				InvoiceRef:    r.InvoiceRef,
			},
		}
		if len(lines) == 1 {
			in.QtyDelta = lines[0].Qty
			in.UnitCost = lines[0].UnitCost
		} else {
			for _, l := range lines {
				in.QtyDelta += l.Qty
				in.Layers = append(in.Layers, ledger.InboundLayer{Qty: l.Qty, UnitCost: l.UnitCost})
			}
		}
		inputs = append(inputs, in)
	}
	return inputs
}
