package documents

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// OrderDepletion is the ingredient usage of a completed order, already
// expanded from recipes by the caller.
type OrderDepletion struct {
	OrgID       id.ID     `json:"orgId"`
	BranchID    id.ID     `json:"branchId"`
	OrderID     string    `json:"orderId"`
	CompletedAt time.Time `json:"completedAt"`
	MenuItemID  string    `json:"menuItemId,omitempty"`
	Lines       []Line    `json:"lines"`
}

// RecordOrderDepletion records one SALE per ingredient. Replaying the same
// order returns the original entries.
func (s *Service) RecordOrderDepletion(ctx context.Context, o OrderDepletion) ([]*ledger.RecordResult, error) {
	if id.IsNil(o.OrgID) || id.IsNil(o.BranchID) || o.OrderID == "" || o.CompletedAt.IsZero() {
		return nil, apperror.NewValidation("org, branch, order id and completedAt are required")
	}
	if err := validateLines(o.Lines); err != nil {
		return nil, err
	}

	lines := mergeLines(o.Lines)
	inputs := make([]ledger.EventInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, ledger.EventInput{
			OrgID:      o.OrgID,
			BranchID:   o.BranchID,
			ItemID:     l.ItemID,
			EventType:  entity.EventSale,
			QtyDelta:   l.Qty.Neg(),
			SourceType: entity.SourceOrder,
			SourceID:   o.OrderID,
			OccurredAt: o.CompletedAt,
			Payload:    entity.SalePayload{MenuItemID: o.MenuItemID},
		})
	}
	return s.recorder.RecordBatch(ctx, inputs)
}

// WasteLog is a logged discard of one item.
type WasteLog struct {
	OrgID      id.ID     `json:"orgId"`
	BranchID   id.ID     `json:"branchId"`
	WasteLogID string    `json:"wasteLogId"`
	LoggedAt   time.Time `json:"loggedAt"`
	Reason     string    `json:"reason"`
	Note       string    `json:"note,omitempty"`
	Line       Line      `json:"line"`
}

// RecordWaste records a WASTE event.
func (s *Service) RecordWaste(ctx context.Context, w WasteLog) (*ledger.RecordResult, error) {
	if id.IsNil(w.OrgID) || id.IsNil(w.BranchID) || w.WasteLogID == "" || w.LoggedAt.IsZero() {
		return nil, apperror.NewValidation("org, branch, waste log id and loggedAt are required")
	}
	if err := validateLines([]Line{w.Line}); err != nil {
		return nil, err
	}
	return s.recorder.RecordEvent(ctx, ledger.EventInput{
		OrgID:      w.OrgID,
		BranchID:   w.BranchID,
		ItemID:     w.Line.ItemID,
		EventType:  entity.EventWaste,
		QtyDelta:   w.Line.Qty.Neg(),
		SourceType: entity.SourceWasteLog,
		SourceID:   w.WasteLogID,
		OccurredAt: w.LoggedAt,
		Payload: entity.WastePayload{
			Reason: strings.TrimSpace(w.Reason),
			Note:   w.Note,
		},
	})
}
