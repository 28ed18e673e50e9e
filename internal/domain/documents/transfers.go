package documents

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// TransferDispatch ships goods from one branch to another.
type TransferDispatch struct {
	OrgID        id.ID     `json:"orgId"`
	TransferID   string    `json:"transferId"`
	FromBranchID id.ID     `json:"fromBranchId"`
	ToBranchID   id.ID     `json:"toBranchId"`
	DispatchedAt time.Time `json:"dispatchedAt"`
	Lines        []Line    `json:"lines"`
}

// TransferReceipt acknowledges arrival of a dispatched transfer.
type TransferReceipt struct {
	OrgID      id.ID     `json:"orgId"`
	TransferID string    `json:"transferId"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// DispatchTransfer records TRANSFER_OUT at the source branch and opens the
// in-transit document, atomically.
func (s *Service) DispatchTransfer(ctx context.Context, t TransferDispatch) ([]*ledger.RecordResult, error) {
	if id.IsNil(t.OrgID) || t.TransferID == "" || t.DispatchedAt.IsZero() {
		return nil, apperror.NewValidation("org, transfer id and dispatchedAt are required")
	}
	if id.IsNil(t.FromBranchID) || id.IsNil(t.ToBranchID) {
		return nil, apperror.NewValidation("source and destination branches are required")
	}
	if t.FromBranchID == t.ToBranchID {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "transfer source and destination must differ")
	}
	if err := validateLines(t.Lines); err != nil {
		return nil, err
	}

	lines := mergeLines(t.Lines)
	var results []*ledger.RecordResult
	err := s.atomically(ctx, func(ctx context.Context) error {
		results = make([]*ledger.RecordResult, 0, len(lines))
		for _, l := range lines {
			res, err := s.recorder.Record(ctx, ledger.EventInput{
				OrgID:      t.OrgID,
				BranchID:   t.FromBranchID,
				ItemID:     l.ItemID,
				EventType:  entity.EventTransferOut,
				QtyDelta:   l.Qty.Neg(),
				SourceType: entity.SourceTransferDispatch,
				SourceID:   t.TransferID,
				OccurredAt: t.DispatchedAt,
				Payload: entity.TransferPayload{
					TransferID:          t.TransferID,
					CounterpartBranchID: t.ToBranchID,
				},
			})
			if err != nil {
				return err
			}
			results = append(results, res)
		}

		to := t.ToBranchID
		_, err := s.open(ctx, &entity.PendingDocument{
			OrgID:               t.OrgID,
			BranchID:            t.FromBranchID,
			CounterpartBranchID: &to,
			Kind:                entity.DocumentTransfer,
			SourceType:          entity.SourceTransferDispatch,
			SourceID:            t.TransferID,
			BusinessDate:        t.DispatchedAt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ReceiveTransfer records TRANSFER_IN at the destination. Each received item
// re-enters stock as layers carrying the exact unit costs drawn at dispatch,
// so the transfer moves value between branches unchanged.
func (s *Service) ReceiveTransfer(ctx context.Context, t TransferReceipt) ([]*ledger.RecordResult, error) {
	if id.IsNil(t.OrgID) || t.TransferID == "" || t.ReceivedAt.IsZero() {
		return nil, apperror.NewValidation("org, transfer id and receivedAt are required")
	}

	var results []*ledger.RecordResult
	err := s.atomically(ctx, func(ctx context.Context) error {
		doc, err := s.repo.FindBySource(ctx, t.OrgID, entity.DocumentTransfer, entity.SourceTransferDispatch, t.TransferID)
		if err != nil {
			return err
		}
		if doc.CounterpartBranchID == nil {
			return apperror.NewInternal(fmt.Errorf("transfer %s has no destination branch", t.TransferID))
		}

		inputs, err := s.receiptInputs(ctx, doc, t.ReceivedAt)
		if err != nil {
			return err
		}

		results = make([]*ledger.RecordResult, 0, len(inputs))
		for _, in := range inputs {
			res, err := s.recorder.Record(ctx, in)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return s.resolveIfOpen(ctx, t.OrgID, entity.DocumentTransfer, entity.SourceTransferDispatch, t.TransferID)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) receiptInputs(ctx context.Context, doc *entity.PendingDocument, receivedAt time.Time) ([]ledger.EventInput, error) {
	sourceType := entity.SourceTransferDispatch
	sourceID := doc.SourceID
	dispatched, err := s.recorder.Entries(ctx, ledger.EntryFilter{
		OrgID:      doc.OrgID,
		BranchID:   &doc.BranchID,
		SourceType: &sourceType,
		SourceID:   &sourceID,
	})
	if err != nil {
		return nil, err
	}
	if len(dispatched) == 0 {
		return nil, apperror.NewNotFound("transfer dispatch", doc.SourceID)
	}

	entryIDs := make([]id.ID, len(dispatched))
	for i := range dispatched {
		entryIDs[i] = dispatched[i].ID
	}
	draws, err := s.recorder.Consumptions(ctx, entryIDs...)
	if err != nil {
		return nil, err
	}
	byEntry := make(map[id.ID][]ledger.InboundLayer, len(dispatched))
	for _, c := range draws {
		byEntry[c.LedgerEntryID] = append(byEntry[c.LedgerEntryID], ledger.InboundLayer{
			Qty:      c.QtyConsumed,
			UnitCost: c.UnitCost,
		})
	}

	inputs := make([]ledger.EventInput, 0, len(dispatched))
	for _, e := range dispatched {
		inputs = append(inputs, ledger.EventInput{
			OrgID:      doc.OrgID,
			BranchID:   *doc.CounterpartBranchID,
			ItemID:     e.ItemID,
			EventType:  entity.EventTransferIn,
			QtyDelta:   e.Qty.Abs(),
			Layers:     byEntry[e.ID],
			SourceType: entity.SourceTransferReceipt,
			SourceID:   doc.SourceID,
			OccurredAt: receivedAt,
			Payload: entity.TransferPayload{
				TransferID:          doc.SourceID,
				CounterpartBranchID: doc.BranchID,
			},
		})
	}
	return inputs, nil
}
