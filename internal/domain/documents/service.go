package documents

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Service turns upstream documents into ledger events.
type Service struct {
	txm      tx.Manager
	repo     Repository
	recorder *ledger.Recorder
	layers   *costlayer.Store
}

// NewService creates a new document intake service.
func NewService(txm tx.Manager, repo Repository, recorder *ledger.Recorder, layers *costlayer.Store) *Service {
	return &Service{
		txm:      txm,
		repo:     repo,
		recorder: recorder,
		layers:   layers,
	}
}

// Line is an item quantity on a document. Qty is always positive.
type Line struct {
	ItemID id.ID          `json:"itemId"`
	Qty    types.Quantity `json:"qty"`
}

// Pending lists tracked documents.
func (s *Service) Pending(ctx context.Context, filter Filter) ([]entity.PendingDocument, error) {
	return s.repo.List(ctx, filter)
}

// atomically runs fn in one retried transaction shared with the recorder.
func (s *Service) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.RunWithRetry(ctx, s.txm, s.recorder.RetryPolicy(), fn)
}

func (s *Service) open(ctx context.Context, doc *entity.PendingDocument) (*entity.PendingDocument, error) {
	doc.ID = id.New()
	doc.Status = entity.DocumentOpen
	doc.BusinessDate = doc.BusinessDate.UTC()
	doc.OpenedAt = time.Now().UTC()

	stored, err := s.repo.Open(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("open %s document: %w", doc.Kind, err)
	}
	if stored.ID == doc.ID {
		logger.Info(ctx, "pending document opened",
			"kind", doc.Kind,
			"source_type", doc.SourceType,
			"source_id", doc.SourceID,
			"branch_id", doc.BranchID,
		)
	}
	return stored, nil
}

// resolveIfOpen resolves the document identified by source, if tracked.
func (s *Service) resolveIfOpen(ctx context.Context, orgID id.ID, kind entity.DocumentKind, sourceType entity.SourceType, sourceID string) error {
	doc, err := s.repo.FindBySource(ctx, orgID, kind, sourceType, sourceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if doc.Status == entity.DocumentResolved {
		return nil
	}
	if err := s.repo.Resolve(ctx, doc.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("resolve %s document: %w", kind, err)
	}
	logger.Info(ctx, "pending document resolved", "kind", kind, "source_id", sourceID)
	return nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return apperror.NewValidation("document has no lines")
	}
	for i, l := range lines {
		if id.IsNil(l.ItemID) {
			return apperror.NewValidation(fmt.Sprintf("line %d: item is required", i))
		}
		if !l.Qty.IsPositive() {
			return apperror.NewInvalidQuantity(fmt.Sprintf("line %d: quantity must be positive", i)).
				WithDetail("qty", l.Qty.String())
		}
	}
	return nil
}

// mergeLines sums quantities per item, keeping first-seen order. The ledger
// keys events by (source, item), so one document yields one event per item.
func mergeLines(lines []Line) []Line {
	idx := make(map[id.ID]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ItemID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.ItemID] = len(out)
		out = append(out, l)
	}
	return out
}
