package period

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/valuation"
	"stockledger/pkg/logger"
)

// systemActor is recorded when a period opens without an authenticated caller.
const systemActor = "system"

// PendingDocuments lists tracked upstream documents.
type PendingDocuments interface {
	List(ctx context.Context, filter documents.Filter) ([]entity.PendingDocument, error)
}

// Service manages inventory periods.
type Service struct {
	txm       tx.Manager
	repo      Repository
	docs      PendingDocuments
	valuation *valuation.Service
	locker    tx.Locker
	codec     PayloadCodec
	publisher events.Publisher
}

// NewService creates a new period service.
func NewService(
	txm tx.Manager,
	repo Repository,
	docs PendingDocuments,
	valuation *valuation.Service,
	locker tx.Locker,
	codec PayloadCodec,
	publisher events.Publisher,
) *Service {
	return &Service{
		txm:       txm,
		repo:      repo,
		docs:      docs,
		valuation: valuation,
		locker:    locker,
		codec:     codec,
		publisher: publisher,
	}
}

// AcquireOpen returns the OPEN period containing at, creating it on first
// use. The branch's periods from that month onward stay share-locked until
// the caller's transaction ends, so no close can interleave with the write.
// A closed period at or after at fails with PERIOD_ALREADY_CLOSED.
func (s *Service) AcquireOpen(ctx context.Context, orgID, branchID id.ID, at time.Time) (*entity.InventoryPeriod, error) {
	year, month := entity.PeriodOf(at)

	p, err := s.ensure(ctx, orgID, branchID, year, month)
	if err != nil {
		return nil, err
	}

	locked, err := s.repo.LockFrom(ctx, orgID, branchID, year, month)
	if err != nil {
		return nil, fmt.Errorf("lock periods: %w", err)
	}
	for i := range locked {
		if locked[i].IsClosed() {
			return nil, apperror.NewPeriodAlreadyClosed(locked[i].ID.String(), locked[i].Label()).
				WithDetail("occurred_at", at.UTC())
		}
		if locked[i].ID == p.ID {
			p = &locked[i]
		}
	}
	return p, nil
}

// EnsurePeriod opens the branch's period for the given month explicitly.
func (s *Service) EnsurePeriod(ctx context.Context, orgID, branchID id.ID, year, month int) (*entity.InventoryPeriod, error) {
	if month < 1 || month > 12 {
		return nil, apperror.NewValidation("month must be between 1 and 12").WithDetail("month", month)
	}
	if year < 1970 || year > 9999 {
		return nil, apperror.NewValidation("year out of range").WithDetail("year", year)
	}
	if id.IsNil(orgID) || id.IsNil(branchID) {
		return nil, apperror.NewValidation("org and branch are required")
	}

	var p *entity.InventoryPeriod
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.ensure(ctx, orgID, branchID, year, month)
		return err
	})
	return p, err
}

func (s *Service) ensure(ctx context.Context, orgID, branchID id.ID, year, month int) (*entity.InventoryPeriod, error) {
	p, err := s.repo.FindByMonth(ctx, orgID, branchID, year, month)
	if err == nil {
		return p, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	candidate := entity.NewPeriod(orgID, branchID, time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
	stored, created, err := s.repo.CreateIfAbsent(ctx, &candidate)
	if err != nil {
		return nil, fmt.Errorf("create period: %w", err)
	}
	if created {
		if err := s.repo.InsertEvent(ctx, &entity.PeriodEvent{
			ID:        id.New(),
			PeriodID:  stored.ID,
			EventType: entity.PeriodEventOpen,
			ActorID:   actorOf(ctx),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("insert open event: %w", err)
		}
		logger.Info(ctx, "inventory period opened",
			"period_id", stored.ID,
			"branch_id", branchID,
			"period", stored.Label(),
		)
	}
	return stored, nil
}

// Get returns a period by id.
func (s *Service) Get(ctx context.Context, periodID id.ID) (*entity.InventoryPeriod, error) {
	return s.repo.Get(ctx, periodID)
}

// List returns periods matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]entity.InventoryPeriod, error) {
	return s.repo.List(ctx, filter)
}

// History returns the period's audit events, oldest first.
func (s *Service) History(ctx context.Context, periodID id.ID) ([]entity.PeriodEvent, error) {
	if _, err := s.repo.Get(ctx, periodID); err != nil {
		return nil, err
	}
	evs, err := s.repo.ListEvents(ctx, periodID)
	if err != nil {
		return nil, err
	}
	for i := range evs {
		if len(evs[i].Payload) == 0 {
			continue
		}
		raw, err := s.codec.Decode(evs[i].Payload, evs[i].Compressed)
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", evs[i].ID, err)
		}
		if err := json.Unmarshal(raw, &evs[i].Blockers); err != nil {
			return nil, fmt.Errorf("unmarshal blockers of event %s: %w", evs[i].ID, err)
		}
	}
	return evs, nil
}

func actorOf(ctx context.Context) string {
	if scope := security.GetScope(ctx); scope.UserID != "" {
		return scope.UserID
	}
	return systemActor
}
