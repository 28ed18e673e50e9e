package period

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/valuation"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/period")

// CloseRequest asks to close a period.
type CloseRequest struct {
	PeriodID id.ID  `json:"periodId"`
	Override bool   `json:"override"`
	Reason   string `json:"reason,omitempty"`
}

// CloseResult is what a successful close froze.
type CloseResult struct {
	Period     *entity.InventoryPeriod    `json:"period"`
	Snapshot   []entity.ValuationSnapshot `json:"snapshot"`
	Movements  []entity.MovementSummary   `json:"movements"`
	Overridden []entity.Blocker           `json:"overridden,omitempty"`
	Event      *entity.PeriodEvent        `json:"event"`
}

// LockKey is the name under which a period's close is serialized.
func LockKey(periodID id.ID) string {
	return "inventory-period-close:" + periodID.String()
}

// Close transitions an OPEN period to CLOSED. The valuation snapshot, the
// movement summary, the status flip, the CLOSE audit event and the outbox
// notification commit together or not at all.
func (s *Service) Close(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	scope := security.GetScope(ctx)
	if err := scope.RequirePermission(security.PermissionClosePeriod); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Override {
		if err := scope.RequirePermission(security.PermissionOverrideClose); err != nil {
			return nil, err
		}
		if reason == "" {
			return nil, apperror.NewValidation("override requires an audit reason")
		}
	}

	ctx, span := tracer.Start(ctx, "period.Close")
	defer span.End()
	span.SetAttributes(
		attribute.String("period_id", req.PeriodID.String()),
		attribute.Bool("override", req.Override),
	)

	var release func()
	defer func() {
		if release != nil {
			release()
		}
	}()

	var result *CloseResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rel, ok, err := s.locker.TryLock(ctx, LockKey(req.PeriodID))
		if err != nil {
			return fmt.Errorf("acquire close lock: %w", err)
		}
		if !ok {
			return apperror.NewConcurrentModification("inventory period", req.PeriodID.String()).
				WithDetail("reason", "another close of this period is in progress")
		}
		release = rel

		result, err = s.close(ctx, req, reason, scope.UserID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Info(ctx, "inventory period closed",
		"period_id", result.Period.ID,
		"branch_id", result.Period.BranchID,
		"period", result.Period.Label(),
		"override", req.Override && len(result.Overridden) > 0,
		"items", len(result.Snapshot),
		"total_value", valuation.TotalValue(result.Snapshot),
	)
	return result, nil
}

func (s *Service) close(ctx context.Context, req CloseRequest, reason, actorID string) (*CloseResult, error) {
	p, err := s.repo.GetForUpdate(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if p.IsClosed() {
		return nil, apperror.NewPeriodAlreadyClosed(p.ID.String(), p.Label())
	}

	blockers, err := s.blockers(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 && (!req.Override || !overridable(blockers)) {
		logger.Warn(ctx, "period close blocked",
			"period_id", p.ID,
			"period", p.Label(),
			"blockers", len(blockers),
			"override", req.Override,
		)
		return nil, apperror.NewPeriodBlocked(p.ID.String(), blockers)
	}

	snapshot, err := s.valuation.ComputeSnapshot(ctx, p)
	if err != nil {
		return nil, err
	}
	movements, err := s.valuation.ComputeMovements(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("freeze snapshot: %w", err)
	}
	if err := s.repo.InsertMovementSummaries(ctx, movements); err != nil {
		return nil, fmt.Errorf("freeze movement summary: %w", err)
	}

	now := time.Now().UTC()
	if actorID == "" {
		actorID = systemActor
	}
	if err := s.repo.MarkClosed(ctx, p.ID, now, actorID); err != nil {
		return nil, fmt.Errorf("mark period closed: %w", err)
	}
	p.Status = entity.PeriodClosed
	p.ClosedAt = &now
	p.ClosedByID = &actorID

	event := &entity.PeriodEvent{
		ID:        id.New(),
		PeriodID:  p.ID,
		EventType: entity.PeriodEventClose,
		ActorID:   actorID,
		Override:  len(blockers) > 0,
		Reason:    reason,
		Blockers:  blockers,
		CreatedAt: now,
	}
	if len(blockers) > 0 {
		raw, err := json.Marshal(blockers)
		if err != nil {
			return nil, fmt.Errorf("marshal blockers: %w", err)
		}
		if event.Payload, event.Compressed, err = s.codec.Encode(raw); err != nil {
			return nil, fmt.Errorf("encode blockers: %w", err)
		}
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("insert close event: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.DomainEvent{
		AggregateType: events.AggregateInventoryPeriod,
		AggregateID:   p.ID,
		EventType:     events.PeriodClosed,
		Payload: map[string]any{
			"periodId":   p.ID,
			"orgId":      p.OrgID,
			"branchId":   p.BranchID,
			"period":     p.Label(),
			"closedAt":   now,
			"closedById": actorID,
			"override":   event.Override,
			"totalValue": valuation.TotalValue(snapshot),
		},
	}); err != nil {
		return nil, fmt.Errorf("publish period closed: %w", err)
	}

	return &CloseResult{
		Period:     p,
		Snapshot:   snapshot,
		Movements:  movements,
		Overridden: blockers,
		Event:      event,
	}, nil
}
