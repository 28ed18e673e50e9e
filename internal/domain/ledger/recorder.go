package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/costlayer"
	"stockledger/internal/domain/posting"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/ledger")

// Config tunes the recorder.
type Config struct {
	// MaxAttempts bounds whole-event retries on serialization failures,
	// deadlocks and lost idempotency races.
	MaxAttempts int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
	// VerifyConservation re-checks sum(ledger qty) == sum(remaining) for the
	// touched item after each event.
	VerifyConservation bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, RetryBackoff: 20 * time.Millisecond}
}

// Recorder is the single entry point for quantity-affecting events.
type Recorder struct {
	txm     tx.Manager
	repo    Repository
	layers  *costlayer.Store
	poster  *posting.Poster
	items   ItemCatalog
	periods PeriodGate
	cfg     Config
}

// NewRecorder creates a new ledger recorder.
func NewRecorder(
	txm tx.Manager,
	repo Repository,
	layers *costlayer.Store,
	poster *posting.Poster,
	items ItemCatalog,
	periods PeriodGate,
	cfg Config,
) *Recorder {
	return &Recorder{
		txm:     txm,
		repo:    repo,
		layers:  layers,
		poster:  poster,
		items:   items,
		periods: periods,
		cfg:     cfg,
	}
}

// InboundLayer is one priced slice of an inbound quantity.
type InboundLayer struct {
	Qty      types.Quantity `json:"qty"`
	UnitCost types.Money    `json:"unitCost"`
}

// EventInput is a business event to record.
type EventInput struct {
	OrgID     id.ID
	BranchID  id.ID
	ItemID    id.ID
	EventType entity.EventType

	// QtyDelta is signed: positive adds stock, negative removes it.
	QtyDelta types.Quantity

	// UnitCost prices an inbound event as a single layer.
	UnitCost types.Money
	// Layers, when set, replaces UnitCost and must sum to QtyDelta.
	// Transfer receipts use it to carry the dispatched layers' costs.
	Layers []InboundLayer

	SourceType entity.SourceType
	SourceID   string
	OccurredAt time.Time

	Payload entity.EventPayload
}

// Key returns the idempotency key of the event.
func (in *EventInput) Key() IdempotencyKey {
	return IdempotencyKey{
		OrgID:      in.OrgID,
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		ItemID:     in.ItemID,
	}
}

func (in *EventInput) stockKey() costlayer.StockKey {
	return costlayer.StockKey{OrgID: in.OrgID, BranchID: in.BranchID, ItemID: in.ItemID}
}

// RecordResult is the outcome of one event.
type RecordResult struct {
	Entry        *entity.LedgerEntry       `json:"entry"`
	Layers       []entity.CostLayer        `json:"layers,omitempty"`
	Consumptions []entity.BatchConsumption `json:"consumptions,omitempty"`
	Posting      posting.Outcome           `json:"posting"`
	// Replayed is true when the event had already been recorded and the
	// original entry was returned unchanged.
	Replayed bool `json:"replayed"`
}

// Validate checks the event without touching storage.
func (in *EventInput) Validate() error {
	if !in.EventType.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown event type %q", in.EventType))
	}
	if id.IsNil(in.OrgID) || id.IsNil(in.BranchID) || id.IsNil(in.ItemID) {
		return apperror.NewValidation("org, branch and item are required")
	}
	if strings.TrimSpace(string(in.SourceType)) == "" || strings.TrimSpace(in.SourceID) == "" {
		return apperror.NewValidation("source type and source id are required")
	}
	if in.OccurredAt.IsZero() {
		return apperror.NewValidation("occurredAt is required")
	}

	if in.QtyDelta.IsZero() {
		return apperror.NewInvalidQuantity("quantity must not be zero")
	}
	switch in.EventType.Direction() {
	case entity.DirectionInbound:
		if !in.QtyDelta.IsPositive() {
			return apperror.NewInvalidQuantity(fmt.Sprintf("%s quantity must be positive", in.EventType)).
				WithDetail("qty", in.QtyDelta.String())
		}
	case entity.DirectionOutbound:
		if !in.QtyDelta.IsNegative() {
			return apperror.NewInvalidQuantity(fmt.Sprintf("%s quantity must be negative", in.EventType)).
				WithDetail("qty", in.QtyDelta.String())
		}
	}

	if in.QtyDelta.IsPositive() {
		if len(in.Layers) > 0 {
			var total types.Quantity
			for _, l := range in.Layers {
				if !l.Qty.IsPositive() {
					return apperror.NewInvalidQuantity("inbound layer quantity must be positive")
				}
				if l.UnitCost.IsNegative() {
					return apperror.NewValidation("unit cost cannot be negative")
				}
				total += l.Qty
			}
			if total != in.QtyDelta {
				return apperror.NewInvalidQuantity("inbound layers must sum to the event quantity").
					WithDetail("qty", in.QtyDelta.String()).
					WithDetail("layers_total", total.String())
			}
		} else if in.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost cannot be negative")
		}
	} else if len(in.Layers) > 0 {
		return apperror.NewValidation("outbound events cannot carry inbound layers")
	}

	if in.Payload != nil {
		if !in.Payload.Accepts(in.EventType) {
			return apperror.NewValidation(fmt.Sprintf("%s payload does not match event type %s", in.Payload.Kind(), in.EventType))
		}
		if err := in.Payload.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RecordEvent records one event: cost layer mutation, GL posting and the
// ledger entry commit or roll back together. Replaying an already recorded
// (sourceType, sourceId, itemId) returns the original entry.
func (r *Recorder) RecordEvent(ctx context.Context, in EventInput) (*RecordResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ledger.RecordEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("event_type", string(in.EventType)),
		attribute.String("source", string(in.SourceType)+"/"+in.SourceID),
	)

	var res *RecordResult
	err := tx.RunWithRetry(ctx, r.txm, r.retryPolicy(), func(ctx context.Context) error {
		var err error
		res, err = r.Record(ctx, in)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

// RecordBatch records events atomically: either all are recorded (or
// replayed) or none is.
func (r *Recorder) RecordBatch(ctx context.Context, inputs []EventInput) ([]*RecordResult, error) {
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("index", i)
			}
			return nil, err
		}
	}

	ctx, span := tracer.Start(ctx, "ledger.RecordBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("events", len(inputs)))

	var results []*RecordResult
	err := tx.RunWithRetry(ctx, r.txm, r.retryPolicy(), func(ctx context.Context) error {
		results = make([]*RecordResult, 0, len(inputs))
		for i := range inputs {
			res, err := r.Record(ctx, inputs[i])
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}

// Record does the work of RecordEvent inside the caller's transaction.
// Callers composing several engine operations atomically use it together
// with tx.RunWithRetry and RetryPolicy.
func (r *Recorder) Record(ctx context.Context, in EventInput) (*RecordResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if existing, err := r.repo.FindBySource(ctx, in.Key()); err == nil {
		return r.replay(ctx, existing, in)
	} else if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	item, err := r.items.GetItem(ctx, in.OrgID, in.ItemID)
	if err != nil {
		return nil, err
	}

	period, err := r.periods.AcquireOpen(ctx, in.OrgID, in.BranchID, in.OccurredAt)
	if err != nil {
		return nil, err
	}

	payload, err := entity.EncodePayload(in.Payload)
	if err != nil {
		return nil, err
	}

	entry := &entity.LedgerEntry{
		ID:         id.New(),
		OrgID:      in.OrgID,
		BranchID:   in.BranchID,
		ItemID:     in.ItemID,
		PeriodID:   period.ID,
		EventType:  in.EventType,
		Qty:        in.QtyDelta,
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		OccurredAt: in.OccurredAt.UTC(),
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	res := &RecordResult{Entry: entry}
	if in.QtyDelta.IsPositive() {
		layers, cost, err := r.addLayers(ctx, entry, in)
		if err != nil {
			return nil, err
		}
		res.Layers = layers
		entry.CostTotal = cost
	} else {
		consumptions, err := r.layers.DepleteFIFO(ctx, costlayer.DepleteRequest{
			Key:           in.stockKey(),
			Qty:           in.QtyDelta.Abs(),
			AsOf:          entry.OccurredAt,
			LedgerEntryID: entry.ID,
		})
		if err != nil {
			return nil, err
		}
		res.Consumptions = consumptions
		entry.CostTotal = entity.TotalCost(consumptions).Neg()
	}

	outcome, err := r.poster.Post(ctx, entry, item.Category)
	if err != nil {
		return nil, err
	}
	res.Posting = outcome
	entry.GLSkipped = outcome.GLSkipped()
	entry.JournalEntryID = outcome.JournalID()

	if err := r.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	if len(res.Consumptions) > 0 {
		if err := r.repo.InsertConsumptions(ctx, res.Consumptions); err != nil {
			return nil, fmt.Errorf("insert consumptions: %w", err)
		}
	}

	if r.cfg.VerifyConservation {
		if err := r.verifyConservation(ctx, in.stockKey()); err != nil {
			return nil, err
		}
	}

	logger.Info(ctx, "ledger entry recorded",
		"entry_id", entry.ID,
		"event_type", entry.EventType,
		"item_id", entry.ItemID,
		"branch_id", entry.BranchID,
		"qty", entry.Qty,
		"cost_total", entry.CostTotal,
		"posting", outcome.Status,
	)
	return res, nil
}

// RetryPolicy is the policy RecordEvent uses, exposed for callers that wrap
// Record in their own transaction.
func (r *Recorder) RetryPolicy() tx.RetryPolicy {
	return r.retryPolicy()
}

func (r *Recorder) retryPolicy() tx.RetryPolicy {
	return tx.RetryPolicy{
		MaxAttempts: max(r.cfg.MaxAttempts, 2),
		Backoff:     r.cfg.RetryBackoff,
		Retryable: func(err error) bool {
			// A lost idempotency race: the next attempt finds the winner's
			// entry and replays it.
			return tx.IsSerializationFailure(err) || apperror.IsDuplicateEvent(err)
		},
	}
}

func (r *Recorder) addLayers(ctx context.Context, entry *entity.LedgerEntry, in EventInput) ([]entity.CostLayer, types.Money, error) {
	parts := in.Layers
	if len(parts) == 0 {
		parts = []InboundLayer{{Qty: in.QtyDelta, UnitCost: in.UnitCost}}
	}

	created := make([]entity.CostLayer, 0, len(parts))
	total := types.Zero()
	for _, s := range parts {
		layer, err := r.layers.AddLayer(ctx, costlayer.NewLayer{
			Key:           in.stockKey(),
			Qty:           s.Qty,
			UnitCost:      s.UnitCost,
			ReceivedAt:    entry.OccurredAt,
			SourceType:    in.SourceType,
			SourceID:      in.SourceID,
			LedgerEntryID: entry.ID,
		})
		if err != nil {
			return nil, types.Zero(), err
		}
		created = append(created, *layer)
		total = total.Add(s.Qty.Cost(s.UnitCost))
	}
	return created, total, nil
}

func (r *Recorder) replay(ctx context.Context, existing *entity.LedgerEntry, in EventInput) (*RecordResult, error) {
	if existing.EventType != in.EventType || existing.Qty != in.QtyDelta || existing.BranchID != in.BranchID {
		logger.Warn(ctx, "replayed event differs from the recorded one, returning original",
			"entry_id", existing.ID,
			"source_type", in.SourceType,
			"source_id", in.SourceID,
			"recorded_qty", existing.Qty,
			"replayed_qty", in.QtyDelta,
		)
	}

	consumptions, err := r.repo.ListConsumptions(ctx, []id.ID{existing.ID})
	if err != nil {
		return nil, fmt.Errorf("load consumptions: %w", err)
	}

	status := posting.StatusNotApplicable
	switch {
	case existing.JournalEntryID != nil:
		status = posting.StatusPosted
	case existing.GLSkipped:
		status = posting.StatusNotConfigured
	}

	logger.Debug(ctx, "event replayed", "entry_id", existing.ID)
	return &RecordResult{
		Entry:        existing,
		Consumptions: consumptions,
		Posting:      posting.Outcome{Status: status},
		Replayed:     true,
	}, nil
}

func (r *Recorder) verifyConservation(ctx context.Context, key costlayer.StockKey) error {
	ledgerQty, err := r.repo.SumQty(ctx, key)
	if err != nil {
		return fmt.Errorf("sum ledger qty: %w", err)
	}
	onHand, err := r.layers.OnHand(ctx, key)
	if err != nil {
		return fmt.Errorf("sum remaining qty: %w", err)
	}
	if ledgerQty != onHand {
		logger.Error(ctx, "conservation invariant violated",
			"org_id", key.OrgID,
			"branch_id", key.BranchID,
			"item_id", key.ItemID,
			"ledger_qty", ledgerQty,
			"remaining_qty", onHand,
		)
		return apperror.NewInvariantViolation("ledger quantity does not match cost layer remainder").
			WithDetail("item_id", key.ItemID.String()).
			WithDetail("branch_id", key.BranchID.String()).
			WithDetail("ledger_qty", ledgerQty.String()).
			WithDetail("remaining_qty", onHand.String())
	}
	return nil
}

// GetBySource returns the entry recorded for key.
func (r *Recorder) GetBySource(ctx context.Context, key IdempotencyKey) (*entity.LedgerEntry, error) {
	return r.repo.FindBySource(ctx, key)
}

// Entries lists ledger entries.
func (r *Recorder) Entries(ctx context.Context, filter EntryFilter) ([]entity.LedgerEntry, error) {
	return r.repo.List(ctx, filter)
}

// Consumptions returns the layer draws of the given entries.
func (r *Recorder) Consumptions(ctx context.Context, entryIDs ...id.ID) ([]entity.BatchConsumption, error) {
	return r.repo.ListConsumptions(ctx, entryIDs)
}

// Conservation reports ledger and layer quantities for key.
func (r *Recorder) Conservation(ctx context.Context, key costlayer.StockKey) (ledgerQty, remaining types.Quantity, err error) {
	if ledgerQty, err = r.repo.SumQty(ctx, key); err != nil {
		return 0, 0, err
	}
	if remaining, err = r.layers.OnHand(ctx, key); err != nil {
		return 0, 0, err
	}
	return ledgerQty, remaining, nil
}
