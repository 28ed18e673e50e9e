package dto

import (
	"encoding/json"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// RecordEventRequest records one business event.
type RecordEventRequest struct {
	OrgID     id.ID            `json:"orgId" binding:"required"`
	BranchID  id.ID            `json:"branchId" binding:"required"`
	ItemID    id.ID            `json:"itemId" binding:"required"`
	EventType entity.EventType `json:"eventType" binding:"required"`
	QtyDelta  types.Quantity   `json:"qtyDelta"`
	UnitCost  *types.Money     `json:"unitCost"`

	Layers []ledger.InboundLayer `json:"layers,omitempty"`

	SourceType entity.SourceType `json:"sourceType" binding:"required"`
	SourceID   string            `json:"sourceId" binding:"required"`
	OccurredAt time.Time         `json:"occurredAt" binding:"required"`

	// Payload is the tagged envelope {"kind": ..., "data": {...}}.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ToInput converts the request to a ledger event.
func (r *RecordEventRequest) ToInput() (ledger.EventInput, error) {
	payload, err := entity.DecodePayload(r.Payload)
	if err != nil {
		return ledger.EventInput{}, apperror.NewValidation("invalid event payload").WithCause(err)
	}

	in := ledger.EventInput{
		OrgID:      r.OrgID,
		BranchID:   r.BranchID,
		ItemID:     r.ItemID,
		EventType:  r.EventType,
		QtyDelta:   r.QtyDelta,
		Layers:     r.Layers,
		SourceType: r.SourceType,
		SourceID:   r.SourceID,
		OccurredAt: r.OccurredAt,
		Payload:    payload,
	}
	if r.UnitCost != nil {
		in.UnitCost = *r.UnitCost
	}
	return in, nil
}

// RecordResponse lists the outcome of every event of a request.
type RecordResponse struct {
	Results  []*ledger.RecordResult `json:"results"`
	Replayed bool                   `json:"replayed"`
}

// NewRecordResponse summarizes results. Replayed is set only when every
// event had already been recorded.
func NewRecordResponse(results ...*ledger.RecordResult) RecordResponse {
	replayed := len(results) > 0
	for _, r := range results {
		replayed = replayed && r.Replayed
	}
	if results == nil {
		results = []*ledger.RecordResult{}
	}
	return RecordResponse{Results: results, Replayed: replayed}
}
