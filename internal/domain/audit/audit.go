// Package audit records who drove which inventory operation through the API.
package audit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

// Action names an audited API operation.
type Action string

const (
	ActionRecordEvent     Action = "record_event"
	ActionAnnounceReceipt Action = "announce_receipt"
	ActionPostReceipt     Action = "post_receipt"
	ActionDeplete         Action = "deplete"
	ActionWaste           Action = "waste"
	ActionDispatch        Action = "dispatch_transfer"
	ActionReceive         Action = "receive_transfer"
	ActionOpenStocktake   Action = "open_stocktake"
	ActionFinalize        Action = "finalize_stocktake"
	ActionEnsurePeriod    Action = "ensure_period"
	ActionClosePeriod     Action = "close_period"
)

// Entry is one audit row. Changes holds the request as JSON.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	OrgID      id.ID           `db:"org_id" json:"orgId"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   string          `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId"`
	RequestID  string          `db:"request_id" json:"requestId,omitempty"`
	Changes    json.RawMessage `db:"-" json:"changes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Auditor persists entries.
type Auditor interface {
	Log(ctx context.Context, entry Entry) error
}

// Reader returns the newest entries of one entity within an organization.
type Reader interface {
	History(ctx context.Context, orgID id.ID, entityType, entityID string, limit int) ([]Entry, error)
}

// Trail writes and reads entries.
type Trail interface {
	Auditor
	Reader
}

// NewEntry builds an entry attributed to the caller in ctx.
func NewEntry(ctx context.Context, orgID id.ID, action Action, entityType, entityID string, changes any) (Entry, error) {
	e := Entry{
		ID:         id.New(),
		OrgID:      orgID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		RequestID:  appctx.GetRequestID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if changes != nil {
		raw, err := json.Marshal(changes)
		if err != nil {
			return Entry{}, err
		}
		e.Changes = raw
	}
	return e, nil
}

// Nop discards entries.
type Nop struct{}

func (Nop) Log(context.Context, Entry) error { return nil }

// Memory is an in-process Trail.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Trail = (*Memory)(nil)

func (m *Memory) Log(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) History(_ context.Context, orgID id.ID, entityType, entityID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.OrgID == orgID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns every logged entry in insertion order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
