package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/documents"
)

var (
	_ documents.Repository = (*DocumentRepo)(nil)
	_ events.Publisher     = (*Outbox)(nil)
	_ tx.Locker            = (*Locker)(nil)
)

// DocumentRepo implements documents.Repository.
type DocumentRepo struct{ s *Store }

func (r *DocumentRepo) Open(ctx context.Context, doc *entity.PendingDocument) (*entity.PendingDocument, error) {
	var stored entity.PendingDocument
	err := r.s.write(ctx, func(st *state) error {
		for _, d := range st.documents {
			if d.OrgID == doc.OrgID && d.Kind == doc.Kind && d.SourceType == doc.SourceType && d.SourceID == doc.SourceID {
				stored = d
				return nil
			}
		}
		st.documents = append(st.documents, *doc)
		stored = *doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *DocumentRepo) FindBySource(ctx context.Context, orgID id.ID, kind entity.DocumentKind, sourceType entity.SourceType, sourceID string) (*entity.PendingDocument, error) {
	var found *entity.PendingDocument
	r.s.read(ctx, func(st *state) {
		for _, d := range st.documents {
			if d.OrgID == orgID && d.Kind == kind && d.SourceType == sourceType && d.SourceID == sourceID {
				found = &d
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound(string(kind)+" document", sourceID)
	}
	return found, nil
}

func (r *DocumentRepo) Resolve(ctx context.Context, docID id.ID, at time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		for i := range st.documents {
			d := &st.documents[i]
			if d.ID != docID {
				continue
			}
			if d.Status == entity.DocumentOpen {
				d.Status = entity.DocumentResolved
				d.ResolvedAt = &at
			}
			return nil
		}
		return apperror.NewNotFound("pending document", docID.String())
	})
}

func (r *DocumentRepo) List(ctx context.Context, filter documents.Filter) ([]entity.PendingDocument, error) {
	var out []entity.PendingDocument
	r.s.read(ctx, func(st *state) {
		for _, d := range st.documents {
			switch {
			case d.OrgID != filter.OrgID,
				filter.Kind != nil && d.Kind != *filter.Kind,
				filter.Status != nil && d.Status != *filter.Status,
				filter.BranchID != nil && !documentTouches(d, *filter.BranchID, filter.IncludeCounterpart),
				filter.From != nil && d.BusinessDate.Before(*filter.From),
				filter.To != nil && !d.BusinessDate.Before(*filter.To):
				continue
			}
			out = append(out, d)
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BusinessDate.Equal(out[j].BusinessDate) {
			return out[i].BusinessDate.Before(out[j].BusinessDate)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func documentTouches(d entity.PendingDocument, branchID id.ID, counterpart bool) bool {
	if d.BranchID == branchID {
		return true
	}
	return counterpart && d.CounterpartBranchID != nil && *d.CounterpartBranchID == branchID
}

// Outbox collects published events with the transaction that wrote them.
type Outbox struct{ s *Store }

// Publish must be called inside a transaction.
func (o *Outbox) Publish(ctx context.Context, event events.DomainEvent) error {
	if !o.s.InTransaction(ctx) {
		return apperror.NewInternal(errors.New("outbox publish requires transaction context"))
	}
	o.s.st.outbox = append(o.s.st.outbox, event)
	return nil
}

// Events returns the committed events in publish order.
func (o *Outbox) Events() []events.DomainEvent {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	out := make([]events.DomainEvent, len(o.s.st.outbox))
	copy(out, o.s.st.outbox)
	return out
}

// Locker is an in-process tx.Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

func (l *Locker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
