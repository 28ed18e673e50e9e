// Package memory is an in-process implementation of every engine repository.
// Transactions are serialized and roll back by restoring a copy of the state
// taken at begin. It backs the domain tests and single-process demos.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
)

var _ tx.Manager = (*Store)(nil)

type state struct {
	items        map[id.ID]entity.InventoryItem
	layers       []entity.CostLayer
	layerSeq     int64
	entries      []entity.LedgerEntry
	consumptions []entity.BatchConsumption
	mappings     []entity.PostingMapping
	journals     []entity.JournalEntry
	periods      []entity.InventoryPeriod
	snapshots    []entity.ValuationSnapshot
	movements    []entity.MovementSummary
	periodEvents []entity.PeriodEvent
	documents    []entity.PendingDocument
	sequences    map[string]int64
	outbox       []events.DomainEvent
}

func newState() *state {
	return &state{
		items:     make(map[id.ID]entity.InventoryItem),
		sequences: make(map[string]int64),
	}
}

func (s *state) clone() *state {
	return &state{
		items:        maps.Clone(s.items),
		layers:       slices.Clone(s.layers),
		layerSeq:     s.layerSeq,
		entries:      slices.Clone(s.entries),
		consumptions: slices.Clone(s.consumptions),
		mappings:     slices.Clone(s.mappings),
		journals:     slices.Clone(s.journals),
		periods:      slices.Clone(s.periods),
		snapshots:    slices.Clone(s.snapshots),
		movements:    slices.Clone(s.movements),
		periodEvents: slices.Clone(s.periodEvents),
		documents:    slices.Clone(s.documents),
		sequences:    maps.Clone(s.sequences),
		outbox:       slices.Clone(s.outbox),
	}
}

// Store holds all engine state and doubles as its transaction manager.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

// RunInTransaction runs fn holding the store exclusively. Any error restores
// the state as it was before fn. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = saved
		return err
	}
	return nil
}

// InTransaction reports whether ctx carries a transaction of this store.
func (s *Store) InTransaction(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// read runs fn with a consistent view of the state.
func (s *Store) read(ctx context.Context, fn func(st *state)) {
	if s.InTransaction(ctx) {
		fn(s.st)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// write runs fn against the state, as its own transaction when ctx has none.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if s.InTransaction(ctx) {
		return fn(s.st)
	}
	return s.RunInTransaction(ctx, func(context.Context) error {
		return fn(s.st)
	})
}

// Layers returns the cost layer repository.
func (s *Store) Layers() *LayerRepo { return &LayerRepo{s: s} }

// Ledger returns the ledger entry repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Accounting returns the mapping and journal repository.
func (s *Store) Accounting() *AccountingRepo { return &AccountingRepo{s: s} }

// Periods returns the period repository.
func (s *Store) Periods() *PeriodRepo { return &PeriodRepo{s: s} }

// Reports returns the valuation repository.
func (s *Store) Reports() *ReportRepo { return &ReportRepo{s: s} }

// Documents returns the pending document repository.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Catalog returns the item catalog.
func (s *Store) Catalog() *Catalog { return &Catalog{s: s} }

// Numbers returns the sequence-backed number generator.
func (s *Store) Numbers() *NumberGenerator { return &NumberGenerator{s: s} }

// Outbox returns the transactional event publisher.
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

func page[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
