package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	corenumerator "stockledger/internal/core/numerator"
	"stockledger/internal/domain/posting"
)

var (
	_ posting.Repository      = (*AccountingRepo)(nil)
	_ corenumerator.Generator = (*NumberGenerator)(nil)
)

// AccountingRepo implements posting.Repository.
type AccountingRepo struct{ s *Store }

// SeedMapping adds a posting mapping.
func (r *AccountingRepo) SeedMapping(m entity.PostingMapping) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	r.s.st.mappings = append(r.s.st.mappings, m)
}

func (r *AccountingRepo) FindMappings(ctx context.Context, orgID, branchID id.ID, category string) ([]entity.PostingMapping, error) {
	var out []entity.PostingMapping
	r.s.read(ctx, func(st *state) {
		for _, m := range st.mappings {
			if m.OrgID != orgID {
				continue
			}
			if m.BranchID != nil && *m.BranchID != branchID {
				continue
			}
			if m.Category != nil && *m.Category != category {
				continue
			}
			out = append(out, m)
		}
	})
	return out, nil
}

func (r *AccountingRepo) InsertJournal(ctx context.Context, j *entity.JournalEntry) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.journals {
			if existing.OrgID == j.OrgID && existing.Number == j.Number {
				return apperror.NewConflict(fmt.Sprintf("journal number %s already used", j.Number))
			}
		}
		stored := *j
		stored.Lines = slices.Clone(j.Lines)
		st.journals = append(st.journals, stored)
		return nil
	})
}

func (r *AccountingRepo) GetJournal(ctx context.Context, journalID id.ID) (*entity.JournalEntry, error) {
	var found *entity.JournalEntry
	r.s.read(ctx, func(st *state) {
		for i := range st.journals {
			if st.journals[i].ID == journalID {
				j := st.journals[i]
				j.Lines = slices.Clone(j.Lines)
				found = &j
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("journal entry", journalID.String())
	}
	return found, nil
}

func (r *AccountingRepo) ListJournals(ctx context.Context, filter posting.JournalFilter) ([]entity.JournalEntry, error) {
	var out []entity.JournalEntry
	r.s.read(ctx, func(st *state) {
		for _, j := range st.journals {
			switch {
			case j.OrgID != filter.OrgID,
				filter.BranchID != nil && j.BranchID != *filter.BranchID,
				filter.SourceType != nil && j.SourceType != *filter.SourceType,
				filter.SourceID != nil && j.SourceID != *filter.SourceID,
				filter.From != nil && j.PostedAt.Before(*filter.From),
				filter.To != nil && !j.PostedAt.Before(*filter.To):
				continue
			}
			j.Lines = slices.Clone(j.Lines)
			out = append(out, j)
		}
	})
	sort.SliceStable(out, func(i, k int) bool {
		if !out[i].PostedAt.Equal(out[k].PostedAt) {
			return out[i].PostedAt.Before(out[k].PostedAt)
		}
		return out[i].Number < out[k].Number
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// NumberGenerator draws gapless numbers from the store's sequences.
type NumberGenerator struct{ s *Store }

func (g *NumberGenerator) GetNextNumber(ctx context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := corenumerator.SequenceKey(cfg, period)
	var next int64
	err := g.s.write(ctx, func(st *state) error {
		st.sequences[key]++
		next = st.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return corenumerator.Format(cfg, period, next), nil
}
