// Package document_repo provides the PostgreSQL pending document repository.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents"
	"stockledger/internal/infrastructure/storage/postgres"
)

const tableName = "inv_pending_documents"

var selectCols = postgres.ExtractDBColumns[entity.PendingDocument]()

// Repo implements documents.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewRepo creates a new pending document repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Open inserts doc unless (org, kind, source) is already tracked, and returns
// the stored row either way.
func (r *Repo) Open(ctx context.Context, doc *entity.PendingDocument) (*entity.PendingDocument, error) {
	cols, vals := postgres.SelectColumns(postgres.StructToMap(doc), selectCols)

	sql, args, err := r.builder.Insert(tableName).
		Columns(cols...).
		Values(vals...).
		Suffix("ON CONFLICT (org_id, kind, source_type, source_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	var insertedID id.ID
	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&insertedID)
	switch {
	case err == nil:
		stored := *doc
		return &stored, nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.FindBySource(ctx, doc.OrgID, doc.Kind, doc.SourceType, doc.SourceID)
	default:
		return nil, fmt.Errorf("insert %s: %w", tableName, err)
	}
}

// FindBySource returns the document or NotFound.
func (r *Repo) FindBySource(ctx context.Context, orgID id.ID, kind entity.DocumentKind, sourceType entity.SourceType, sourceID string) (*entity.PendingDocument, error) {
	sql, args, err := r.builder.Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{
			"org_id":      orgID,
			"kind":        kind,
			"source_type": sourceType,
			"source_id":   sourceID,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc entity.PendingDocument
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(string(kind)+" document", sourceID)
		}
		return nil, fmt.Errorf("get %s: %w", tableName, err)
	}
	return &doc, nil
}

// Resolve marks an OPEN document RESOLVED. Resolving twice is a no-op.
func (r *Repo) Resolve(ctx context.Context, docID id.ID, at time.Time) error {
	sql, args, err := r.builder.Update(tableName).
		Set("status", entity.DocumentResolved).
		Set("resolved_at", at).
		Where(squirrel.Eq{"id": docID, "status": entity.DocumentOpen}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", tableName, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.txManager.GetQuerier(ctx).
		QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+tableName+" WHERE id = $1)", docID).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s: %w", tableName, err)
	}
	if !exists {
		return apperror.NewNotFound("pending document", docID.String())
	}
	return nil
}

// List returns documents matching filter ordered by business date, source id.
func (r *Repo) List(ctx context.Context, filter documents.Filter) ([]entity.PendingDocument, error) {
	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []entity.PendingDocument
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", tableName, err)
	}
	return out, nil
}

func (r *Repo) listQuery(filter documents.Filter) squirrel.SelectBuilder {
	q := r.builder.Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"org_id": filter.OrgID})

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.BranchID != nil {
		if filter.IncludeCounterpart {
			q = q.Where(squirrel.Or{
				squirrel.Eq{"branch_id": *filter.BranchID},
				squirrel.Eq{"counterpart_branch_id": *filter.BranchID},
			})
		} else {
			q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
		}
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"business_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"business_date": *filter.To})
	}

	return q.OrderBy("business_date", "source_id")
}

var _ documents.Repository = (*Repo)(nil)
