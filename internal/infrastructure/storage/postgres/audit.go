package postgres

import (
	"context"
	"fmt"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/period"
)

var _ audit.Trail = (*AuditLog)(nil)

// AuditLog writes audit entries to sys_audit, compressing large request bodies.
type AuditLog struct {
	txManager *TxManager
	codec     period.PayloadCodec
}

// NewAuditLog creates an audit log sharing the period-event codec.
func NewAuditLog(txManager *TxManager, codec period.PayloadCodec) *AuditLog {
	return &AuditLog{txManager: txManager, codec: codec}
}

// Log inserts entry.
func (s *AuditLog) Log(ctx context.Context, entry audit.Entry) error {
	changes, compressed, err := s.codec.Encode(entry.Changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, org_id, entity_type, entity_id, action, user_id, request_id,
			changes, compressed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.OrgID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.RequestID, changes, compressed, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries of one entity, decompressed.
func (s *AuditLog) History(ctx context.Context, orgID id.ID, entityType, entityID string, limit int) ([]audit.Entry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, org_id, entity_type, entity_id, action, user_id, request_id,
		       changes, compressed, created_at
		FROM sys_audit
		WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC
		LIMIT $4
	`, orgID, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			changes    []byte
			compressed bool
		)
		if err := rows.Scan(
			&e.ID, &e.OrgID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.RequestID,
			&changes, &compressed, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Changes, err = s.codec.Decode(changes, compressed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
