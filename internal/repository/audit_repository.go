package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/stokvel-bot/internal/database"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// AuditRepository appends to and reads the audit log.
type AuditRepository struct {
	db database.PGXDB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db database.PGXDB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes an audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry models.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (action, actor, details, created_at)
		VALUES ($1, $2, $3, $4)
	`, entry.Action, entry.Actor, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, action, actor, details, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit log: %w", err)
	}
	return entries, nil
}
