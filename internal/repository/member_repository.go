package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/database"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

const memberColumns = `id, name, phone, total_savings, total_fines, verified_count, skipped_months, status, created_at, updated_at`

// MemberRepository handles member database operations.
type MemberRepository struct {
	db database.PGXDB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db database.PGXDB) *MemberRepository {
	return &MemberRepository{db: db}
}

func scanMember(row scanner) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.Name, &m.Phone, &m.TotalSavings, &m.TotalFines,
		&m.VerifiedCount, &m.SkippedMonths, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a member. A phone conflict does not abort the surrounding
// transaction; it is reported as models.ErrAlreadyExists.
func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO members (id, name, phone, total_savings, total_fines, verified_count, skipped_months, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (phone) DO NOTHING
		RETURNING updated_at
	`, m.ID, m.Name, m.Phone, m.TotalSavings, m.TotalFines, m.VerifiedCount, m.SkippedMonths, m.Status, m.CreatedAt,
	).Scan(&m.UpdatedAt)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to create member: %w: phone %s", models.ErrAlreadyExists, m.Phone)
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetByID retrieves a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", mapErr(err))
	}
	return m, nil
}

// GetByPhone retrieves a member by normalized phone number.
func (r *MemberRepository) GetByPhone(ctx context.Context, phone string) (*models.Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = $1`, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to get member by phone: %w", mapErr(err))
	}
	return m, nil
}

// List returns all members ordered by name.
func (r *MemberRepository) List(ctx context.Context) ([]models.Member, error) {
	rows, err := r.db.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY LOWER(name), phone`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// ApplyApprovalCredit increments the member's totals in place.
func (r *MemberRepository) ApplyApprovalCredit(ctx context.Context, id uuid.UUID, amount, fine decimal.Decimal) (*models.Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `
		UPDATE members
		SET total_savings = total_savings + $2,
		    total_fines = total_fines + $3,
		    verified_count = verified_count + 1,
		    skipped_months = 0,
		    status = 'active',
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+memberColumns,
		id, amount, fine))
	if err != nil {
		return nil, fmt.Errorf("failed to credit member: %w", mapErr(err))
	}
	return m, nil
}

// UpdateSkipStatus stores a reconciled skip count while the verified count is unchanged.
func (r *MemberRepository) UpdateSkipStatus(ctx context.Context, id uuid.UUID, expectedVerified, skipped int, status models.MemberStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE members
		SET skipped_months = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND verified_count = $2
	`, id, expectedVerified, skipped, status)
	if err != nil {
		return false, fmt.Errorf("failed to update member skip status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check member: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("failed to update member skip status: %w", models.ErrNotFound)
	}
	return false, nil
}
