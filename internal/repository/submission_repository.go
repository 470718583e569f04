package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/stokvel-bot/internal/database"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

const submissionColumns = `id, reference_code, member_name, member_phone, amount, payment_date, payment_month,
	payment_method, proof_ref, notes, is_late, fine_amount, status, member_id, rejection_reason, reviewed_by,
	submitter_chat_id, submitted_at, reviewed_at`

// SubmissionRepository handles submission database operations.
type SubmissionRepository struct {
	db database.PGXDB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db database.PGXDB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func scanSubmission(row scanner) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.ReferenceCode, &s.MemberName, &s.MemberPhone, &s.Amount, &s.PaymentDate,
		&s.PaymentMonth, &s.PaymentMethod, &s.ProofRef, &s.Notes, &s.IsLate, &s.FineAmount, &s.Status,
		&s.MemberID, &s.RejectionReason, &s.ReviewedBy, &s.SubmitterChatID, &s.SubmittedAt, &s.ReviewedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a submission. A reference-code conflict is reported as models.ErrAlreadyExists.
func (r *SubmissionRepository) Create(ctx context.Context, s *models.Submission) error {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO submissions (id, reference_code, member_name, member_phone, amount, payment_date, payment_month,
			payment_method, proof_ref, notes, is_late, fine_amount, status, submitter_chat_id, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (reference_code) DO NOTHING
		RETURNING id
	`, s.ID, s.ReferenceCode, s.MemberName, s.MemberPhone, s.Amount, s.PaymentDate, s.PaymentMonth,
		s.PaymentMethod, s.ProofRef, s.Notes, s.IsLate, s.FineAmount, s.Status, s.SubmitterChatID, s.SubmittedAt,
	).Scan(&id)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to create submission: %w: reference %s", models.ErrAlreadyExists, s.ReferenceCode)
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID retrieves a submission by ID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", mapErr(err))
	}
	return s, nil
}

// GetByReference retrieves a submission by reference code.
func (r *SubmissionRepository) GetByReference(ctx context.Context, code string) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE reference_code = $1`, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get submission by reference: %w", mapErr(err))
	}
	return s, nil
}

// ReferenceExists reports whether a reference code is already taken.
func (r *SubmissionRepository) ReferenceExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE reference_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reference code: %w", err)
	}
	return exists, nil
}

// List returns submissions matching f, newest first.
func (r *SubmissionRepository) List(ctx context.Context, f ledger.SubmissionFilter) ([]models.Submission, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Phone != "" {
		add("member_phone = $%d", f.Phone)
	}
	if f.PaymentMonth != "" {
		add("payment_month = $%d", f.PaymentMonth)
	}
	if f.MemberID != nil {
		add("member_id = $%d", *f.MemberID)
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, reference_code`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}

// MarkVerified moves a pending submission to verified. The status guard in the
// WHERE clause serializes concurrent reviews on the row lock.
func (r *SubmissionRepository) MarkVerified(ctx context.Context, id, memberID uuid.UUID, actor string, at time.Time) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `
		UPDATE submissions
		SET status = 'verified', member_id = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+submissionColumns,
		id, memberID, actor, at))
	if err != nil {
		return nil, r.transitionErr(ctx, "verify", id, err)
	}
	return s, nil
}

// MarkRejected moves a pending submission to rejected.
func (r *SubmissionRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason, actor string, at time.Time) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `
		UPDATE submissions
		SET status = 'rejected', rejection_reason = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+submissionColumns,
		id, reason, actor, at))
	if err != nil {
		return nil, r.transitionErr(ctx, "reject", id, err)
	}
	return s, nil
}

// transitionErr tells a missing submission apart from one that is no longer pending.
func (r *SubmissionRepository) transitionErr(ctx context.Context, op string, id uuid.UUID, err error) error {
	if !errors.Is(mapErr(err), models.ErrNotFound) {
		return fmt.Errorf("failed to %s submission: %w", op, err)
	}
	var status models.SubmissionStatus
	if err := r.db.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status); err != nil {
		return fmt.Errorf("failed to %s submission: %w", op, mapErr(err))
	}
	return fmt.Errorf("failed to %s submission: %w: status is %s", op, models.ErrInvalidStateTransition, status)
}
