package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// SubmissionLedger records proof-of-payment submissions and applies admin decisions.
type SubmissionLedger struct {
	*core
}

// SubmitInput is what a member claims when submitting proof of payment.
type SubmitInput struct {
	MemberName      string
	MemberPhone     string
	Amount          decimal.Decimal
	PaymentDate     time.Time
	PaymentMonth    string
	PaymentMethod   string
	ProofRef        string
	Notes           string
	SubmitterChatID int64
}

// ApproveInput carries the admin's approval decision.
type ApproveInput struct {
	// MemberID credits an existing member. When nil the member is matched by the
	// submission's phone number and created if none exists.
	MemberID *uuid.UUID
	Actor    string
}

// Submit validates in and records a pending submission with its late fine fixed.
// Submit is not idempotent; retrying it creates a second submission.
func (l *SubmissionLedger) Submit(ctx context.Context, in SubmitInput) (sub *models.Submission, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Submit")
	defer func() { endSpan(span, err) }()

	if !in.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	if err := checkMoney("amount", in.Amount); err != nil {
		return nil, err
	}
	if in.PaymentDate.IsZero() {
		return nil, validationError("payment date is required")
	}
	phone := models.NormalizePhone(in.MemberPhone)
	if phone == "" {
		return nil, validationError("phone number is required")
	}
	name := strings.TrimSpace(in.MemberName)
	if name == "" {
		return nil, validationError("member name is required")
	}

	month := strings.TrimSpace(in.PaymentMonth)
	if month == "" {
		month = models.FormatMonth(in.PaymentDate)
	}

	sub = &models.Submission{
		ID:              uuid.New(),
		MemberName:      name,
		MemberPhone:     phone,
		Amount:          in.Amount,
		PaymentDate:     in.PaymentDate,
		PaymentMonth:    month,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		ProofRef:        in.ProofRef,
		Notes:           strings.TrimSpace(in.Notes),
		IsLate:          l.policy.IsLate(in.PaymentDate),
		FineAmount:      l.policy.FineFor(in.PaymentDate),
		Status:          models.SubmissionStatusPending,
		SubmitterChatID: in.SubmitterChatID,
		SubmittedAt:     l.clock.Now(),
	}

	if err := l.insertWithUniqueReference(ctx, sub); err != nil {
		return nil, err
	}

	l.metrics.add(ctx, l.metrics.submissions, attribute.Bool("late", sub.IsLate))
	logger.Log.Info().
		Str("reference", sub.ReferenceCode).
		Str("phone", logger.MaskPhone(sub.MemberPhone)).
		Bool("late", sub.IsLate).
		Msg("Submission recorded")

	l.record(ctx, models.AuditSubmissionCreated, name, map[string]any{
		"submission_id": sub.ID.String(),
		"reference":     sub.ReferenceCode,
		"amount":        sub.Amount.StringFixed(2),
		"fine":          sub.FineAmount.StringFixed(2),
		"payment_month": sub.PaymentMonth,
	})

	return sub, nil
}

// insertWithUniqueReference assigns a reference code unused in the store and inserts sub.
func (l *SubmissionLedger) insertWithUniqueReference(ctx context.Context, sub *models.Submission) error {
	for range maxReferenceAttempts {
		code, err := l.newReference()
		if err != nil {
			return wrapStoreErr("generate reference", err)
		}

		exists, err := l.store.Submissions().ReferenceExists(ctx, code)
		if err != nil {
			return wrapStoreErr("check reference", err)
		}
		if exists {
			logger.Log.Warn().Str("reference", code).Msg("Reference code collision, regenerating")
			continue
		}

		sub.ReferenceCode = code
		err = l.store.Submissions().Create(ctx, sub)
		if errors.Is(err, models.ErrAlreadyExists) {
			logger.Log.Warn().Str("reference", code).Msg("Reference code taken concurrently, regenerating")
			continue
		}
		if err != nil {
			return wrapStoreErr("create submission", err)
		}
		return nil
	}

	sub.ReferenceCode = ""
	return wrapStoreErr("create submission", errors.New("could not allocate a unique reference code"))
}

// Approve verifies a pending submission and, in the same transaction, credits the
// member's aggregates and, for late payments, the interest pool of the payment year.
func (l *SubmissionLedger) Approve(ctx context.Context, id uuid.UUID, in ApproveInput) (sub *models.Submission, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Approve")
	defer func() { endSpan(span, err) }()

	now := l.clock.Now()
	var member *models.Member

	err = l.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.Submissions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != models.SubmissionStatusPending {
			return stateError(current)
		}

		member, err = resolveMember(ctx, tx, current, in.MemberID, now)
		if err != nil {
			return err
		}

		sub, err = tx.Submissions().MarkVerified(ctx, id, member.ID, in.Actor, now)
		if err != nil {
			return err
		}

		member, err = tx.Members().ApplyApprovalCredit(ctx, member.ID, sub.Amount, sub.FineAmount)
		if err != nil {
			return err
		}

		if sub.FineAmount.IsPositive() {
			if err := tx.Pools().CreditFine(ctx, sub.Year(), sub.FineAmount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidStateTransition) {
			l.metrics.add(ctx, l.metrics.conflicts, attribute.String("decision", "approve"))
		}
		return nil, wrapStoreErr("approve submission", err)
	}

	l.metrics.add(ctx, l.metrics.approvals, attribute.Bool("late", sub.IsLate))
	logger.Log.Info().
		Str("reference", sub.ReferenceCode).
		Str("member_id", member.ID.String()).
		Str("actor", in.Actor).
		Msg("Submission approved")

	l.record(ctx, models.AuditSubmissionApproved, in.Actor, map[string]any{
		"submission_id": sub.ID.String(),
		"reference":     sub.ReferenceCode,
		"member_id":     member.ID.String(),
		"amount":        sub.Amount.StringFixed(2),
		"fine":          sub.FineAmount.StringFixed(2),
	})

	return sub, nil
}

// resolveMember finds the member to credit for sub, creating one from the
// submission's claimed name and phone when no member has that phone yet.
func resolveMember(ctx context.Context, tx Tx, sub *models.Submission, memberID *uuid.UUID, now time.Time) (*models.Member, error) {
	if memberID != nil {
		return tx.Members().GetByID(ctx, *memberID)
	}

	m, err := tx.Members().GetByPhone(ctx, sub.MemberPhone)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	m = newMember(sub.MemberName, sub.MemberPhone, now)
	err = tx.Members().Create(ctx, m)
	if errors.Is(err, models.ErrAlreadyExists) {
		return tx.Members().GetByPhone(ctx, sub.MemberPhone)
	}
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("member_id", m.ID.String()).
		Str("phone", logger.MaskPhone(m.Phone)).
		Msg("Member created from approved submission")
	return m, nil
}

// Reject closes a pending submission with a reason. No ledger totals change.
func (l *SubmissionLedger) Reject(ctx context.Context, id uuid.UUID, reason, actor string) (sub *models.Submission, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Reject")
	defer func() { endSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("rejection reason is required")
	}

	now := l.clock.Now()
	err = l.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.Submissions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != models.SubmissionStatusPending {
			return stateError(current)
		}
		sub, err = tx.Submissions().MarkRejected(ctx, id, reason, actor, now)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidStateTransition) {
			l.metrics.add(ctx, l.metrics.conflicts, attribute.String("decision", "reject"))
		}
		return nil, wrapStoreErr("reject submission", err)
	}

	l.metrics.add(ctx, l.metrics.rejections)
	logger.Log.Info().
		Str("reference", sub.ReferenceCode).
		Str("actor", actor).
		Msg("Submission rejected")

	l.record(ctx, models.AuditSubmissionRejected, actor, map[string]any{
		"submission_id": sub.ID.String(),
		"reference":     sub.ReferenceCode,
		"reason":        reason,
	})

	return sub, nil
}

// Get returns a submission by ID.
func (l *SubmissionLedger) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	sub, err := l.store.Submissions().GetByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get submission", err)
	}
	return sub, nil
}

// GetByReference returns a submission by its reference code.
func (l *SubmissionLedger) GetByReference(ctx context.Context, code string) (*models.Submission, error) {
	code = NormalizeReference(code)
	if !IsReferenceCode(code) {
		return nil, validationError("%q is not a reference code", code)
	}
	sub, err := l.store.Submissions().GetByReference(ctx, code)
	if err != nil {
		return nil, wrapStoreErr("get submission by reference", err)
	}
	return sub, nil
}

// ListByStatus returns submissions in the given status, newest first.
func (l *SubmissionLedger) ListByStatus(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	if !status.IsValid() {
		return nil, validationError("unknown status %q", status)
	}
	return l.list(ctx, SubmissionFilter{Status: status})
}

// ListByPhone returns submissions claimed under the given phone, newest first.
func (l *SubmissionLedger) ListByPhone(ctx context.Context, phone string) ([]models.Submission, error) {
	normalized := models.NormalizePhone(phone)
	if normalized == "" {
		return nil, validationError("phone number is required")
	}
	return l.list(ctx, SubmissionFilter{Phone: normalized})
}

// ListByMonth returns submissions for a payment-month label, newest first.
func (l *SubmissionLedger) ListByMonth(ctx context.Context, month string) ([]models.Submission, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return nil, validationError("payment month is required")
	}
	return l.list(ctx, SubmissionFilter{PaymentMonth: month})
}

// List returns submissions matching f, newest first.
func (l *SubmissionLedger) List(ctx context.Context, f SubmissionFilter) ([]models.Submission, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, validationError("unknown status %q", f.Status)
	}
	if f.Phone != "" {
		f.Phone = models.NormalizePhone(f.Phone)
	}
	return l.list(ctx, f)
}

func (l *SubmissionLedger) list(ctx context.Context, f SubmissionFilter) ([]models.Submission, error) {
	subs, err := l.store.Submissions().List(ctx, f)
	if err != nil {
		return nil, wrapStoreErr("list submissions", err)
	}
	return subs, nil
}

func stateError(sub *models.Submission) error {
	return fmt.Errorf("%w: submission %s is %s", models.ErrInvalidStateTransition, sub.ReferenceCode, sub.Status)
}
