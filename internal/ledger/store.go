package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// SubmissionFilter narrows submission queries. Zero-valued fields match everything.
type SubmissionFilter struct {
	Status       models.SubmissionStatus
	Phone        string
	PaymentMonth string
	MemberID     *uuid.UUID
	Limit        int
}

// MemberStore persists members and their aggregates.
type MemberStore interface {
	// Create inserts m, returning models.ErrAlreadyExists when the phone is taken.
	Create(ctx context.Context, m *models.Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetByPhone(ctx context.Context, phone string) (*models.Member, error)
	List(ctx context.Context) ([]models.Member, error)
	// ApplyApprovalCredit increments savings, fines and the verified count in place,
	// resets the skip count and reactivates the member.
	ApplyApprovalCredit(ctx context.Context, id uuid.UUID, amount, fine decimal.Decimal) (*models.Member, error)
	// UpdateSkipStatus stores the reconciled skip count and status, but only while the
	// member's verified count still equals expectedVerified. Returns false on a mismatch.
	UpdateSkipStatus(ctx context.Context, id uuid.UUID, expectedVerified, skipped int, status models.MemberStatus) (bool, error)
}

// SubmissionStore persists submissions and guards their state machine.
type SubmissionStore interface {
	// Create inserts s, returning models.ErrAlreadyExists when the reference code is taken.
	Create(ctx context.Context, s *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	GetByReference(ctx context.Context, code string) (*models.Submission, error)
	ReferenceExists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, f SubmissionFilter) ([]models.Submission, error)
	// MarkVerified moves a pending submission to verified. It returns
	// models.ErrInvalidStateTransition when the submission is no longer pending.
	MarkVerified(ctx context.Context, id, memberID uuid.UUID, actor string, at time.Time) (*models.Submission, error)
	// MarkRejected moves a pending submission to rejected with the given reason.
	MarkRejected(ctx context.Context, id uuid.UUID, reason, actor string, at time.Time) (*models.Submission, error)
}

// PoolStore persists the yearly interest pools.
type PoolStore interface {
	// CreditFine adds amount to the year's fine total, creating the pool if needed.
	CreditFine(ctx context.Context, year int, amount decimal.Decimal) error
	SetBankInterest(ctx context.Context, year int, amount decimal.Decimal) error
	// Get returns the year's pool, or a zero pool when nothing was recorded.
	Get(ctx context.Context, year int) (*models.InterestPool, error)
	List(ctx context.Context) ([]models.InterestPool, error)
}

// Tx groups the stores visible inside one transaction.
type Tx interface {
	Members() MemberStore
	Submissions() SubmissionStore
	Pools() PoolStore
}

// Store is the ledger's persistence boundary. Reads outside InTx see committed state.
type Store interface {
	Tx
	// InTx runs fn in a single atomic transaction. Nothing fn writes is visible
	// unless fn returns nil and the commit succeeds.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// AuditSink receives append-only records of ledger actions.
type AuditSink interface {
	Append(ctx context.Context, entry models.AuditEntry) error
}
