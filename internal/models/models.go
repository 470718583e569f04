// Package models defines the domain entities for the stokvel ledger.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency all amounts are recorded in.
const DefaultCurrency = "ZAR"

// PaymentMonthLayout is the layout of payment-month labels, e.g. "March 2025".
const PaymentMonthLayout = "January 2006"

// MemberStatus represents whether a member is in good standing.
type MemberStatus string

// Member statuses.
const (
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
)

// SubmissionStatus represents where a submission is in review.
type SubmissionStatus string

// Submission statuses. Verified and rejected are terminal.
const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusVerified SubmissionStatus = "verified"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// IsValid reports whether s is a known submission status.
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusVerified, SubmissionStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusVerified || s == SubmissionStatusRejected
}

// Member is a stokvel member with running totals.
type Member struct {
	ID            uuid.UUID
	Name          string
	Phone         string
	TotalSavings  decimal.Decimal
	TotalFines    decimal.Decimal
	VerifiedCount int
	SkippedMonths int
	Status        MemberStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive returns true if the member is not suspended.
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// Submission is a proof-of-payment record awaiting or past admin review.
type Submission struct {
	ID              uuid.UUID
	ReferenceCode   string
	MemberName      string
	MemberPhone     string
	Amount          decimal.Decimal
	PaymentDate     time.Time
	PaymentMonth    string
	PaymentMethod   string
	ProofRef        string
	Notes           string
	IsLate          bool
	FineAmount      decimal.Decimal
	Status          SubmissionStatus
	MemberID        *uuid.UUID
	RejectionReason string
	ReviewedBy      string
	SubmitterChatID int64
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
}

// Year returns the calendar year the payment counts towards for the interest pool.
func (s *Submission) Year() int {
	return s.PaymentDate.Year()
}

// CoveredMonth returns the first day of the month this payment covers.
// The payment-month label wins when it parses; otherwise the payment date is used.
func (s *Submission) CoveredMonth() time.Time {
	if t, err := time.Parse(PaymentMonthLayout, strings.TrimSpace(s.PaymentMonth)); err == nil {
		return t
	}
	return time.Date(s.PaymentDate.Year(), s.PaymentDate.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// InterestPool accumulates late fines and bank interest for a year.
type InterestPool struct {
	Year         int
	TotalFines   decimal.Decimal
	BankInterest decimal.Decimal
	UpdatedAt    time.Time
}

// Total returns fines plus bank interest.
func (p *InterestPool) Total() decimal.Decimal {
	return p.TotalFines.Add(p.BankInterest)
}

// Audit actions recorded by the ledger.
const (
	AuditSubmissionCreated  = "submission.created"
	AuditSubmissionApproved = "submission.approved"
	AuditSubmissionRejected = "submission.rejected"
	AuditMemberCreated      = "member.created"
	AuditBankInterestSet    = "interest.bank_interest_set"
	AuditReconciled         = "members.reconciled"
)

// AuditEntry is an append-only record of an admin or system action.
type AuditEntry struct {
	ID        int64
	Action    string
	Actor     string
	Details   map[string]any
	CreatedAt time.Time
}

// NormalizePhone strips everything but digits and a leading plus sign.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// FormatMonth renders t as a payment-month label.
func FormatMonth(t time.Time) string {
	return t.Format(PaymentMonthLayout)
}

// ParseMonth parses a payment-month label such as "March 2025".
func ParseMonth(label string) (time.Time, error) {
	return time.Parse(PaymentMonthLayout, strings.TrimSpace(label))
}
