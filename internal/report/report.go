// Package report aggregates ledger state into dashboards and monthly compliance reports.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
)

// Dashboard is a point-in-time summary of the whole club.
type Dashboard struct {
	GeneratedAt      time.Time
	Members          int
	ActiveMembers    int
	SuspendedMembers int
	Pending          int
	Verified         int
	Rejected         int
	TotalSavings     decimal.Decimal
	TotalFines       decimal.Decimal
	PoolYear         int
	InterestPool     decimal.Decimal
}

// Shortfall is a member whose verified payments for a month fall below the minimum deposit.
type Shortfall struct {
	MemberID uuid.UUID
	Name     string
	Phone    string
	Paid     decimal.Decimal
}

// MonthlyReport summarises the submissions covering one calendar month.
type MonthlyReport struct {
	Month              string
	Pending            int
	Verified           int
	Rejected           int
	TotalVerified      decimal.Decimal
	TotalFines         decimal.Decimal
	VerifiedSubmitters int
	TotalMembers       int
	// ComplianceRate is VerifiedSubmitters / TotalMembers, 0 when there are no members.
	ComplianceRate float64
	BelowMinimum   []Shortfall
}

// Service builds reports from the ledger. Reports are read-only snapshots.
type Service struct {
	ledger *ledger.Ledger
	clock  policy.Clock
}

// NewService creates a reporting service over l.
func NewService(l *ledger.Ledger, clock policy.Clock) *Service {
	if clock == nil {
		clock = policy.SystemClock{}
	}
	return &Service{ledger: l, clock: clock}
}

// Dashboard returns totals across all members and submissions, with the current year's pool.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	members, err := s.ledger.Members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	subs, err := s.ledger.Submissions.List(ctx, ledger.SubmissionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	now := s.clock.Now()
	pool, err := s.ledger.Interest.Pool(ctx, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to get interest pool: %w", err)
	}

	d := &Dashboard{
		GeneratedAt:  now,
		Members:      len(members),
		TotalSavings: decimal.Zero,
		TotalFines:   decimal.Zero,
		PoolYear:     now.Year(),
		InterestPool: pool.Total(),
	}
	for _, m := range members {
		if m.IsActive() {
			d.ActiveMembers++
		} else {
			d.SuspendedMembers++
		}
		d.TotalSavings = d.TotalSavings.Add(m.TotalSavings)
		d.TotalFines = d.TotalFines.Add(m.TotalFines)
	}
	for _, sub := range subs {
		switch sub.Status {
		case models.SubmissionStatusPending:
			d.Pending++
		case models.SubmissionStatusVerified:
			d.Verified++
		case models.SubmissionStatusRejected:
			d.Rejected++
		}
	}
	return d, nil
}

// Monthly reports on the submissions covering the month named by label, e.g. "March 2025".
func (s *Service) Monthly(ctx context.Context, label string) (*MonthlyReport, error) {
	month, err := models.ParseMonth(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a month like %q", models.ErrValidation, strings.TrimSpace(label), "March 2025")
	}

	members, err := s.ledger.Members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	subs, err := s.ledger.Submissions.List(ctx, ledger.SubmissionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	r := &MonthlyReport{
		Month:         models.FormatMonth(month),
		TotalVerified: decimal.Zero,
		TotalFines:    decimal.Zero,
		TotalMembers:  len(members),
	}

	paid := make(map[uuid.UUID]decimal.Decimal)
	for _, sub := range subs {
		if !sub.CoveredMonth().Equal(month) {
			continue
		}
		switch sub.Status {
		case models.SubmissionStatusPending:
			r.Pending++
		case models.SubmissionStatusRejected:
			r.Rejected++
		case models.SubmissionStatusVerified:
			r.Verified++
			r.TotalVerified = r.TotalVerified.Add(sub.Amount)
			r.TotalFines = r.TotalFines.Add(sub.FineAmount)
			if sub.MemberID != nil {
				paid[*sub.MemberID] = paid[*sub.MemberID].Add(sub.Amount)
			}
		}
	}

	r.VerifiedSubmitters = len(paid)
	if r.TotalMembers > 0 {
		r.ComplianceRate = float64(r.VerifiedSubmitters) / float64(r.TotalMembers)
	}

	minDeposit := s.ledger.Policy().MinDeposit
	for _, m := range members {
		amount := paid[m.ID]
		if amount.LessThan(minDeposit) {
			r.BelowMinimum = append(r.BelowMinimum, Shortfall{
				MemberID: m.ID,
				Name:     m.Name,
				Phone:    m.Phone,
				Paid:     amount,
			})
		}
	}
	sort.SliceStable(r.BelowMinimum, func(i, j int) bool {
		return r.BelowMinimum[i].Paid.LessThan(r.BelowMinimum[j].Paid)
	})

	return r, nil
}
