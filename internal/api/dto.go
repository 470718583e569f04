package api

import (
	"time"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
)

// Money is rendered as fixed two-decimal strings.

type dashboardDTO struct {
	GeneratedAt      time.Time `json:"generated_at"`
	Members          int       `json:"members"`
	ActiveMembers    int       `json:"active_members"`
	SuspendedMembers int       `json:"suspended_members"`
	Pending          int       `json:"pending"`
	Verified         int       `json:"verified"`
	Rejected         int       `json:"rejected"`
	TotalSavings     string    `json:"total_savings"`
	TotalFines       string    `json:"total_fines"`
	PoolYear         int       `json:"pool_year"`
	InterestPool     string    `json:"interest_pool"`
}

func toDashboardDTO(d *report.Dashboard) dashboardDTO {
	return dashboardDTO{
		GeneratedAt:      d.GeneratedAt,
		Members:          d.Members,
		ActiveMembers:    d.ActiveMembers,
		SuspendedMembers: d.SuspendedMembers,
		Pending:          d.Pending,
		Verified:         d.Verified,
		Rejected:         d.Rejected,
		TotalSavings:     d.TotalSavings.StringFixed(2),
		TotalFines:       d.TotalFines.StringFixed(2),
		PoolYear:         d.PoolYear,
		InterestPool:     d.InterestPool.StringFixed(2),
	}
}

type shortfallDTO struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Paid     string `json:"paid"`
}

type monthlyDTO struct {
	Month              string         `json:"month"`
	Pending            int            `json:"pending"`
	Verified           int            `json:"verified"`
	Rejected           int            `json:"rejected"`
	TotalVerified      string         `json:"total_verified"`
	TotalFines         string         `json:"total_fines"`
	VerifiedSubmitters int            `json:"verified_submitters"`
	TotalMembers       int            `json:"total_members"`
	ComplianceRate     float64        `json:"compliance_rate"`
	BelowMinimum       []shortfallDTO `json:"below_minimum"`
}

func toMonthlyDTO(r *report.MonthlyReport) monthlyDTO {
	out := monthlyDTO{
		Month:              r.Month,
		Pending:            r.Pending,
		Verified:           r.Verified,
		Rejected:           r.Rejected,
		TotalVerified:      r.TotalVerified.StringFixed(2),
		TotalFines:         r.TotalFines.StringFixed(2),
		VerifiedSubmitters: r.VerifiedSubmitters,
		TotalMembers:       r.TotalMembers,
		ComplianceRate:     r.ComplianceRate,
		BelowMinimum:       make([]shortfallDTO, 0, len(r.BelowMinimum)),
	}
	for _, s := range r.BelowMinimum {
		out.BelowMinimum = append(out.BelowMinimum, shortfallDTO{
			MemberID: s.MemberID.String(),
			Name:     s.Name,
			Paid:     s.Paid.StringFixed(2),
		})
	}
	return out
}

type memberDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	TotalSavings  string    `json:"total_savings"`
	TotalFines    string    `json:"total_fines"`
	VerifiedCount int       `json:"verified_count"`
	SkippedMonths int       `json:"skipped_months"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMemberDTO(m *models.Member) memberDTO {
	return memberDTO{
		ID:            m.ID.String(),
		Name:          m.Name,
		Phone:         m.Phone,
		TotalSavings:  m.TotalSavings.StringFixed(2),
		TotalFines:    m.TotalFines.StringFixed(2),
		VerifiedCount: m.VerifiedCount,
		SkippedMonths: m.SkippedMonths,
		Status:        string(m.Status),
		CreatedAt:     m.CreatedAt,
	}
}

type submissionDTO struct {
	ID              string     `json:"id"`
	ReferenceCode   string     `json:"reference_code"`
	MemberName      string     `json:"member_name"`
	MemberPhone     string     `json:"member_phone"`
	Amount          string     `json:"amount"`
	PaymentDate     string     `json:"payment_date"`
	PaymentMonth    string     `json:"payment_month"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	IsLate          bool       `json:"is_late"`
	FineAmount      string     `json:"fine_amount"`
	Status          string     `json:"status"`
	MemberID        *string    `json:"member_id,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
}

func toSubmissionDTO(s *models.Submission) submissionDTO {
	out := submissionDTO{
		ID:              s.ID.String(),
		ReferenceCode:   s.ReferenceCode,
		MemberName:      s.MemberName,
		MemberPhone:     s.MemberPhone,
		Amount:          s.Amount.StringFixed(2),
		PaymentDate:     s.PaymentDate.Format("2006-01-02"),
		PaymentMonth:    s.PaymentMonth,
		PaymentMethod:   s.PaymentMethod,
		IsLate:          s.IsLate,
		FineAmount:      s.FineAmount.StringFixed(2),
		Status:          string(s.Status),
		RejectionReason: s.RejectionReason,
		ReviewedBy:      s.ReviewedBy,
		SubmittedAt:     s.SubmittedAt,
		ReviewedAt:      s.ReviewedAt,
	}
	if s.MemberID != nil {
		id := s.MemberID.String()
		out.MemberID = &id
	}
	return out
}

type distributionDTO struct {
	Year            int         `json:"year"`
	TotalFines      string      `json:"total_fines"`
	BankInterest    string      `json:"bank_interest"`
	TotalPool       string      `json:"total_pool"`
	PerMemberAmount string      `json:"per_member_amount"`
	EligibleCount   int         `json:"eligible_count"`
	EligibleMembers []memberDTO `json:"eligible_members"`
}

func toDistributionDTO(d *ledger.Distribution) distributionDTO {
	out := distributionDTO{
		Year:            d.Year,
		TotalFines:      d.TotalFines.StringFixed(2),
		BankInterest:    d.BankInterest.StringFixed(2),
		TotalPool:       d.TotalPool.StringFixed(2),
		PerMemberAmount: d.PerMemberAmount.StringFixed(2),
		EligibleCount:   d.EligibleCount(),
		EligibleMembers: make([]memberDTO, 0, len(d.EligibleMembers)),
	}
	for i := range d.EligibleMembers {
		out.EligibleMembers = append(out.EligibleMembers, toMemberDTO(&d.EligibleMembers[i]))
	}
	return out
}
