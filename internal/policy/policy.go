// Package policy holds the stokvel's static contribution rules and the clock.
package policy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults used when no override is configured.
const (
	DefaultMinDeposit             = 300
	DefaultGracePeriodEndDay      = 7
	DefaultLateFineAmount         = 50
	DefaultInterestEligibilityMin = 10000
	DefaultMaxSkippedMonths       = 3
)

// Policy is the set of contribution rules applied by the ledger.
type Policy struct {
	// MinDeposit is the expected monthly contribution.
	MinDeposit decimal.Decimal
	// GracePeriodEndDay is the last day of the month a payment is on time.
	GracePeriodEndDay int
	// LateFineAmount is charged once per late submission.
	LateFineAmount decimal.Decimal
	// InterestEligibilityMin is the savings threshold for a share of the interest pool.
	InterestEligibilityMin decimal.Decimal
	// MaxSkippedMonths is the consecutive-miss count that suspends a member.
	MaxSkippedMonths int
}

// Default returns the standard stokvel rules.
func Default() Policy {
	return Policy{
		MinDeposit:             decimal.NewFromInt(DefaultMinDeposit),
		GracePeriodEndDay:      DefaultGracePeriodEndDay,
		LateFineAmount:         decimal.NewFromInt(DefaultLateFineAmount),
		InterestEligibilityMin: decimal.NewFromInt(DefaultInterestEligibilityMin),
		MaxSkippedMonths:       DefaultMaxSkippedMonths,
	}
}

// Validate checks that the rules are usable.
func (p Policy) Validate() error {
	if p.GracePeriodEndDay < 1 || p.GracePeriodEndDay > 31 {
		return fmt.Errorf("grace period end day must be between 1 and 31, got %d", p.GracePeriodEndDay)
	}
	if p.MaxSkippedMonths < 1 {
		return fmt.Errorf("max skipped months must be at least 1, got %d", p.MaxSkippedMonths)
	}
	if p.MinDeposit.IsNegative() {
		return fmt.Errorf("min deposit must not be negative")
	}
	if p.LateFineAmount.IsNegative() {
		return fmt.Errorf("late fine amount must not be negative")
	}
	if p.InterestEligibilityMin.IsNegative() {
		return fmt.Errorf("interest eligibility minimum must not be negative")
	}
	return nil
}

// IsLate reports whether a payment made on paymentDate misses the grace period.
func (p Policy) IsLate(paymentDate time.Time) bool {
	return paymentDate.Day() > p.GracePeriodEndDay
}

// FineFor returns the late fine owed for a payment made on paymentDate.
func (p Policy) FineFor(paymentDate time.Time) decimal.Decimal {
	if p.IsLate(paymentDate) {
		return p.LateFineAmount
	}
	return decimal.Zero
}

// ShouldSuspend reports whether skipped consecutive months reach the suspension threshold.
func (p Policy) ShouldSuspend(skipped int) bool {
	return skipped >= p.MaxSkippedMonths
}

// IsEligibleForInterest reports whether savings reach the interest threshold.
func (p Policy) IsEligibleForInterest(savings decimal.Decimal) bool {
	return savings.GreaterThanOrEqual(p.InterestEligibilityMin)
}
