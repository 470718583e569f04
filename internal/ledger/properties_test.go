package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

const (
	decisionNone = iota
	decisionApprove
	decisionReject
)

// TestLedgerInvariants drives random submissions and decisions and then checks
// that every aggregate can be recomputed from the verified submissions.
func TestLedgerInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		h := newHarness()
		phones := []string{"0820000001", "0820000002", "0820000003"}

		n := rapid.IntRange(1, 25).Draw(rt, "submissions")
		created := make(map[uuid.UUID]models.Submission, n)
		for i := range n {
			amount := rapid.Int64Range(1, 20000).Draw(rt, "amount")
			year := rapid.IntRange(2024, 2025).Draw(rt, "year")
			month := time.Month(rapid.IntRange(1, 12).Draw(rt, "month"))
			dom := rapid.IntRange(1, 28).Draw(rt, "day")
			phone := rapid.SampledFrom(phones).Draw(rt, "phone")

			sub := h.submit(rt, amount, day(year, month, dom), phone, "Member "+phone)
			created[sub.ID] = *sub

			switch rapid.IntRange(decisionNone, decisionReject).Draw(rt, "decision") {
			case decisionApprove:
				h.approve(rt, sub)
			case decisionReject:
				_, err := h.ledger.Submissions.Reject(ctx, sub.ID, "reason", "admin")
				require.NoError(rt, err)
			}

			h.clock.Advance(time.Duration(i+1) * time.Second)
		}

		all, err := h.ledger.Submissions.List(ctx, ledger.SubmissionFilter{})
		require.NoError(rt, err)
		require.Len(rt, all, n)

		savings := map[uuid.UUID]decimal.Decimal{}
		fines := map[uuid.UUID]decimal.Decimal{}
		counts := map[uuid.UUID]int{}
		poolFines := map[int]decimal.Decimal{}

		for _, sub := range all {
			orig := created[sub.ID]
			require.Equal(rt, sub.FineAmount.IsPositive(), sub.IsLate)
			require.Equal(rt, orig.IsLate, sub.IsLate)
			require.True(rt, orig.FineAmount.Equal(sub.FineAmount))
			require.True(rt, orig.Amount.Equal(sub.Amount))

			if sub.Status != models.SubmissionStatusVerified {
				require.Nil(rt, sub.MemberID)
				continue
			}
			require.NotNil(rt, sub.MemberID)
			id := *sub.MemberID
			savings[id] = savings[id].Add(sub.Amount)
			fines[id] = fines[id].Add(sub.FineAmount)
			counts[id]++
			poolFines[sub.Year()] = poolFines[sub.Year()].Add(sub.FineAmount)

			_, err := h.ledger.Submissions.Approve(ctx, sub.ID, ledger.ApproveInput{Actor: "admin"})
			require.ErrorIs(rt, err, models.ErrInvalidStateTransition)
		}

		members, err := h.ledger.Members.List(ctx)
		require.NoError(rt, err)
		require.Len(rt, members, len(counts))
		for _, m := range members {
			require.Truef(rt, savings[m.ID].Equal(m.TotalSavings), "savings for %s", m.Phone)
			require.Truef(rt, fines[m.ID].Equal(m.TotalFines), "fines for %s", m.Phone)
			require.Equal(rt, counts[m.ID], m.VerifiedCount)
		}

		for _, year := range []int{2024, 2025} {
			pool, err := h.ledger.Interest.Pool(ctx, year)
			require.NoError(rt, err)
			require.Truef(rt, poolFines[year].Equal(pool.TotalFines), "pool fines for %d", year)
		}
	})
}

func TestDistributionNeverOverpays(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		h := newHarness()

		members := rapid.IntRange(0, 6).Draw(rt, "members")
		for i := range members {
			amount := rapid.Int64Range(1, 30000).Draw(rt, "savings")
			h.approve(rt, h.submit(rt, amount, day(2025, 1, 2), "08200000"+string(rune('0'+i)), "Member"))
		}
		interest := rapid.Int64Range(0, 100000).Draw(rt, "interest")
		require.NoError(rt, h.ledger.Interest.SetBankInterest(ctx, 2025, dec(interest), "admin"))

		d, err := h.ledger.Interest.ComputeDistribution(ctx, 2025)
		require.NoError(rt, err)
		require.False(rt, d.PerMemberAmount.IsNegative())

		n := d.EligibleCount()
		if n == 0 {
			require.True(rt, d.PerMemberAmount.IsZero())
			return
		}
		paid := d.PerMemberAmount.Mul(dec(int64(n)))
		require.True(rt, paid.LessThanOrEqual(d.TotalPool))
		require.True(rt, d.TotalPool.Sub(paid).LessThan(dec(int64(n))))
		require.True(rt, d.PerMemberAmount.Equal(d.PerMemberAmount.Floor()))
	})
}
