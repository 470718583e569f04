package ledger_test

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/memstore"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	ledger *ledger.Ledger
	store  *memstore.Store
	audit  *memstore.AuditLog
	clock  *policy.FixedClock
}

func newHarness(opts ...ledger.Option) *harness {
	store := memstore.New()
	audit := &memstore.AuditLog{}
	clock := policy.NewFixedClock(testNow)
	all := append([]ledger.Option{ledger.WithClock(clock), ledger.WithAuditSink(audit)}, opts...)
	return &harness{
		ledger: ledger.New(store, all...),
		store:  store,
		audit:  audit,
		clock:  clock,
	}
}

func (h *harness) submit(t require.TestingT, amount int64, date time.Time, phone, name string) *models.Submission {
	sub, err := h.ledger.Submissions.Submit(context.Background(), ledger.SubmitInput{
		MemberName:  name,
		MemberPhone: phone,
		Amount:      dec(amount),
		PaymentDate: date,
	})
	require.NoError(t, err)
	return sub
}

func (h *harness) approve(t require.TestingT, sub *models.Submission) *models.Submission {
	approved, err := h.ledger.Submissions.Approve(context.Background(), sub.ID, ledger.ApproveInput{Actor: "admin"})
	require.NoError(t, err)
	return approved
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireAmount(t require.TestingT, want int64, got decimal.Decimal) {
	require.Truef(t, got.Equal(dec(want)), "want %d, got %s", want, got.String())
}

// sequence returns a generator that yields codes in order and then repeats the last one.
func sequence(codes ...string) ledger.ReferenceGenerator {
	i := 0
	return func() (string, error) {
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}
