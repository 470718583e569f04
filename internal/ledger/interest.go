package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// InterestPoolAggregator reads the yearly fine pools and works out payouts.
// Fines are credited by Approve; bank interest is supplied externally.
type InterestPoolAggregator struct {
	*core
}

// Distribution is the year-end split of an interest pool. Nothing is paid out
// by computing it.
type Distribution struct {
	Year            int
	TotalFines      decimal.Decimal
	BankInterest    decimal.Decimal
	TotalPool       decimal.Decimal
	PerMemberAmount decimal.Decimal
	EligibleMembers []models.Member
}

// EligibleCount returns the number of members sharing the pool.
func (d *Distribution) EligibleCount() int {
	return len(d.EligibleMembers)
}

// Pool returns the interest pool for year.
func (a *InterestPoolAggregator) Pool(ctx context.Context, year int) (*models.InterestPool, error) {
	if year < 1 {
		return nil, validationError("invalid year %d", year)
	}
	pool, err := a.store.Pools().Get(ctx, year)
	if err != nil {
		return nil, wrapStoreErr("get interest pool", err)
	}
	return pool, nil
}

// Pools returns every recorded pool.
func (a *InterestPoolAggregator) Pools(ctx context.Context) ([]models.InterestPool, error) {
	pools, err := a.store.Pools().List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list interest pools", err)
	}
	return pools, nil
}

// SetBankInterest records the bank interest earned in year.
func (a *InterestPoolAggregator) SetBankInterest(ctx context.Context, year int, amount decimal.Decimal, actor string) error {
	if year < 1 {
		return validationError("invalid year %d", year)
	}
	if amount.IsNegative() {
		return validationError("bank interest must not be negative")
	}
	if err := checkMoney("bank interest", amount); err != nil {
		return err
	}
	if err := a.store.Pools().SetBankInterest(ctx, year, amount); err != nil {
		return wrapStoreErr("set bank interest", err)
	}

	logger.Log.Info().Int("year", year).Str("amount", amount.StringFixed(2)).Str("actor", actor).Msg("Bank interest recorded")
	a.record(ctx, models.AuditBankInterestSet, actor, map[string]any{
		"year":   year,
		"amount": amount.StringFixed(2),
	})
	return nil
}

// ComputeDistribution splits the year's pool evenly among active members whose
// savings reach the eligibility minimum, rounding each share down.
func (a *InterestPoolAggregator) ComputeDistribution(ctx context.Context, year int) (d *Distribution, err error) {
	ctx, span := tracer.Start(ctx, "ledger.ComputeDistribution")
	defer func() { endSpan(span, err) }()

	pool, err := a.Pool(ctx, year)
	if err != nil {
		return nil, err
	}

	members, err := a.store.Members().List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list members", err)
	}

	eligible := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.IsActive() && a.policy.IsEligibleForInterest(m.TotalSavings) {
			eligible = append(eligible, m)
		}
	}

	total := pool.Total()
	share := decimal.Zero
	if len(eligible) > 0 {
		share = total.Div(decimal.NewFromInt(int64(len(eligible)))).Floor()
	}

	return &Distribution{
		Year:            year,
		TotalFines:      pool.TotalFines,
		BankInterest:    pool.BankInterest,
		TotalPool:       total,
		PerMemberAmount: share,
		EligibleMembers: eligible,
	}, nil
}
