package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Checked     int
	Updated     int
	Suspended   int
	Reactivated int
	// Conflicts counts members approved while the pass ran; they are picked up next time.
	Conflicts int
}

// Reconcile recomputes every member's consecutive skipped months from their
// verified history and derives suspension from it. The pass sets values rather
// than incrementing them, so running it twice in a month changes nothing.
func (l *MemberLedger) Reconcile(ctx context.Context) (res *ReconcileResult, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Reconcile")
	defer func() { endSpan(span, err) }()

	members, err := l.store.Members().List(ctx)
	if err != nil {
		return nil, wrapStoreErr("reconcile members", err)
	}

	verified, err := l.store.Submissions().List(ctx, SubmissionFilter{Status: models.SubmissionStatusVerified})
	if err != nil {
		return nil, wrapStoreErr("reconcile members", err)
	}

	paid := make(map[uuid.UUID]map[time.Time]bool, len(members))
	for i := range verified {
		s := &verified[i]
		if s.MemberID == nil {
			continue
		}
		if paid[*s.MemberID] == nil {
			paid[*s.MemberID] = make(map[time.Time]bool)
		}
		paid[*s.MemberID][s.CoveredMonth()] = true
	}

	now := l.clock.Now()
	res = &ReconcileResult{}
	for i := range members {
		m := &members[i]
		res.Checked++

		skipped := l.skippedMonths(m, paid[m.ID], now)
		status := models.MemberStatusActive
		if l.policy.ShouldSuspend(skipped) {
			status = models.MemberStatusSuspended
		}
		if skipped == m.SkippedMonths && status == m.Status {
			continue
		}

		ok, err := l.store.Members().UpdateSkipStatus(ctx, m.ID, m.VerifiedCount, skipped, status)
		if err != nil {
			return res, wrapStoreErr("reconcile members", err)
		}
		if !ok {
			res.Conflicts++
			continue
		}

		res.Updated++
		switch {
		case status == models.MemberStatusSuspended && m.Status != status:
			res.Suspended++
			logger.Log.Info().Str("member_id", m.ID.String()).Int("skipped_months", skipped).Msg("Member suspended")
		case status == models.MemberStatusActive && m.Status != status:
			res.Reactivated++
			logger.Log.Info().Str("member_id", m.ID.String()).Msg("Member reactivated")
		}
	}

	logger.Log.Info().
		Int("checked", res.Checked).
		Int("updated", res.Updated).
		Int("suspended", res.Suspended).
		Int("conflicts", res.Conflicts).
		Msg("Reconciliation finished")

	l.record(ctx, models.AuditReconciled, "system", map[string]any{
		"checked":     res.Checked,
		"updated":     res.Updated,
		"suspended":   res.Suspended,
		"reactivated": res.Reactivated,
		"conflicts":   res.Conflicts,
	})

	return res, nil
}

// skippedMonths counts fully elapsed months, newest first, with no verified
// payment. Counting stops at the first paid month or at the member's first
// billable month. A member who joins after the grace period owes nothing for
// the joining month.
func (l *MemberLedger) skippedMonths(m *models.Member, paid map[time.Time]bool, now time.Time) int {
	first := monthStart(m.CreatedAt)
	if m.CreatedAt.Day() > l.policy.GracePeriodEndDay {
		first = first.AddDate(0, 1, 0)
	}

	skipped := 0
	for month := monthStart(now).AddDate(0, -1, 0); !month.Before(first); month = month.AddDate(0, -1, 0) {
		if paid[month] {
			break
		}
		skipped++
	}
	return skipped
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
