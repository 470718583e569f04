// Package ledger implements the stokvel's payment compliance and ledger-state engine:
// the submission review state machine, member aggregates and the yearly interest pool.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
)

const (
	// auditTimeout bounds a single audit append so logging never stalls a caller.
	auditTimeout = 3 * time.Second
	// maxReferenceAttempts is how many fresh codes Submit tries before giving up.
	maxReferenceAttempts = 5
	// moneyScale is the number of decimal places amounts are stored with.
	moneyScale = 2
)

// maxAmount is the largest value a NUMERIC(14, 2) column holds.
var maxAmount = decimal.New(1, 12).Sub(decimal.New(1, -moneyScale))

// Ledger bundles the three ledger components over one store.
type Ledger struct {
	Submissions *SubmissionLedger
	Members     *MemberLedger
	Interest    *InterestPoolAggregator
}

// Option configures a Ledger.
type Option func(*core)

// WithPolicy overrides the default contribution rules.
func WithPolicy(p policy.Policy) Option {
	return func(c *core) { c.policy = p }
}

// WithClock overrides the wall clock.
func WithClock(clock policy.Clock) Option {
	return func(c *core) { c.clock = clock }
}

// WithAuditSink sets where admin actions are recorded.
func WithAuditSink(sink AuditSink) Option {
	return func(c *core) { c.audit = sink }
}

// WithReferenceGenerator overrides reference-code generation.
func WithReferenceGenerator(gen ReferenceGenerator) Option {
	return func(c *core) { c.newReference = gen }
}

// core holds what every ledger component shares.
type core struct {
	store        Store
	policy       policy.Policy
	clock        policy.Clock
	audit        AuditSink
	newReference ReferenceGenerator
	metrics      *metrics
}

// New creates a Ledger backed by store.
func New(store Store, opts ...Option) *Ledger {
	c := &core{
		store:        store,
		policy:       policy.Default(),
		clock:        policy.SystemClock{},
		newReference: NewReferenceCode,
		metrics:      newMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return &Ledger{
		Submissions: &SubmissionLedger{core: c},
		Members:     &MemberLedger{core: c},
		Interest:    &InterestPoolAggregator{core: c},
	}
}

// Policy returns the rules the ledger applies.
func (l *Ledger) Policy() policy.Policy {
	return l.Submissions.policy
}

// wrapStoreErr annotates err with op. Errors that are not ledger errors are
// reported as ErrStoreUnavailable so callers can offer a retry.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.IsDomainError(err) || errors.Is(err, models.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

// checkMoney rejects amounts the store cannot hold exactly.
func checkMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(moneyScale)) {
		return validationError("%s must have at most %d decimal places", field, moneyScale)
	}
	if amount.Abs().GreaterThan(maxAmount) {
		return validationError("%s must not exceed %s", field, maxAmount.StringFixed(moneyScale))
	}
	return nil
}

// record appends an audit entry. Failures are logged and swallowed.
func (c *core) record(ctx context.Context, action, actor string, details map[string]any) {
	if c.audit == nil {
		return
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	entry := models.AuditEntry{
		Action:    action,
		Actor:     actor,
		Details:   details,
		CreatedAt: c.clock.Now(),
	}
	if err := c.audit.Append(auditCtx, entry); err != nil {
		logger.Log.Warn().Err(err).Str("action", action).Msg("Failed to append audit entry")
	}
}
