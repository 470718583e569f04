// Package memstore is an in-memory ledger store for tests and local runs.
//
// Transactions hold the store mutex for their whole duration and work on a
// copy of the state that replaces the live state only when the callback
// returns nil.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

type state struct {
	members     map[uuid.UUID]models.Member
	phones      map[string]uuid.UUID
	submissions map[uuid.UUID]models.Submission
	references  map[string]uuid.UUID
	pools       map[int]models.InterestPool
}

func newState() *state {
	return &state{
		members:     make(map[uuid.UUID]models.Member),
		phones:      make(map[string]uuid.UUID),
		submissions: make(map[uuid.UUID]models.Submission),
		references:  make(map[string]uuid.UUID),
		pools:       make(map[int]models.InterestPool),
	}
}

func (s *state) clone() *state {
	c := &state{
		members:     make(map[uuid.UUID]models.Member, len(s.members)),
		phones:      make(map[string]uuid.UUID, len(s.phones)),
		submissions: make(map[uuid.UUID]models.Submission, len(s.submissions)),
		references:  make(map[string]uuid.UUID, len(s.references)),
		pools:       make(map[int]models.InterestPool, len(s.pools)),
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.phones {
		c.phones[k] = v
	}
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	for k, v := range s.references {
		c.references[k] = v
	}
	for k, v := range s.pools {
		c.pools[k] = v
	}
	return c
}

// Store implements ledger.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state
	fail  map[string]error
}

var _ ledger.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), fail: make(map[string]error)}
}

// FailOn makes the named operation (e.g. "pools.CreditFine") return err until
// cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Members returns the committed member store.
func (s *Store) Members() ledger.MemberStore { return memberStore{view{store: s}} }

// Submissions returns the committed submission store.
func (s *Store) Submissions() ledger.SubmissionStore { return submissionStore{view{store: s}} }

// Pools returns the committed pool store.
func (s *Store) Pools() ledger.PoolStore { return poolStore{view{store: s}} }

// InTx runs fn against a private copy of the state and commits it if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(txStores{view{store: s, tx: draft}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = draft
	return nil
}

type txStores struct{ v view }

func (t txStores) Members() ledger.MemberStore         { return memberStore{t.v} }
func (t txStores) Submissions() ledger.SubmissionStore { return submissionStore{t.v} }
func (t txStores) Pools() ledger.PoolStore             { return poolStore{t.v} }

// view runs operations either inside a transaction (tx set, mutex already
// held) or directly against committed state.
type view struct {
	store *Store
	tx    *state
}

func (v view) do(ctx context.Context, op string, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.tx != nil {
		if err := v.store.fail[op]; err != nil {
			return err
		}
		return fn(v.tx)
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if err := v.store.fail[op]; err != nil {
		return err
	}
	return fn(v.store.state)
}

type memberStore struct{ v view }

func (m memberStore) Create(ctx context.Context, member *models.Member) error {
	return m.v.do(ctx, "members.Create", func(st *state) error {
		if _, ok := st.phones[member.Phone]; ok {
			return models.ErrAlreadyExists
		}
		if _, ok := st.members[member.ID]; ok {
			return models.ErrAlreadyExists
		}
		st.members[member.ID] = *member
		st.phones[member.Phone] = member.ID
		return nil
	})
}

func (m memberStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var out models.Member
	err := m.v.do(ctx, "members.GetByID", func(st *state) error {
		member, ok := st.members[id]
		if !ok {
			return models.ErrNotFound
		}
		out = member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m memberStore) GetByPhone(ctx context.Context, phone string) (*models.Member, error) {
	var out models.Member
	err := m.v.do(ctx, "members.GetByPhone", func(st *state) error {
		id, ok := st.phones[phone]
		if !ok {
			return models.ErrNotFound
		}
		out = st.members[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m memberStore) List(ctx context.Context) ([]models.Member, error) {
	var out []models.Member
	err := m.v.do(ctx, "members.List", func(st *state) error {
		out = make([]models.Member, 0, len(st.members))
		for _, member := range st.members {
			out = append(out, member)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !strings.EqualFold(out[i].Name, out[j].Name) {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
		return out[i].Phone < out[j].Phone
	})
	return out, nil
}

func (m memberStore) ApplyApprovalCredit(ctx context.Context, id uuid.UUID, amount, fine decimal.Decimal) (*models.Member, error) {
	var out models.Member
	err := m.v.do(ctx, "members.ApplyApprovalCredit", func(st *state) error {
		member, ok := st.members[id]
		if !ok {
			return models.ErrNotFound
		}
		member.TotalSavings = member.TotalSavings.Add(amount)
		member.TotalFines = member.TotalFines.Add(fine)
		member.VerifiedCount++
		member.SkippedMonths = 0
		member.Status = models.MemberStatusActive
		member.UpdatedAt = time.Now()
		st.members[id] = member
		out = member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m memberStore) UpdateSkipStatus(ctx context.Context, id uuid.UUID, expectedVerified, skipped int, status models.MemberStatus) (bool, error) {
	var updated bool
	err := m.v.do(ctx, "members.UpdateSkipStatus", func(st *state) error {
		member, ok := st.members[id]
		if !ok {
			return models.ErrNotFound
		}
		if member.VerifiedCount != expectedVerified {
			return nil
		}
		member.SkippedMonths = skipped
		member.Status = status
		member.UpdatedAt = time.Now()
		st.members[id] = member
		updated = true
		return nil
	})
	return updated, err
}

type submissionStore struct{ v view }

func (s submissionStore) Create(ctx context.Context, sub *models.Submission) error {
	return s.v.do(ctx, "submissions.Create", func(st *state) error {
		if _, ok := st.references[sub.ReferenceCode]; ok {
			return models.ErrAlreadyExists
		}
		if _, ok := st.submissions[sub.ID]; ok {
			return models.ErrAlreadyExists
		}
		st.submissions[sub.ID] = *sub
		st.references[sub.ReferenceCode] = sub.ID
		return nil
	})
}

func (s submissionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var out models.Submission
	err := s.v.do(ctx, "submissions.GetByID", func(st *state) error {
		sub, ok := st.submissions[id]
		if !ok {
			return models.ErrNotFound
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s submissionStore) GetByReference(ctx context.Context, code string) (*models.Submission, error) {
	var out models.Submission
	err := s.v.do(ctx, "submissions.GetByReference", func(st *state) error {
		id, ok := st.references[code]
		if !ok {
			return models.ErrNotFound
		}
		out = st.submissions[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s submissionStore) ReferenceExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.v.do(ctx, "submissions.ReferenceExists", func(st *state) error {
		_, exists = st.references[code]
		return nil
	})
	return exists, err
}

func (s submissionStore) List(ctx context.Context, f ledger.SubmissionFilter) ([]models.Submission, error) {
	var out []models.Submission
	err := s.v.do(ctx, "submissions.List", func(st *state) error {
		for _, sub := range st.submissions {
			if matches(sub, f) {
				out = append(out, sub)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ReferenceCode < out[j].ReferenceCode
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(sub models.Submission, f ledger.SubmissionFilter) bool {
	if f.Status != "" && sub.Status != f.Status {
		return false
	}
	if f.Phone != "" && sub.MemberPhone != f.Phone {
		return false
	}
	if f.PaymentMonth != "" && sub.PaymentMonth != f.PaymentMonth {
		return false
	}
	if f.MemberID != nil && (sub.MemberID == nil || *sub.MemberID != *f.MemberID) {
		return false
	}
	return true
}

func (s submissionStore) MarkVerified(ctx context.Context, id, memberID uuid.UUID, actor string, at time.Time) (*models.Submission, error) {
	return s.transition(ctx, "submissions.MarkVerified", id, func(sub *models.Submission) {
		sub.Status = models.SubmissionStatusVerified
		sub.MemberID = &memberID
		sub.ReviewedBy = actor
		sub.ReviewedAt = &at
	})
}

func (s submissionStore) MarkRejected(ctx context.Context, id uuid.UUID, reason, actor string, at time.Time) (*models.Submission, error) {
	return s.transition(ctx, "submissions.MarkRejected", id, func(sub *models.Submission) {
		sub.Status = models.SubmissionStatusRejected
		sub.RejectionReason = reason
		sub.ReviewedBy = actor
		sub.ReviewedAt = &at
	})
}

func (s submissionStore) transition(ctx context.Context, op string, id uuid.UUID, apply func(*models.Submission)) (*models.Submission, error) {
	var out models.Submission
	err := s.v.do(ctx, op, func(st *state) error {
		sub, ok := st.submissions[id]
		if !ok {
			return models.ErrNotFound
		}
		if sub.Status != models.SubmissionStatusPending {
			return models.ErrInvalidStateTransition
		}
		apply(&sub)
		st.submissions[id] = sub
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type poolStore struct{ v view }

func (p poolStore) CreditFine(ctx context.Context, year int, amount decimal.Decimal) error {
	return p.v.do(ctx, "pools.CreditFine", func(st *state) error {
		pool := poolOrZero(st, year)
		pool.TotalFines = pool.TotalFines.Add(amount)
		pool.UpdatedAt = time.Now()
		st.pools[year] = pool
		return nil
	})
}

func (p poolStore) SetBankInterest(ctx context.Context, year int, amount decimal.Decimal) error {
	return p.v.do(ctx, "pools.SetBankInterest", func(st *state) error {
		pool := poolOrZero(st, year)
		pool.BankInterest = amount
		pool.UpdatedAt = time.Now()
		st.pools[year] = pool
		return nil
	})
}

func (p poolStore) Get(ctx context.Context, year int) (*models.InterestPool, error) {
	var out models.InterestPool
	err := p.v.do(ctx, "pools.Get", func(st *state) error {
		out = poolOrZero(st, year)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p poolStore) List(ctx context.Context) ([]models.InterestPool, error) {
	var out []models.InterestPool
	err := p.v.do(ctx, "pools.List", func(st *state) error {
		for _, pool := range st.pools {
			out = append(out, pool)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func poolOrZero(st *state, year int) models.InterestPool {
	if pool, ok := st.pools[year]; ok {
		return pool
	}
	return models.InterestPool{Year: year, TotalFines: decimal.Zero, BankInterest: decimal.Zero}
}
