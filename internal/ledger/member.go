package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// MemberLedger owns member records. Their aggregates only change through
// Approve and Reconcile.
type MemberLedger struct {
	*core
}

// CreateMemberInput is an admin's request to add a member.
type CreateMemberInput struct {
	Name  string
	Phone string
	Actor string
}

func newMember(name, phone string, now time.Time) *models.Member {
	return &models.Member{
		ID:           uuid.New(),
		Name:         name,
		Phone:        phone,
		TotalSavings: decimal.Zero,
		TotalFines:   decimal.Zero,
		Status:       models.MemberStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Create adds a member with zeroed totals.
func (l *MemberLedger) Create(ctx context.Context, in CreateMemberInput) (*models.Member, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("member name is required")
	}
	phone := models.NormalizePhone(in.Phone)
	if phone == "" {
		return nil, validationError("phone number is required")
	}

	m := newMember(name, phone, l.clock.Now())
	if err := l.store.Members().Create(ctx, m); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, validationError("a member with phone %s already exists", phone)
		}
		return nil, wrapStoreErr("create member", err)
	}

	logger.Log.Info().
		Str("member_id", m.ID.String()).
		Str("phone", logger.MaskPhone(phone)).
		Str("actor", in.Actor).
		Msg("Member created")

	l.record(ctx, models.AuditMemberCreated, in.Actor, map[string]any{
		"member_id": m.ID.String(),
		"name":      m.Name,
	})

	return m, nil
}

// FindByPhone returns the member registered under phone.
func (l *MemberLedger) FindByPhone(ctx context.Context, phone string) (*models.Member, error) {
	normalized := models.NormalizePhone(phone)
	if normalized == "" {
		return nil, validationError("phone number is required")
	}
	m, err := l.store.Members().GetByPhone(ctx, normalized)
	if err != nil {
		return nil, wrapStoreErr("find member by phone", err)
	}
	return m, nil
}

// Get returns a member by ID.
func (l *MemberLedger) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := l.store.Members().GetByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get member", err)
	}
	return m, nil
}

// List returns all members ordered by name.
func (l *MemberLedger) List(ctx context.Context) ([]models.Member, error) {
	members, err := l.store.Members().List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list members", err)
	}
	return members, nil
}
