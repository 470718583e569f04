package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

func TestMemberCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("starts with zero aggregates", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		m, err := h.ledger.Members.Create(ctx, ledger.CreateMemberInput{Name: " Thandi ", Phone: "082 123 4567", Actor: "admin"})
		require.NoError(t, err)
		require.Equal(t, "Thandi", m.Name)
		require.Equal(t, "0821234567", m.Phone)
		require.True(t, m.TotalSavings.IsZero())
		require.True(t, m.TotalFines.IsZero())
		require.Zero(t, m.VerifiedCount)
		require.Zero(t, m.SkippedMonths)
		require.True(t, m.IsActive())
		require.Equal(t, testNow, m.CreatedAt)

		found, err := h.ledger.Members.FindByPhone(ctx, "082-123-4567")
		require.NoError(t, err)
		require.Equal(t, m.ID, found.ID)

		require.Equal(t, []string{models.AuditMemberCreated}, h.audit.Actions())
		require.Equal(t, "admin", h.audit.Entries()[0].Actor)
	})

	t.Run("duplicate phone is a validation error", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.ledger.Members.Create(ctx, ledger.CreateMemberInput{Name: "Thandi", Phone: "0821234567"})
		require.NoError(t, err)

		_, err = h.ledger.Members.Create(ctx, ledger.CreateMemberInput{Name: "Someone Else", Phone: "082 123 4567"})
		require.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("name and phone are required", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.ledger.Members.Create(ctx, ledger.CreateMemberInput{Phone: "0821234567"})
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = h.ledger.Members.Create(ctx, ledger.CreateMemberInput{Name: "Thandi", Phone: "n/a"})
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestMemberQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness()

	for _, in := range []ledger.CreateMemberInput{
		{Name: "Zanele", Phone: "0820000003"},
		{Name: "ayanda", Phone: "0820000001"},
		{Name: "Bongani", Phone: "0820000002"},
	} {
		_, err := h.ledger.Members.Create(ctx, in)
		require.NoError(t, err)
	}

	members, err := h.ledger.Members.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	require.Equal(t, "ayanda", members[0].Name)
	require.Equal(t, "Bongani", members[1].Name)
	require.Equal(t, "Zanele", members[2].Name)

	_, err = h.ledger.Members.FindByPhone(ctx, "0829999999")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = h.ledger.Members.FindByPhone(ctx, "")
	require.ErrorIs(t, err, models.ErrValidation)

	got, err := h.ledger.Members.Get(ctx, members[1].ID)
	require.NoError(t, err)
	require.Equal(t, "Bongani", got.Name)
}
