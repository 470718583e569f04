package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
)

// approveRef approves a submission straight through the ledger.
func (e *testEnv) approveRef(t *testing.T, ref string) {
	t.Helper()
	ctx := context.Background()
	sub, err := e.bot.ledger.Submissions.GetByReference(ctx, ref)
	require.NoError(t, err)
	_, err = e.bot.ledger.Submissions.Approve(ctx, sub.ID, ledger.ApproveInput{Actor: "test"})
	require.NoError(t, err)
}

func TestHandleDashboardCore(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, adminChatID)
	env.approveRef(t, env.submit(t, "500 2025-03-09 0821234567 Thandi"))
	env.submit(t, "400 2025-03-05 0821234567 Thandi")

	env.bot.handleDashboardCore(context.Background(), env.tg, adminCommand("/dashboard"))

	text := env.tg.LastSentMessage().Text
	require.Contains(t, text, "Members: 1 (1 active, 0 suspended)")
	require.Contains(t, text, "Pending review: 1")
	require.Contains(t, text, "Verified: 1")
	require.Contains(t, text, "Total savings: R500.00")
	require.Contains(t, text, "Total fines: R50.00")
	require.Contains(t, text, "2025 interest pool: R50.00")
}

func TestHandleReportCore(t *testing.T) {
	ctx := context.Background()

	t.Run("current month with chart", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)
		env.approveRef(t, env.submit(t, "500 2025-03-05 0821234567 Thandi"))
		env.tg.Reset()

		env.bot.handleReportCore(ctx, env.tg, adminCommand("/report"))

		text := env.tg.LastSentMessage().Text
		require.Contains(t, text, "<b>March 2025</b>")
		require.Contains(t, text, "Verified: 1 (R500.00)")
		require.Contains(t, text, "1 of 1 members paid (100%)")

		photo := env.tg.LastSentPhoto()
		require.NotNil(t, photo)
		require.Equal(t, "report_March_2025.png", photo.Filename)
		require.Equal(t, adminChatID, photo.ChatID)
		require.Positive(t, photo.Size)
	})

	t.Run("shortfalls are listed", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)
		env.approveRef(t, env.submit(t, "100 2025-03-05 0821234567 Thandi"))

		env.bot.handleReportCore(ctx, env.tg, adminCommand("/report March 2025"))

		text := env.tg.MessagesTo(adminChatID)[0]
		require.Contains(t, text, "Below the minimum")
		require.Contains(t, text, "Thandi (0821234567): R100.00")
	})

	t.Run("empty month has no chart", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)

		env.bot.handleReportCore(ctx, env.tg, adminCommand("/report January 2024"))

		require.Contains(t, env.tg.LastSentMessage().Text, "January 2024")
		require.Nil(t, env.tg.LastSentPhoto())
	})

	t.Run("invalid month", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)

		env.bot.handleReportCore(ctx, env.tg, adminCommand("/report 2025-03"))

		require.Contains(t, env.tg.LastSentMessage().Text, "is not a month")
	})

	t.Run("chart upload failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)
		env.submit(t, payArgs)
		env.tg.SendPhotoError = errors.New("upload failed")

		env.bot.handleReportCore(ctx, env.tg, adminCommand("/report"))

		require.Contains(t, env.tg.LastSentMessage().Text, "Failed to send chart")
	})
}

func TestHandleInterestCore(t *testing.T) {
	ctx := context.Background()

	t.Run("shows the pool and eligibility", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)
		env.approveRef(t, env.submit(t, "12000 2025-03-09 0821234567 Thandi"))
		require.NoError(t, env.bot.ledger.Interest.SetBankInterest(ctx, 2025, decimal.NewFromInt(100), "test"))

		env.bot.handleInterestCore(ctx, env.tg, adminCommand("/interest"))

		text := env.tg.LastSentMessage().Text
		require.Contains(t, text, "Interest pool 2025")
		require.Contains(t, text, "Fines: R50.00")
		require.Contains(t, text, "Bank interest: R100.00")
		require.Contains(t, text, "Total: R150.00")
		require.Contains(t, text, "Eligible members: 1")
		require.Contains(t, text, "Each receives: R150.00")
		require.Contains(t, text, "• Thandi")
	})

	t.Run("explicit year and bad input", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)

		env.bot.handleInterestCore(ctx, env.tg, adminCommand("/interest 2024"))
		text := env.tg.LastSentMessage().Text
		require.Contains(t, text, "Interest pool 2024")
		require.Contains(t, text, "Eligible members: 0")
		require.NotContains(t, text, "Each receives")

		env.bot.handleInterestCore(ctx, env.tg, adminCommand("/interest next"))
		require.Contains(t, env.tg.LastSentMessage().Text, "Usage:")
	})
}

func TestHandleBankInterestCore(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, adminChatID)
	ctx := context.Background()

	env.bot.handleBankInterestCore(ctx, env.tg, adminCommand("/bankinterest 2025"))
	require.Contains(t, env.tg.LastSentMessage().Text, "Usage:")

	env.bot.handleBankInterestCore(ctx, env.tg, adminCommand("/bankinterest 2025 lots"))
	require.Contains(t, env.tg.LastSentMessage().Text, "is not an amount")

	env.bot.handleBankInterestCore(ctx, env.tg, adminCommand("/bankinterest 2025 -5"))
	require.Contains(t, env.tg.LastSentMessage().Text, "must not be negative")

	env.bot.handleBankInterestCore(ctx, env.tg, adminCommand("/bankinterest 2025 R1,234.56"))
	require.Contains(t, env.tg.LastSentMessage().Text, "set to R1234.56")

	pool, err := env.bot.ledger.Interest.Pool(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, "1234.56", pool.BankInterest.StringFixed(2))
}

func TestHandleReconcileCore(t *testing.T) {
	ctx := context.Background()

	t.Run("reports counts", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)
		env.approveRef(t, env.submit(t, payArgs))

		env.bot.handleReconcileCore(ctx, env.tg, adminCommand("/reconcile"))

		text := env.tg.LastSentMessage().Text
		require.Contains(t, text, "Reconciliation complete")
		require.Contains(t, text, "Checked: 1")
	})

	t.Run("store failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t, adminChatID)
		env.store.FailOn("members.List", errors.New("connection reset"))

		env.bot.handleReconcileCore(ctx, env.tg, adminCommand("/reconcile"))

		require.Equal(t, tryAgainMsg, env.tg.LastSentMessage().Text)
	})
}
