package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/stokvel-bot/internal/models"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
)

// handleDashboard handles the /dashboard command.
func (b *Bot) handleDashboard(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDashboardCore(ctx, tgBot, update)
}

// handleDashboardCore is the testable implementation of handleDashboard.
func (b *Bot) handleDashboardCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	d, err := b.reports.Dashboard(ctx)
	if err != nil {
		replyError(ctx, tg, chatID, err, "build dashboard")
		return
	}

	text := fmt.Sprintf(`📊 <b>Stokvel Dashboard</b>

👥 Members: %d (%d active, %d suspended)
⏳ Pending review: %d
✅ Verified: %d
❌ Rejected: %d

💰 Total savings: %s
⚠️ Total fines: %s
🏦 %d interest pool: %s`,
		d.Members, d.ActiveMembers, d.SuspendedMembers,
		d.Pending, d.Verified, d.Rejected,
		formatMoney(d.TotalSavings), formatMoney(d.TotalFines),
		d.PoolYear, formatMoney(d.InterestPool),
	)

	reply(ctx, tg, chatID, text)
}

// handleReport handles the /report command.
func (b *Bot) handleReport(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleReportCore(ctx, tgBot, update)
}

// handleReportCore sends the monthly compliance report, followed by its chart
// when there is anything to draw.
func (b *Bot) handleReportCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	month := extractCommandArgs(update.Message.Text, "/report")
	if month == "" {
		month = appmodels.FormatMonth(b.clock.Now().In(b.cfg.Location()))
	}

	r, err := b.reports.Monthly(ctx, month)
	if err != nil {
		replyError(ctx, tg, chatID, err, "build monthly report")
		return
	}

	reply(ctx, tg, chatID, formatMonthlyReport(r))

	if r.Pending+r.Verified+r.Rejected == 0 {
		return
	}

	chart, err := report.Chart(r)
	if err != nil {
		logger.Log.Error().Err(err).Str("month", r.Month).Msg("Failed to generate report chart")
		reply(ctx, tg, chatID, "❌ Failed to generate chart. Please try again.")
		return
	}

	_, err = tg.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileUpload{Filename: report.ChartFilename(r.Month), Data: bytes.NewReader(chart)},
		Caption:   fmt.Sprintf("📊 Submissions for <b>%s</b>", r.Month),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send report chart")
		reply(ctx, tg, chatID, "❌ Failed to send chart. Please try again.")
	}
}

func formatMonthlyReport(r *report.MonthlyReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>%s</b>\n\n", r.Month)
	fmt.Fprintf(&sb, "✅ Verified: %d (%s)\n", r.Verified, formatMoney(r.TotalVerified))
	fmt.Fprintf(&sb, "⏳ Pending: %d\n", r.Pending)
	fmt.Fprintf(&sb, "❌ Rejected: %d\n", r.Rejected)
	fmt.Fprintf(&sb, "⚠️ Fines: %s\n\n", formatMoney(r.TotalFines))
	fmt.Fprintf(&sb, "👥 %d of %d members paid (%.0f%%)\n", r.VerifiedSubmitters, r.TotalMembers, r.ComplianceRate*100)

	if len(r.BelowMinimum) > 0 {
		sb.WriteString("\n<b>Below the minimum:</b>\n")
		for _, s := range r.BelowMinimum {
			fmt.Fprintf(&sb, "• %s (%s): %s\n", escapeHTML(s.Name), escapeHTML(s.Phone), formatMoney(s.Paid))
		}
	}
	return sb.String()
}

// handleInterest handles the /interest command.
func (b *Bot) handleInterest(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleInterestCore(ctx, tgBot, update)
}

// handleInterestCore shows a year's pool and what each eligible member would receive.
func (b *Bot) handleInterestCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	year := b.clock.Now().In(b.cfg.Location()).Year()
	if arg := extractCommandArgs(update.Message.Text, "/interest"); arg != "" {
		y, err := strconv.Atoi(arg)
		if err != nil {
			reply(ctx, tg, chatID, "Usage: <code>/interest [year]</code>")
			return
		}
		year = y
	}

	d, err := b.ledger.Interest.ComputeDistribution(ctx, year)
	if err != nil {
		replyError(ctx, tg, chatID, err, "compute interest distribution")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏦 <b>Interest pool %d</b>\n\n", d.Year)
	fmt.Fprintf(&sb, "⚠️ Fines: %s\n", formatMoney(d.TotalFines))
	fmt.Fprintf(&sb, "🏦 Bank interest: %s\n", formatMoney(d.BankInterest))
	fmt.Fprintf(&sb, "💰 Total: %s\n\n", formatMoney(d.TotalPool))
	fmt.Fprintf(&sb, "👥 Eligible members: %d (savings of at least %s, not suspended)\n",
		d.EligibleCount(), formatMoney(b.ledger.Policy().InterestEligibilityMin))
	if d.EligibleCount() > 0 {
		fmt.Fprintf(&sb, "🎁 Each receives: %s\n", formatMoney(d.PerMemberAmount))
		for _, m := range d.EligibleMembers {
			fmt.Fprintf(&sb, "• %s\n", escapeHTML(m.Name))
		}
	}

	reply(ctx, tg, chatID, sb.String())
}

// handleBankInterest handles the /bankinterest command.
func (b *Bot) handleBankInterest(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleBankInterestCore(ctx, tgBot, update)
}

// handleBankInterestCore records the bank interest earned in a year.
func (b *Bot) handleBankInterestCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	const usage = "Usage: <code>/bankinterest &lt;year&gt; &lt;amount&gt;</code>"
	fields := strings.Fields(extractCommandArgs(update.Message.Text, "/bankinterest"))
	if len(fields) != 2 {
		reply(ctx, tg, chatID, usage)
		return
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		reply(ctx, tg, chatID, usage)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimPrefix(strings.ReplaceAll(fields[1], ",", ""), "R"))
	if err != nil {
		reply(ctx, tg, chatID, "❌ "+escapeHTML(fields[1])+" is not an amount.\n"+usage)
		return
	}

	if err := b.ledger.Interest.SetBankInterest(ctx, year, amount, actorFor(update.Message.From)); err != nil {
		replyError(ctx, tg, chatID, err, "set bank interest")
		return
	}

	reply(ctx, tg, chatID, fmt.Sprintf("🏦 Bank interest for %d set to %s.", year, formatMoney(amount)))
}

// handleReconcile handles the /reconcile command.
func (b *Bot) handleReconcile(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleReconcileCore(ctx, tgBot, update)
}

// handleReconcileCore runs a reconciliation pass on demand.
func (b *Bot) handleReconcileCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	res, err := b.ledger.Members.Reconcile(ctx)
	if err != nil {
		replyError(ctx, tg, chatID, err, "reconcile members")
		return
	}

	text := fmt.Sprintf(`🔄 <b>Reconciliation complete</b>

Checked: %d
Updated: %d
Suspended: %d
Reactivated: %d`, res.Checked, res.Updated, res.Suspended, res.Reactivated)
	if res.Conflicts > 0 {
		text += fmt.Sprintf("\nSkipped (changed during the run): %d", res.Conflicts)
	}
	reply(ctx, tg, chatID, text)
}
