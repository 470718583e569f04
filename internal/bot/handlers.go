package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/stokvel-bot/internal/models"
)

const (
	tryAgainMsg  = "❌ Something went wrong on our side. Please try again in a moment."
	notFoundMsg  = "❌ Not found. Check the reference code and try again."
	reviewedMsg  = "⚠️ That submission has already been reviewed."
	currencySign = "R"
)

// extractCommandArgs strips the /command prefix (and optional @botname suffix)
// from a message and returns the remaining trimmed arguments.
func extractCommandArgs(text, command string) string {
	args := strings.TrimSpace(strings.TrimPrefix(text, command))
	if strings.HasPrefix(args, "@") {
		if spaceIdx := strings.Index(args, " "); spaceIdx != -1 {
			args = strings.TrimSpace(args[spaceIdx:])
		} else {
			args = ""
		}
	}
	return args
}

// commandWord returns the leading /command of text without arguments or @botname.
func commandWord(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	return word
}

// formatGreeting returns a greeting suffix with the user's name.
func formatGreeting(firstName string) string {
	if firstName == "" {
		return ""
	}
	return ", " + escapeHTML(firstName)
}

// escapeHTML escapes special HTML characters for Telegram HTML parse mode.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// formatMoney renders an amount in rand, e.g. R1250.00.
func formatMoney(d decimal.Decimal) string {
	return currencySign + d.StringFixed(2)
}

// actorFor names a Telegram user in the audit trail.
func actorFor(user *models.User) string {
	if user == nil {
		return "telegram:unknown"
	}
	if user.Username != "" {
		return "telegram:@" + user.Username
	}
	return "telegram:" + strconv.FormatInt(user.ID, 10)
}

// userMessage turns a ledger error into something safe to show in chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, appmodels.ErrValidation):
		msg := err.Error()
		if _, detail, ok := strings.Cut(msg, appmodels.ErrValidation.Error()+": "); ok {
			msg = detail
		}
		return "❌ " + escapeHTML(msg)
	case errors.Is(err, appmodels.ErrInvalidStateTransition):
		return reviewedMsg
	case errors.Is(err, appmodels.ErrNotFound):
		return notFoundMsg
	default:
		return tryAgainMsg
	}
}

// reply sends an HTML message to chatID, logging failures.
func reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to send message")
	}
}

// replyError logs err and tells the user what went wrong.
func replyError(ctx context.Context, tg TelegramAPI, chatID int64, err error, action string) {
	event := logger.Log.Warn()
	if !appmodels.IsDomainError(err) {
		event = logger.Log.Error()
	}
	event.Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to " + action)

	reply(ctx, tg, chatID, userMessage(err))
}

// handleStart handles the /start command.
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStartCore(ctx, tgBot, update)
}

// handleStartCore is the testable implementation of handleStart.
func (b *Bot) handleStartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	firstName := ""
	if update.Message.From != nil {
		firstName = update.Message.From.FirstName
	}

	p := b.ledger.Policy()
	text := fmt.Sprintf(`👋 Welcome%s!

I record stokvel contributions and keep the books straight.

<b>Paying your contribution:</b>
1. Send <code>/pay &lt;amount&gt; &lt;date&gt; &lt;phone&gt; &lt;name&gt;</code>
   e.g. <code>/pay 500 2025-03-05 0821234567 Thandi Mokoena</code>
2. Send a photo or PDF of your proof of payment.

You'll get a reference code to quote if you ask about it.

<b>Rules:</b>
• Minimum contribution: %s
• Pay by day %d of the month, after that a %s fine applies

Use /help to see all available commands.`,
		formatGreeting(firstName),
		formatMoney(p.MinDeposit),
		p.GracePeriodEndDay,
		formatMoney(p.LateFineAmount),
	)

	logger.Log.Debug().Str("chat_hash", logger.HashChatID(update.Message.Chat.ID)).Msg("Sending /start response")
	reply(ctx, tg, update.Message.Chat.ID, text)
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelpCore(ctx, tgBot, update)
}

// handleHelpCore is the testable implementation of handleHelp.
func (b *Bot) handleHelpCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	text := `📖 <b>Available Commands</b>

<b>Members:</b>
/pay &lt;amount&gt; &lt;date&gt; &lt;phone&gt; &lt;name&gt; [for &lt;Month YYYY&gt;] - Start a payment submission
/cancel - Discard a payment you haven't finished
/status &lt;phone&gt; - Your totals and recent submissions

Dates can be written as <code>2025-03-05</code> or <code>05/03/2025</code>.
Add <code>for March 2025</code> when paying for a different month than the payment date.
You can also send the proof with the /pay command as its caption.

<b>Admins:</b>
/login &lt;code&gt; - Log in with the admin access code
/logout - End your admin session
/pending - Submissions waiting for review
/approve &lt;ref&gt; [phone] - Approve, optionally crediting the member with that phone
/reject &lt;ref&gt; &lt;reason&gt; - Reject with a reason
/addmember &lt;phone&gt; &lt;name&gt; - Register a member
/members - List members
/dashboard - Totals at a glance
/report [Month YYYY] - Monthly compliance report with chart
/interest [year] - Interest pool and payout per member
/bankinterest &lt;year&gt; &lt;amount&gt; - Record bank interest for a year
/reconcile - Recount skipped months and suspensions`

	reply(ctx, tg, update.Message.Chat.ID, text)
}
