package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/stokvel-bot/internal/auth"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/stokvel-bot/internal/models"
)

const (
	adminOnlyMsg          = "🔒 Admin only. Log in with <code>/login &lt;code&gt;</code>."
	pendingListLimit      = 20
	defaultRejectReason   = "Proof of payment could not be verified"
	reviewCallbackPrefix  = "review_"
	reviewApproveCallback = "review_approve_"
	reviewRejectCallback  = "review_reject_"
)

// isAdmin reports whether user has an open admin session.
func (b *Bot) isAdmin(ctx context.Context, user *models.User) bool {
	if user == nil || b.admins == nil {
		return false
	}
	ok, err := b.admins.IsLoggedIn(ctx, user.ID)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(user.ID)).Msg("Failed to check admin session")
		return false
	}
	return ok
}

// requireAdmin tells non-admins to log in and returns false.
func (b *Bot) requireAdmin(ctx context.Context, tg TelegramAPI, update *models.Update) bool {
	if update.Message == nil {
		return false
	}
	if b.isAdmin(ctx, update.Message.From) {
		return true
	}
	reply(ctx, tg, update.Message.Chat.ID, adminOnlyMsg)
	return false
}

// handleLogin handles the /login command.
func (b *Bot) handleLogin(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleLoginCore(ctx, tgBot, update)
}

// handleLoginCore is the testable implementation of handleLogin.
func (b *Bot) handleLoginCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user := update.Message.From

	code := extractCommandArgs(update.Message.Text, "/login")
	if code == "" {
		reply(ctx, tg, chatID, "Usage: <code>/login &lt;code&gt;</code>")
		return
	}

	if !b.cfg.CanBeAdmin(user.ID, user.Username) {
		logger.Log.Warn().Str("user_hash", logger.HashUserID(user.ID)).Msg("Admin login from unlisted user")
		reply(ctx, tg, chatID, "⛔ You are not allowed to administer this stokvel.")
		return
	}

	err := b.admins.Login(ctx, user.ID, code)
	switch {
	case errors.Is(err, auth.ErrInvalidCode):
		reply(ctx, tg, chatID, "❌ Invalid access code.")
	case err != nil:
		logger.Log.Error().Err(err).Msg("Failed to log in admin")
		reply(ctx, tg, chatID, tryAgainMsg)
	default:
		reply(ctx, tg, chatID, fmt.Sprintf("🔓 Logged in as admin%s. Use /pending to review submissions.", formatGreeting(user.FirstName)))
	}
}

// handleLogout handles the /logout command.
func (b *Bot) handleLogout(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleLogoutCore(ctx, tgBot, update)
}

// handleLogoutCore is the testable implementation of handleLogout.
func (b *Bot) handleLogoutCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if err := b.admins.Logout(ctx, update.Message.From.ID); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to log out admin")
		reply(ctx, tg, update.Message.Chat.ID, tryAgainMsg)
		return
	}
	reply(ctx, tg, update.Message.Chat.ID, "🔒 Logged out.")
}

// buildReviewKeyboard creates the inline keyboard for reviewing a submission.
func buildReviewKeyboard(reference string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Approve", CallbackData: reviewApproveCallback + reference},
				{Text: "❌ Reject", CallbackData: reviewRejectCallback + reference},
			},
		},
	}
}

// formatSubmissionDetail renders a submission for review.
func formatSubmissionDetail(s *appmodels.Submission) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b>\n", statusEmoji(s.Status), s.ReferenceCode)
	fmt.Fprintf(&sb, "👤 %s (%s)\n", escapeHTML(s.MemberName), escapeHTML(s.MemberPhone))
	fmt.Fprintf(&sb, "💰 %s paid %s\n", formatMoney(s.Amount), s.PaymentDate.Format("2006-01-02"))
	fmt.Fprintf(&sb, "🗓 For %s\n", escapeHTML(s.PaymentMonth))
	if s.IsLate {
		fmt.Fprintf(&sb, "⚠️ Late, fine %s\n", formatMoney(s.FineAmount))
	}
	if s.Notes != "" {
		fmt.Fprintf(&sb, "📝 %s\n", escapeHTML(s.Notes))
	}
	fmt.Fprintf(&sb, "📎 Proof: <code>%s</code>", escapeHTML(proofLabel(s.ProofRef)))
	return sb.String()
}

// proofLabel keeps inline data URLs out of chat messages.
func proofLabel(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		mediaType, _, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ";")
		return "inline " + mediaType
	}
	return ref
}

// handlePending handles the /pending command.
func (b *Bot) handlePending(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handlePendingCore(ctx, tgBot, update)
}

// handlePendingCore lists pending submissions, one message each with review buttons.
func (b *Bot) handlePendingCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	subs, err := b.ledger.Submissions.ListByStatus(ctx, appmodels.SubmissionStatusPending)
	if err != nil {
		replyError(ctx, tg, chatID, err, "list pending submissions")
		return
	}
	if len(subs) == 0 {
		reply(ctx, tg, chatID, "✅ No submissions waiting for review.")
		return
	}

	header := fmt.Sprintf("⏳ <b>%d submission(s) waiting for review</b>", len(subs))
	if len(subs) > pendingListLimit {
		header += fmt.Sprintf("\nShowing the %d newest.", pendingListLimit)
		subs = subs[:pendingListLimit]
	}
	reply(ctx, tg, chatID, header)

	for i := range subs {
		_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        formatSubmissionDetail(&subs[i]),
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: buildReviewKeyboard(subs[i].ReferenceCode),
		})
		if err != nil {
			logger.Log.Error().Err(err).Str("reference", subs[i].ReferenceCode).Msg("Failed to send pending submission")
		}
	}
}

// handleApprove handles the /approve command.
func (b *Bot) handleApprove(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleApproveCore(ctx, tgBot, update)
}

// handleApproveCore approves a submission by reference. An optional phone
// credits the existing member with that number instead of the claimed one.
func (b *Bot) handleApproveCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	fields := strings.Fields(extractCommandArgs(update.Message.Text, "/approve"))
	if len(fields) == 0 || len(fields) > 2 {
		reply(ctx, tg, chatID, "Usage: <code>/approve &lt;reference&gt; [phone]</code>")
		return
	}

	in := ledger.ApproveInput{Actor: actorFor(update.Message.From)}
	if len(fields) == 2 {
		member, err := b.ledger.Members.FindByPhone(ctx, fields[1])
		if err != nil {
			if errors.Is(err, appmodels.ErrNotFound) {
				reply(ctx, tg, chatID, "❌ No member with that phone number. Add them with /addmember first.")
				return
			}
			replyError(ctx, tg, chatID, err, "find member")
			return
		}
		in.MemberID = &member.ID
	}

	text, _ := b.approve(ctx, tg, fields[0], in)
	reply(ctx, tg, chatID, text)
}

// approve approves the submission with the given reference, notifies the
// submitter and returns the admin-facing outcome.
func (b *Bot) approve(ctx context.Context, tg TelegramAPI, reference string, in ledger.ApproveInput) (string, bool) {
	sub, err := b.ledger.Submissions.GetByReference(ctx, reference)
	if err != nil {
		logReviewError(err, reference, "approve")
		return userMessage(err), false
	}

	sub, err = b.ledger.Submissions.Approve(ctx, sub.ID, in)
	if err != nil {
		logReviewError(err, reference, "approve")
		return userMessage(err), false
	}

	b.notifySubmitter(ctx, tg, sub)

	text := fmt.Sprintf("✅ Approved <code>%s</code>: %s from %s.", sub.ReferenceCode, formatMoney(sub.Amount), escapeHTML(sub.MemberName))
	if sub.MemberID != nil {
		if member, err := b.ledger.Members.Get(ctx, *sub.MemberID); err == nil {
			text += fmt.Sprintf("\n💰 %s now has %s saved.", escapeHTML(member.Name), formatMoney(member.TotalSavings))
		}
	}
	if sub.FineAmount.IsPositive() {
		text += fmt.Sprintf("\n⚠️ Late fine of %s added to the %d interest pool.", formatMoney(sub.FineAmount), sub.Year())
	}
	return text, true
}

// handleReject handles the /reject command.
func (b *Bot) handleReject(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleRejectCore(ctx, tgBot, update)
}

// handleRejectCore is the testable implementation of handleReject.
func (b *Bot) handleRejectCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := extractCommandArgs(update.Message.Text, "/reject")
	reference, reason, _ := strings.Cut(args, " ")
	reason = strings.TrimSpace(reason)
	if reference == "" || reason == "" {
		reply(ctx, tg, chatID, "Usage: <code>/reject &lt;reference&gt; &lt;reason&gt;</code>")
		return
	}

	text, _ := b.reject(ctx, tg, reference, reason, actorFor(update.Message.From))
	reply(ctx, tg, chatID, text)
}

// reject rejects the submission with the given reference, notifies the
// submitter and returns the admin-facing outcome.
func (b *Bot) reject(ctx context.Context, tg TelegramAPI, reference, reason, actor string) (string, bool) {
	sub, err := b.ledger.Submissions.GetByReference(ctx, reference)
	if err != nil {
		logReviewError(err, reference, "reject")
		return userMessage(err), false
	}

	sub, err = b.ledger.Submissions.Reject(ctx, sub.ID, reason, actor)
	if err != nil {
		logReviewError(err, reference, "reject")
		return userMessage(err), false
	}

	b.notifySubmitter(ctx, tg, sub)
	return fmt.Sprintf("❌ Rejected <code>%s</code>: %s", sub.ReferenceCode, escapeHTML(sub.RejectionReason)), true
}

func logReviewError(err error, reference, decision string) {
	event := logger.Log.Warn()
	if !appmodels.IsDomainError(err) {
		event = logger.Log.Error()
	}
	event.Err(err).Str("reference", reference).Str("decision", decision).Msg("Review failed")
}

// handleReviewCallback handles the approve/reject buttons under /pending.
func (b *Bot) handleReviewCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleReviewCallbackCore(ctx, tgBot, update)
}

// handleReviewCallbackCore is the testable implementation of handleReviewCallback.
func (b *Bot) handleReviewCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.CallbackQuery == nil || update.CallbackQuery.Message.Message == nil {
		return
	}
	cq := update.CallbackQuery
	chatID := cq.Message.Message.Chat.ID
	messageID := cq.Message.Message.ID

	if !b.isAdmin(ctx, &cq.From) {
		_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
			Text:            "Admin only. Log in with /login first.",
			ShowAlert:       true,
		})
		return
	}

	_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	})

	var text string
	switch {
	case strings.HasPrefix(cq.Data, reviewApproveCallback):
		reference := strings.TrimPrefix(cq.Data, reviewApproveCallback)
		text, _ = b.approve(ctx, tg, reference, ledger.ApproveInput{Actor: actorFor(&cq.From)})
	case strings.HasPrefix(cq.Data, reviewRejectCallback):
		reference := strings.TrimPrefix(cq.Data, reviewRejectCallback)
		text, _ = b.reject(ctx, tg, reference, defaultRejectReason, actorFor(&cq.From))
		text += "\nUse <code>/reject &lt;reference&gt; &lt;reason&gt;</code> to give a specific reason."
	default:
		return
	}

	_, err := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to update review message")
	}
}

// notifySubmitter tells the member who submitted sub how it was decided.
func (b *Bot) notifySubmitter(ctx context.Context, tg TelegramAPI, sub *appmodels.Submission) {
	if sub.SubmitterChatID == 0 {
		return
	}

	var text string
	switch sub.Status {
	case appmodels.SubmissionStatusVerified:
		text = fmt.Sprintf("✅ Your payment <code>%s</code> of %s for %s has been approved. Thank you!",
			sub.ReferenceCode, formatMoney(sub.Amount), escapeHTML(sub.PaymentMonth))
		if sub.FineAmount.IsPositive() {
			text += fmt.Sprintf("\n⚠️ A late fine of %s was recorded.", formatMoney(sub.FineAmount))
		}
	case appmodels.SubmissionStatusRejected:
		text = fmt.Sprintf("❌ Your payment <code>%s</code> of %s was rejected: %s\n\nPlease contact an admin or submit again with /pay.",
			sub.ReferenceCode, formatMoney(sub.Amount), escapeHTML(sub.RejectionReason))
	default:
		return
	}

	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    sub.SubmitterChatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Warn().Err(err).Str("reference", sub.ReferenceCode).Msg("Failed to notify submitter")
	}
}

// handleAddMember handles the /addmember command.
func (b *Bot) handleAddMember(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleAddMemberCore(ctx, tgBot, update)
}

// handleAddMemberCore is the testable implementation of handleAddMember.
func (b *Bot) handleAddMemberCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := extractCommandArgs(update.Message.Text, "/addmember")
	phone, name, _ := strings.Cut(args, " ")
	name = strings.TrimSpace(name)
	if phone == "" || name == "" {
		reply(ctx, tg, chatID, "Usage: <code>/addmember &lt;phone&gt; &lt;name&gt;</code>")
		return
	}

	member, err := b.ledger.Members.Create(ctx, ledger.CreateMemberInput{
		Name:  name,
		Phone: phone,
		Actor: actorFor(update.Message.From),
	})
	if err != nil {
		replyError(ctx, tg, chatID, err, "add member")
		return
	}

	reply(ctx, tg, chatID, fmt.Sprintf("👤 Added <b>%s</b> (%s).", escapeHTML(member.Name), escapeHTML(member.Phone)))
}

// handleMembers handles the /members command.
func (b *Bot) handleMembers(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleMembersCore(ctx, tgBot, update)
}

// handleMembersCore is the testable implementation of handleMembers.
func (b *Bot) handleMembersCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if !b.requireAdmin(ctx, tg, update) {
		return
	}
	chatID := update.Message.Chat.ID

	members, err := b.ledger.Members.List(ctx)
	if err != nil {
		replyError(ctx, tg, chatID, err, "list members")
		return
	}
	if len(members) == 0 {
		reply(ctx, tg, chatID, "No members yet. Add one with /addmember or approve a submission.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 <b>Members (%d)</b>\n\n", len(members))
	for _, m := range members {
		icon := "🟢"
		if !m.IsActive() {
			icon = "🔴"
		}
		fmt.Fprintf(&sb, "%s %s (%s): %s saved, %s fines", icon, escapeHTML(m.Name), escapeHTML(m.Phone),
			formatMoney(m.TotalSavings), formatMoney(m.TotalFines))
		if m.SkippedMonths > 0 {
			fmt.Fprintf(&sb, ", %d skipped", m.SkippedMonths)
		}
		sb.WriteString("\n")
	}

	reply(ctx, tg, chatID, sb.String())
}
