package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/stokvel-bot/internal/blob"
	"gitlab.com/yelinaung/stokvel-bot/internal/gemini"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// DraftTTL is how long a half-finished payment waits for its other half.
const DraftTTL = 30 * time.Minute

const (
	payUsage = "Usage: <code>/pay &lt;amount&gt; &lt;date&gt; &lt;phone&gt; &lt;name&gt; [for &lt;Month YYYY&gt;]</code>\n" +
		"Example: <code>/pay 500 2025-03-05 0821234567 Thandi Mokoena</code>"
	recentSubmissionLimit = 5
)

func draftKey(chatID int64) string {
	return "draft:" + strconv.FormatInt(chatID, 10)
}

func proofKey(chatID int64) string {
	return "proof:" + strconv.FormatInt(chatID, 10)
}

// attachment describes a proof of payment sent as a photo or document.
type attachment struct {
	FileID   string
	Filename string
	MimeType string
	Size     int64
}

// attachmentFrom returns the proof attached to msg, or nil.
func attachmentFrom(msg *models.Message) *attachment {
	if n := len(msg.Photo); n > 0 {
		largest := msg.Photo[n-1]
		return &attachment{
			FileID:   largest.FileID,
			Filename: largest.FileUniqueID + ".jpg",
			MimeType: "image/jpeg",
			Size:     int64(largest.FileSize),
		}
	}
	if msg.Document != nil {
		return &attachment{
			FileID:   msg.Document.FileID,
			Filename: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     msg.Document.FileSize,
		}
	}
	return nil
}

func (a *attachment) supported() bool {
	return strings.HasPrefix(a.MimeType, "image/") || a.MimeType == "application/pdf"
}

// handlePay handles the /pay command.
func (b *Bot) handlePay(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handlePayCore(ctx, tgBot, update)
}

// handlePayCore records the member's claim. If a proof is already waiting the
// submission is made straight away; otherwise the claim waits for the proof.
func (b *Bot) handlePayCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := extractCommandArgs(update.Message.Text, "/pay")
	if args == "" {
		reply(ctx, tg, chatID, "💳 "+payUsage)
		return
	}

	claim, err := parsePaymentClaim(args)
	if err != nil {
		reply(ctx, tg, chatID, "❌ "+escapeHTML(err.Error())+"\n\n"+payUsage)
		return
	}

	proofRef, ok, err := b.sessions.Get(ctx, proofKey(chatID))
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load waiting proof")
		reply(ctx, tg, chatID, tryAgainMsg)
		return
	}
	if ok {
		if b.submitClaim(ctx, tg, chatID, claim, proofRef) {
			_ = b.sessions.Remove(ctx, proofKey(chatID))
		}
		return
	}

	raw, err := json.Marshal(claim)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to encode payment draft")
		reply(ctx, tg, chatID, tryAgainMsg)
		return
	}
	if err := b.sessions.Set(ctx, draftKey(chatID), string(raw), DraftTTL); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to save payment draft")
		reply(ctx, tg, chatID, tryAgainMsg)
		return
	}

	reply(ctx, tg, chatID, fmt.Sprintf(`📝 <b>Payment noted</b>

%s

Now send a photo or PDF of your proof of payment. Use /cancel to start over.`, formatClaim(claim)))
}

// loadDraft returns the claim waiting for chatID's proof, if any.
func (b *Bot) loadDraft(ctx context.Context, chatID int64) (*PaymentClaim, error) {
	raw, ok, err := b.sessions.Get(ctx, draftKey(chatID))
	if err != nil || !ok {
		return nil, err
	}
	var claim PaymentClaim
	if err := json.Unmarshal([]byte(raw), &claim); err != nil {
		logger.Log.Warn().Err(err).Msg("Discarding unreadable payment draft")
		_ = b.sessions.Remove(ctx, draftKey(chatID))
		return nil, nil
	}
	return &claim, nil
}

// handleCancel handles the /cancel command.
func (b *Bot) handleCancel(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCancelCore(ctx, tgBot, update)
}

// handleCancelCore is the testable implementation of handleCancel.
func (b *Bot) handleCancelCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	_, hadDraft, _ := b.sessions.Get(ctx, draftKey(chatID))
	_, hadProof, _ := b.sessions.Get(ctx, proofKey(chatID))
	if err := errors.Join(b.sessions.Remove(ctx, draftKey(chatID)), b.sessions.Remove(ctx, proofKey(chatID))); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to clear payment draft")
		reply(ctx, tg, chatID, tryAgainMsg)
		return
	}

	if !hadDraft && !hadProof {
		reply(ctx, tg, chatID, "Nothing to cancel.")
		return
	}
	reply(ctx, tg, chatID, "🗑 Payment discarded. Start again with /pay.")
}

// handleProofCore handles a photo or document sent as proof of payment.
func (b *Bot) handleProofCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	att := attachmentFrom(msg)
	if att == nil {
		return
	}
	if !att.supported() {
		reply(ctx, tg, chatID, "❌ Please send the proof as a photo, image or PDF.")
		return
	}
	if att.Size > blob.MaxSize {
		reply(ctx, tg, chatID, fmt.Sprintf("❌ That file is too large. The limit is %d MB.", blob.MaxSize>>20))
		return
	}

	var claim *PaymentClaim
	if caption := strings.TrimSpace(msg.Caption); strings.HasPrefix(caption, "/pay") {
		c, err := parsePaymentClaim(extractCommandArgs(caption, "/pay"))
		if err != nil {
			reply(ctx, tg, chatID, "❌ "+escapeHTML(err.Error())+"\n\n"+payUsage)
			return
		}
		claim = c
	} else {
		c, err := b.loadDraft(ctx, chatID)
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to load payment draft")
			reply(ctx, tg, chatID, tryAgainMsg)
			return
		}
		claim = c
	}

	data, err := b.download(ctx, tg, att.FileID)
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to download proof")
		if errors.Is(err, blob.ErrTooLarge) {
			reply(ctx, tg, chatID, fmt.Sprintf("❌ That file is too large. The limit is %d MB.", blob.MaxSize>>20))
			return
		}
		reply(ctx, tg, chatID, "❌ Failed to download your proof. Please try again.")
		return
	}

	proofRef, err := b.blobs.Put(ctx, data, blob.Metadata{Filename: att.Filename, ContentType: att.MimeType})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to store proof")
		reply(ctx, tg, chatID, "❌ Failed to save your proof. Please try again.")
		return
	}

	if claim == nil {
		b.holdProof(ctx, tg, chatID, proofRef, data, att.MimeType)
		return
	}

	if b.submitClaim(ctx, tg, chatID, claim, proofRef) {
		_ = b.sessions.Remove(ctx, draftKey(chatID))
	}
}

// holdProof keeps a proof that arrived before its /pay command and, when the
// proof can be read, suggests the command to send.
func (b *Bot) holdProof(ctx context.Context, tg TelegramAPI, chatID int64, proofRef string, data []byte, mimeType string) {
	if err := b.sessions.Set(ctx, proofKey(chatID), proofRef, DraftTTL); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to hold proof")
		reply(ctx, tg, chatID, tryAgainMsg)
		return
	}

	text := "📎 <b>Proof received.</b>\n\nNow tell me about the payment:\n" + payUsage
	if suggestion := b.suggestPayCommand(ctx, chatID, data, mimeType); suggestion != "" {
		text += "\n\nFrom your proof it looks like:\n" + suggestion
	}
	reply(ctx, tg, chatID, text)
}

// suggestPayCommand reads the proof and drafts a /pay command from it.
// It returns "" when no reader is configured or nothing useful was found.
func (b *Bot) suggestPayCommand(ctx context.Context, chatID int64, data []byte, mimeType string) string {
	if b.proofs == nil || !strings.HasPrefix(mimeType, "image/") {
		return ""
	}

	proof, err := b.proofs.ParseProof(ctx, data, mimeType)
	if err != nil {
		if errors.Is(err, gemini.ErrParseTimeout) || errors.Is(err, gemini.ErrNoData) {
			logger.Log.Info().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Proof not readable")
		} else {
			logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to parse proof")
		}
		return ""
	}
	if !proof.HasAmount() {
		return ""
	}

	date := "&lt;date&gt;"
	if proof.HasDate() {
		date = proof.Date.Format("2006-01-02")
	}
	name := "&lt;name&gt;"
	if proof.Payer != "" {
		name = escapeHTML(proof.Payer)
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Str("amount", proof.Amount.String()).
		Float64("confidence", proof.Confidence).
		Msg("Proof parsed")

	return fmt.Sprintf("<code>/pay %s %s &lt;phone&gt; %s</code>", proof.Amount.StringFixed(2), date, name)
}

// submitClaim records the submission and reports back. It returns true when
// the submission was recorded.
func (b *Bot) submitClaim(ctx context.Context, tg TelegramAPI, chatID int64, claim *PaymentClaim, proofRef string) bool {
	sub, err := b.ledger.Submissions.Submit(ctx, ledger.SubmitInput{
		MemberName:      claim.Name,
		MemberPhone:     claim.Phone,
		Amount:          claim.Amount,
		PaymentDate:     claim.PaymentDate,
		PaymentMonth:    claim.PaymentMonth,
		ProofRef:        proofRef,
		SubmitterChatID: chatID,
	})
	if err != nil {
		replyError(ctx, tg, chatID, err, "submit payment")
		return false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ <b>Submission received</b>\n\nReference: <code>%s</code>\n%s\n", sub.ReferenceCode, formatClaim(claim))
	if sub.IsLate {
		fmt.Fprintf(&sb, "\n⚠️ Paid after day %d of the month, so a late fine of %s will be added.\n",
			b.ledger.Policy().GracePeriodEndDay, formatMoney(sub.FineAmount))
	}
	if sub.Amount.LessThan(b.ledger.Policy().MinDeposit) {
		fmt.Fprintf(&sb, "\n⚠️ This is below the minimum contribution of %s.\n", formatMoney(b.ledger.Policy().MinDeposit))
	}
	sb.WriteString("\nAn admin will review it. I'll let you know the outcome.")

	reply(ctx, tg, chatID, sb.String())
	return true
}

// download fetches a Telegram file, refusing anything over blob.MaxSize.
func (b *Bot) download(ctx context.Context, tg TelegramAPI, fileID string) ([]byte, error) {
	file, err := tg.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tg.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, blob.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > blob.MaxSize {
		return nil, blob.ErrTooLarge
	}
	return data, nil
}

// handleStatus handles the /status command.
func (b *Bot) handleStatus(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStatusCore(ctx, tgBot, update)
}

// handleStatusCore shows a member's standing. Members only see submissions
// made from their own chat; admins see everything.
func (b *Bot) handleStatusCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	phone := extractCommandArgs(update.Message.Text, "/status")
	if phone == "" {
		reply(ctx, tg, chatID, "Usage: <code>/status &lt;phone&gt;</code>")
		return
	}

	subs, err := b.ledger.Submissions.ListByPhone(ctx, phone)
	if err != nil {
		replyError(ctx, tg, chatID, err, "list submissions")
		return
	}

	isAdmin := b.isAdmin(ctx, update.Message.From)
	visible := subs[:0:0]
	for _, s := range subs {
		if isAdmin || s.SubmitterChatID == chatID {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		reply(ctx, tg, chatID, "No submissions from this chat for that phone number.")
		return
	}

	var sb strings.Builder
	member, err := b.ledger.Members.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		fmt.Fprintf(&sb, "👤 <b>%s</b> (%s)\n", escapeHTML(member.Name), member.Status)
		fmt.Fprintf(&sb, "💰 Savings: %s\n", formatMoney(member.TotalSavings))
		fmt.Fprintf(&sb, "⚠️ Fines: %s\n", formatMoney(member.TotalFines))
		fmt.Fprintf(&sb, "✅ Verified payments: %d\n", member.VerifiedCount)
		if member.SkippedMonths > 0 {
			fmt.Fprintf(&sb, "⏭ Months skipped in a row: %d\n", member.SkippedMonths)
		}
	case errors.Is(err, appmodels.ErrNotFound):
		sb.WriteString("👤 Not a member yet. Your first approved payment registers you.\n")
	default:
		replyError(ctx, tg, chatID, err, "find member")
		return
	}

	sb.WriteString("\n<b>Recent submissions:</b>\n")
	for i, s := range visible {
		if i == recentSubmissionLimit {
			break
		}
		sb.WriteString(formatSubmissionLine(&s))
		sb.WriteString("\n")
	}

	reply(ctx, tg, chatID, sb.String())
}

func statusEmoji(s appmodels.SubmissionStatus) string {
	switch s {
	case appmodels.SubmissionStatusVerified:
		return "✅"
	case appmodels.SubmissionStatusRejected:
		return "❌"
	default:
		return "⏳"
	}
}

// formatSubmissionLine renders a one-line summary of a submission.
func formatSubmissionLine(s *appmodels.Submission) string {
	line := fmt.Sprintf("%s <code>%s</code> %s for %s (%s)",
		statusEmoji(s.Status), s.ReferenceCode, formatMoney(s.Amount), escapeHTML(s.PaymentMonth), s.Status)
	if s.Status == appmodels.SubmissionStatusRejected && s.RejectionReason != "" {
		line += ": " + escapeHTML(s.RejectionReason)
	}
	return line
}
