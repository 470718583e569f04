// Package bot provides the Telegram surface of the stokvel: member submissions and admin review.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/stokvel-bot/internal/auth"
	"gitlab.com/yelinaung/stokvel-bot/internal/blob"
	"gitlab.com/yelinaung/stokvel-bot/internal/config"
	"gitlab.com/yelinaung/stokvel-bot/internal/gemini"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
	"gitlab.com/yelinaung/stokvel-bot/internal/session"
)

// DownloadTimeout bounds fetching a proof of payment from Telegram.
const DownloadTimeout = 30 * time.Second

// ProofParser reads payment details off a proof-of-payment image.
type ProofParser interface {
	ParseProof(ctx context.Context, image []byte, mimeType string) (*gemini.ProofData, error)
}

// Deps are the services the bot drives.
type Deps struct {
	Ledger   *ledger.Ledger
	Reports  *report.Service
	Blobs    blob.Store
	Sessions session.Store
	Admins   *auth.Sessions
	// Proofs is optional. Without it a photo sent with no draft only gets instructions.
	Proofs ProofParser
	Clock  policy.Clock
}

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot        *bot.Bot
	cfg        *config.Config
	ledger     *ledger.Ledger
	reports    *report.Service
	blobs      blob.Store
	sessions   session.Store
	admins     *auth.Sessions
	proofs     ProofParser
	clock      policy.Clock
	httpClient *http.Client
	// messageSender is used by background loops that have no update to reply to.
	messageSender TelegramAPI
}

func newBot(cfg *config.Config, deps Deps) *Bot {
	clock := deps.Clock
	if clock == nil {
		clock = policy.SystemClock{}
	}
	return &Bot{
		cfg:        cfg,
		ledger:     deps.Ledger,
		reports:    deps.Reports,
		blobs:      deps.Blobs,
		sessions:   deps.Sessions,
		admins:     deps.Admins,
		proofs:     deps.Proofs,
		clock:      clock,
		httpClient: &http.Client{Timeout: DownloadTimeout},
	}
}

// New creates a new Bot instance.
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	b := newBot(cfg, deps)

	opts := []bot.Option{
		bot.WithMiddlewares(b.logMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.messageSender = telegramBot
	b.registerHandlers()

	return b, nil
}

// Start begins polling for updates and runs the review reminder loop until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	go b.startReviewReminderLoop(ctx)

	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

// registerHandlers sets up command handlers.
func (b *Bot) registerHandlers() {
	text := func(pattern string, h bot.HandlerFunc) {
		b.bot.RegisterHandler(bot.HandlerTypeMessageText, pattern, bot.MatchTypePrefix, h)
	}

	text("/start", b.handleStart)
	text("/help", b.handleHelp)
	text("/pay", b.handlePay)
	text("/cancel", b.handleCancel)
	text("/status", b.handleStatus)

	text("/login", b.handleLogin)
	text("/logout", b.handleLogout)
	text("/pending", b.handlePending)
	text("/approve", b.handleApprove)
	text("/reject", b.handleReject)
	text("/addmember", b.handleAddMember)
	text("/members", b.handleMembers)
	text("/dashboard", b.handleDashboard)
	text("/report", b.handleReport)
	text("/interest", b.handleInterest)
	text("/bankinterest", b.handleBankInterest)
	text("/reconcile", b.handleReconcile)

	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, reviewCallbackPrefix, bot.MatchTypePrefix, b.handleReviewCallback)
}

// logMiddleware logs each update with hashed identifiers before handling it.
func (b *Bot) logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		userID := extractUserID(update)
		if userID == 0 {
			return
		}

		logUserAction(userID, update)
		next(ctx, tgBot, update)
	}
}

// logUserAction logs the user's input/action.
func logUserAction(userID int64, update *models.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		event := logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("chat_hash", logger.HashChatID(msg.Chat.ID))

		if msg.Text != "" {
			event = event.Str("command", commandWord(msg.Text))
		}
		if len(msg.Photo) > 0 {
			event = event.Str("type", "photo")
		}
		if msg.Document != nil {
			event = event.Str("type", "document").Str("mime", msg.Document.MimeType)
		}

		event.Msg("User input")

	case update.CallbackQuery != nil:
		logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("data", update.CallbackQuery.Data).
			Msg("Callback query")
	}
}

// extractUserID gets the user ID from various update types.
func extractUserID(update *models.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

// defaultHandler routes proofs of payment and answers anything else with a hint.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.defaultHandlerCore(ctx, tgBot, update)
}

func (b *Bot) defaultHandlerCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	if len(update.Message.Photo) > 0 || update.Message.Document != nil {
		b.handleProofCore(ctx, tg, update)
		return
	}

	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      "I didn't understand that. Use /help to see available commands, or start a payment with <code>/pay</code>.",
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send default response")
	}
}
