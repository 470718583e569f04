package bot

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/stokvel-bot/internal/models"
)

const (
	// ReminderCheckInterval is how often the reminder loop checks whether to send reminders.
	ReminderCheckInterval = 30 * time.Minute
	// ReminderTimeout is the maximum time a single reminder check can take.
	ReminderTimeout = 2 * time.Minute
)

// startReviewReminderLoop nudges listed admins once a day while submissions wait for review.
func (b *Bot) startReviewReminderLoop(ctx context.Context) {
	if !b.cfg.ReviewReminderEnabled {
		logger.Log.Info().Msg("Review reminder is disabled")
		return
	}
	if len(b.cfg.AdminUserIDs) == 0 {
		logger.Log.Warn().Msg("Review reminder enabled but ADMIN_USER_IDS is empty, disabling reminders")
		return
	}

	loc := b.cfg.Location()
	logger.Log.Info().
		Int("hour", b.cfg.ReviewReminderHour).
		Str("timezone", loc.String()).
		Msg("Review reminder loop started")

	reminded := make(map[int64]string)
	ticker := time.NewTicker(ReminderCheckInterval)
	defer ticker.Stop()

	// Run one check immediately so reminders aren't skipped when the process
	// starts during the configured reminder hour.
	b.checkAndSendReviewReminders(ctx, reminded, b.clock.Now().In(loc))

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("Review reminder loop stopped")
			return
		case <-ticker.C:
			b.checkAndSendReviewReminders(ctx, reminded, b.clock.Now().In(loc))
		}
	}
}

// checkAndSendReviewReminders messages each listed admin once per day, during
// the reminder hour, if anything is pending. reminded tracks who has been told today.
func (b *Bot) checkAndSendReviewReminders(ctx context.Context, reminded map[int64]string, now time.Time) {
	if now.Hour() != b.cfg.ReviewReminderHour {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, ReminderTimeout)
	defer cancel()

	todayStr := now.Format("2006-01-02")

	// Prune entries from previous days so the map doesn't grow unbounded.
	for uid, dateStr := range reminded {
		if dateStr != todayStr {
			delete(reminded, uid)
		}
	}

	pending, err := b.ledger.Submissions.ListByStatus(checkCtx, appmodels.SubmissionStatusPending)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to fetch pending submissions for review reminder")
		return
	}
	if len(pending) == 0 {
		return
	}

	oldest := pending[len(pending)-1].SubmittedAt
	text := fmt.Sprintf("⏳ %d submission(s) are waiting for review, the oldest since %s.\n\nUse /pending to review them.",
		len(pending), oldest.In(now.Location()).Format("2 Jan 15:04"))

	for _, adminID := range b.cfg.AdminUserIDs {
		if reminded[adminID] == todayStr {
			continue
		}

		_, err := b.messageSender.SendMessage(checkCtx, &tgbot.SendMessageParams{
			ChatID:    adminID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			logger.Log.Warn().Err(err).Str("user_hash", logger.HashUserID(adminID)).Msg("Failed to send review reminder")
			continue
		}

		reminded[adminID] = todayStr
		logger.Log.Debug().Str("user_hash", logger.HashUserID(adminID)).Msg("Sent review reminder")
	}
}
