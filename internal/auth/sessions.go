package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/session"
)

// DefaultSessionTTL is how long an admin stays logged in.
const DefaultSessionTTL = 12 * time.Hour

// Sessions tracks which Telegram users have logged in with the access code.
type Sessions struct {
	matcher *Matcher
	store   session.Store
	ttl     time.Duration
}

// NewSessions creates admin sessions backed by store.
func NewSessions(matcher *Matcher, store session.Store, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{matcher: matcher, store: store, ttl: ttl}
}

func sessionKey(userID int64) string {
	return "admin:" + strconv.FormatInt(userID, 10)
}

// Login opens a session for userID when code matches.
func (s *Sessions) Login(ctx context.Context, userID int64, code string) error {
	if !s.matcher.Match(code) {
		logger.Log.Warn().Str("user_hash", logger.HashUserID(userID)).Msg("Admin login failed")
		return ErrInvalidCode
	}
	if err := s.store.Set(ctx, sessionKey(userID), time.Now().UTC().Format(time.RFC3339), s.ttl); err != nil {
		return fmt.Errorf("failed to open admin session: %w", err)
	}
	logger.Log.Info().Str("user_hash", logger.HashUserID(userID)).Msg("Admin logged in")
	return nil
}

// Logout ends userID's session.
func (s *Sessions) Logout(ctx context.Context, userID int64) error {
	if err := s.store.Remove(ctx, sessionKey(userID)); err != nil {
		return fmt.Errorf("failed to close admin session: %w", err)
	}
	return nil
}

// IsLoggedIn reports whether userID has an open session.
func (s *Sessions) IsLoggedIn(ctx context.Context, userID int64) (bool, error) {
	_, ok, err := s.store.Get(ctx, sessionKey(userID))
	if err != nil {
		return false, fmt.Errorf("failed to check admin session: %w", err)
	}
	return ok, nil
}

// Matches reports whether code is the admin access code, without opening a session.
func (s *Sessions) Matches(code string) bool {
	return s.matcher.Match(code)
}
