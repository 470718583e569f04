package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/session"
)

func TestMain(m *testing.M) {
	logger.InitHashSaltForTesting("test-salt")
	m.Run()
}

func TestNewMatcher(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name    string
		code    string
		hash    string
		wantErr bool
	}{
		{name: "plain code", code: "s3cret"},
		{name: "hash", hash: string(hash)},
		{name: "hash wins", code: "other", hash: string(hash)},
		{name: "neither", wantErr: true},
		{name: "whitespace only", code: "   ", wantErr: true},
		{name: "invalid hash", hash: "not-bcrypt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := NewMatcher(tt.code, tt.hash)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, m.Match("s3cret"))
			require.True(t, m.Match(" s3cret\n"))
			require.False(t, m.Match("S3CRET"))
			require.False(t, m.Match(""))
			require.False(t, m.Match("other"))
		})
	}
}

func TestHashCode(t *testing.T) {
	t.Parallel()

	_, err := HashCode(" ")
	require.Error(t, err)

	hash, err := HashCode("letmein")
	require.NoError(t, err)

	m, err := NewMatcher("", hash)
	require.NoError(t, err)
	require.True(t, m.Match("letmein"))
}

func TestSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	matcher, err := NewMatcher("1234", "")
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store := session.NewMemoryStore().WithNow(func() time.Time { return now })
	sessions := NewSessions(matcher, store, time.Hour)

	ok, err := sessions.IsLoggedIn(ctx, 42)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, sessions.Login(ctx, 42, "0000"), ErrInvalidCode)
	require.NoError(t, sessions.Login(ctx, 42, "1234"))

	ok, err = sessions.IsLoggedIn(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = sessions.IsLoggedIn(ctx, 43)
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(time.Hour)
	ok, err = sessions.IsLoggedIn(ctx, 42)
	require.NoError(t, err)
	require.False(t, ok, "session should expire after the ttl")

	require.NoError(t, sessions.Login(ctx, 42, "1234"))
	require.NoError(t, sessions.Logout(ctx, 42))
	ok, err = sessions.IsLoggedIn(ctx, 42)
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, sessions.Matches("1234"))
}

func TestNewSessionsDefaultTTL(t *testing.T) {
	t.Parallel()
	s := NewSessions(nil, session.NewMemoryStore(), 0)
	require.Equal(t, DefaultSessionTTL, s.ttl)
}
