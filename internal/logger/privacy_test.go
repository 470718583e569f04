package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

func TestHashUserID(t *testing.T) {
	t.Run("produces consistent hash for same user ID", func(t *testing.T) {
		require.Equal(t, HashUserID(12345), HashUserID(12345))
	})

	t.Run("produces different hashes for different user IDs", func(t *testing.T) {
		require.NotEqual(t, HashUserID(12345), HashUserID(67890))
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		require.Len(t, HashUserID(12345), 8)
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashUserID(12345)
		hashSalt = "different-salt"
		hash2 := HashUserID(12345)

		require.NotEqual(t, hash1, hash2)
	})
}

func TestHashChatID(t *testing.T) {
	t.Run("matches user hash for the same number", func(t *testing.T) {
		require.Equal(t, HashUserID(42), HashChatID(42))
	})

	t.Run("produces different hashes for different chat IDs", func(t *testing.T) {
		require.NotEqual(t, HashChatID(12345), HashChatID(67890))
	})
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{name: "empty", phone: "", want: "<empty>"},
		{name: "short", phone: "12", want: "**"},
		{name: "exactly three", phone: "123", want: "***"},
		{name: "local number", phone: "0821234567", want: "*******567"},
		{name: "international", phone: "+27821234567", want: "*********567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MaskPhone(tt.phone))
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Run("redacts empty text", func(t *testing.T) {
		require.Equal(t, "<empty>", SanitizeText(""))
	})

	t.Run("hides short text entirely", func(t *testing.T) {
		require.Equal(t, "<5 chars>", SanitizeText("hello"))
	})

	t.Run("shows prefix of long text", func(t *testing.T) {
		require.Equal(t, "sav...<15 chars>", SanitizeText("savings for may"))
	})
}
