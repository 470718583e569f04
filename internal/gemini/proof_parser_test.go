package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseProofResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     *ProofData
		wantErr  bool
	}{
		{
			name:     "complete response",
			response: `{"amount": "300.00", "date": "2025-03-05", "reference": "TRF-7KQ2MX", "bank": "Capitec", "payer": "T Mokoena", "confidence": 0.92}`,
			want: &ProofData{
				Amount:     decimal.NewFromInt(300),
				Date:       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
				Reference:  "TRF-7KQ2MX",
				Bank:       "Capitec",
				Payer:      "T Mokoena",
				Confidence: 0.92,
			},
		},
		{
			name:     "markdown fenced with rand symbol",
			response: "```json\n{\"amount\": \"R 1,250.50\", \"date\": \"2025-02-28\", \"reference\": \"\", \"bank\": \"FNB\", \"payer\": \"\", \"confidence\": 0.7}\n```",
			want: &ProofData{
				Amount:     decimal.RequireFromString("1250.50"),
				Date:       time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
				Bank:       "FNB",
				Confidence: 0.7,
			},
		},
		{
			name:     "chatter around the object",
			response: `Here you go: {"amount": "500", "date": "bad", "reference": " abc ", "bank": "", "payer": "", "confidence": 0.4} thanks`,
			want: &ProofData{
				Amount:     decimal.NewFromInt(500),
				Reference:  "abc",
				Confidence: 0.4,
			},
		},
		{
			name:     "invalid json",
			response: `not json`,
			wantErr:  true,
		},
		{
			name:     "invalid amount",
			response: `{"amount": "three hundred"}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseProofResponse(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.want.Amount.Equal(got.Amount), "amount: want %s got %s", tt.want.Amount, got.Amount)
			require.Equal(t, tt.want.Date, got.Date)
			require.Equal(t, tt.want.Reference, got.Reference)
			require.Equal(t, tt.want.Bank, got.Bank)
			require.Equal(t, tt.want.Payer, got.Payer)
			require.InDelta(t, tt.want.Confidence, got.Confidence, 0.0001)
		})
	}
}

func TestParseProof(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns extracted data", func(t *testing.T) {
		t.Parallel()
		gen := &mockGenerator{response: textResponse(`{"amount": "300", "date": "2025-03-05", "confidence": 0.9}`)}

		data, err := NewClientWithGenerator(gen).ParseProof(ctx, []byte{0xff, 0xd8}, "")
		require.NoError(t, err)
		require.True(t, data.HasAmount())
		require.True(t, data.HasDate())

		require.Len(t, gen.lastContents, 1)
		require.Equal(t, "image/jpeg", gen.lastContents[0].Parts[0].InlineData.MIMEType)
	})

	t.Run("requires image bytes", func(t *testing.T) {
		t.Parallel()
		_, err := NewClientWithGenerator(&mockGenerator{}).ParseProof(ctx, nil, "image/png")
		require.ErrorContains(t, err, "image data is required")
	})

	t.Run("empty extraction", func(t *testing.T) {
		t.Parallel()
		gen := &mockGenerator{response: textResponse(`{"amount": "0", "date": "", "confidence": 0.1}`)}
		_, err := NewClientWithGenerator(gen).ParseProof(ctx, []byte{1}, "image/png")
		require.ErrorIs(t, err, ErrNoData)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		gen := &mockGenerator{err: fmt.Errorf("genai.GenerateContent: %w", context.DeadlineExceeded)}
		_, err := NewClientWithGenerator(gen).ParseProof(ctx, []byte{1}, "image/png")
		require.ErrorIs(t, err, ErrParseTimeout)
	})

	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		gen := &mockGenerator{err: errors.New("quota exceeded")}
		_, err := NewClientWithGenerator(gen).ParseProof(ctx, []byte{1}, "image/png")
		require.ErrorContains(t, err, "quota exceeded")
	})
}

func FuzzParseProofResponse(f *testing.F) {
	f.Add(`{"amount": "300.00", "date": "2025-03-05"}`)
	f.Add("```json\n{}\n```")
	f.Add(`{"amount": "R 1,000"}`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, input string) {
		data, err := parseProofResponse(input)
		if err != nil {
			return
		}
		require.NotNil(t, data)
		require.False(t, data.Amount.IsNegative() && data.HasAmount())
	})
}
