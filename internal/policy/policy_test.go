package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 12, 0, 0, 0, time.UTC)
}

func TestIsLate(t *testing.T) {
	t.Parallel()

	p := Default()

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{name: "first of month", date: day(1), want: false},
		{name: "third", date: day(3), want: false},
		{name: "last grace day", date: day(7), want: false},
		{name: "day after grace", date: day(8), want: true},
		{name: "tenth", date: day(10), want: true},
		{name: "end of month", date: day(31), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, p.IsLate(tt.date))
		})
	}
}

func TestFineFor(t *testing.T) {
	t.Parallel()

	p := Default()

	t.Run("late payment is fined", func(t *testing.T) {
		t.Parallel()
		require.True(t, p.FineFor(day(10)).Equal(decimal.NewFromInt(50)))
	})

	t.Run("on-time payment is not fined", func(t *testing.T) {
		t.Parallel()
		require.True(t, p.FineFor(day(3)).IsZero())
	})

	t.Run("custom fine", func(t *testing.T) {
		t.Parallel()
		custom := p
		custom.LateFineAmount = decimal.NewFromInt(75)
		custom.GracePeriodEndDay = 10
		require.True(t, custom.FineFor(day(10)).IsZero())
		require.True(t, custom.FineFor(day(11)).Equal(decimal.NewFromInt(75)))
	})
}

func TestShouldSuspend(t *testing.T) {
	t.Parallel()

	p := Default()
	require.False(t, p.ShouldSuspend(0))
	require.False(t, p.ShouldSuspend(2))
	require.True(t, p.ShouldSuspend(3))
	require.True(t, p.ShouldSuspend(7))
}

func TestIsEligibleForInterest(t *testing.T) {
	t.Parallel()

	p := Default()
	require.False(t, p.IsEligibleForInterest(decimal.NewFromInt(9999)))
	require.True(t, p.IsEligibleForInterest(decimal.NewFromInt(10000)))
	require.True(t, p.IsEligibleForInterest(decimal.NewFromInt(25000)))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default().Validate())

	bad := Default()
	bad.GracePeriodEndDay = 0
	require.Error(t, bad.Validate())

	bad = Default()
	bad.GracePeriodEndDay = 32
	require.Error(t, bad.Validate())

	bad = Default()
	bad.MaxSkippedMonths = 0
	require.Error(t, bad.Validate())

	bad = Default()
	bad.LateFineAmount = decimal.NewFromInt(-1)
	require.Error(t, bad.Validate())
}

func TestFixedClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	require.Equal(t, start, c.Now())

	c.Advance(48 * time.Hour)
	require.Equal(t, start.AddDate(0, 0, 2), c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

func TestSystemClock(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("SAST", 2*60*60)
	now := SystemClock{Location: loc}.Now()
	require.Equal(t, loc, now.Location())

	require.Equal(t, time.UTC, SystemClock{}.Now().Location())
}
