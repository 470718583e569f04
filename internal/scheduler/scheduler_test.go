package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
)

type fakeReconciler struct {
	calls atomic.Int32
	err   error
	panic bool
	block chan struct{}
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (*ledger.ReconcileResult, error) {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ledger.ReconcileResult{Checked: 3, Updated: 1}, f.err
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("default schedule", func(t *testing.T) {
		t.Parallel()
		s, err := New(&fakeReconciler{}, "", nil)
		require.NoError(t, err)

		s.Start()
		defer s.Stop()

		require.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)
		next := s.Next()
		require.Equal(t, 1, next.Day())
		require.Equal(t, 0, next.Hour())
		require.Equal(t, 15, next.Minute())
	})

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()
		_, err := New(&fakeReconciler{}, "every tuesday", nil)
		require.Error(t, err)
	})

	t.Run("five field spec is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := New(&fakeReconciler{}, "15 0 1 * *", nil)
		require.Error(t, err)
	})
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	t.Run("calls reconciler", func(t *testing.T) {
		t.Parallel()
		r := &fakeReconciler{}
		s, err := New(r, DefaultSchedule, time.UTC)
		require.NoError(t, err)

		s.RunOnce()
		require.Equal(t, int32(1), r.calls.Load())
	})

	t.Run("error is logged not raised", func(t *testing.T) {
		t.Parallel()
		r := &fakeReconciler{err: errors.New("store down")}
		s, err := New(r, DefaultSchedule, time.UTC)
		require.NoError(t, err)

		require.NotPanics(t, s.RunOnce)
	})

	t.Run("stop cancels a running pass", func(t *testing.T) {
		t.Parallel()
		r := &fakeReconciler{block: make(chan struct{})}
		s, err := New(r, DefaultSchedule, time.UTC)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			s.RunOnce()
			close(done)
		}()

		require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		s.Stop()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("reconciliation did not stop")
		}
	})
}

func TestScheduledRun(t *testing.T) {
	t.Parallel()

	r := &fakeReconciler{panic: true}
	s, err := New(r, "* * * * * *", time.UTC)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}
