package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/stokvel-bot/internal/auth"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/memstore"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
)

const testCode = "letmein"

var apiNow = time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	ledger  *ledger.Ledger
	store   *memstore.Store
}

func newTestEnv(t *testing.T, health HealthCheck) *testEnv {
	t.Helper()
	store := memstore.New()
	clock := policy.NewFixedClock(apiNow)
	l := ledger.New(store, ledger.WithClock(clock))
	matcher, err := auth.NewMatcher(testCode, "")
	require.NoError(t, err)

	srv := NewServer(l, report.NewService(l, clock), matcher, clock, health)
	return &testEnv{handler: srv.Handler(), ledger: l, store: store}
}

func (e *testEnv) get(t *testing.T, path string, withCode bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if withCode {
		req.Header.Set(AdminCodeHeader, testCode)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	for _, p := range []struct {
		phone, name string
		amount      int64
		date        time.Time
	}{
		{"0821111111", "Thandi", 300, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"0822222222", "Sipho", 300, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)},
	} {
		sub, err := e.ledger.Submissions.Submit(ctx, ledger.SubmitInput{
			MemberName:  p.name,
			MemberPhone: p.phone,
			Amount:      decimal.NewFromInt(p.amount),
			PaymentDate: p.date,
		})
		require.NoError(t, err)
		_, err = e.ledger.Submissions.Approve(ctx, sub.ID, ledger.ApproveInput{Actor: "admin"})
		require.NoError(t, err)
	}

	_, err := e.ledger.Submissions.Submit(ctx, ledger.SubmitInput{
		MemberName:  "Lerato",
		MemberPhone: "0823333333",
		Amount:      decimal.NewFromInt(300),
		PaymentDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("ok without code", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, func(context.Context) error { return nil })
		rec := env.get(t, "/healthz", false)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	})

	t.Run("unavailable", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, func(context.Context) error { return errors.New("db down") })
		rec := env.get(t, "/healthz", false)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestAdminCodeRequired(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, path := range []string{
		"/api/v1/dashboard",
		"/api/v1/reports/monthly",
		"/api/v1/interest/2025",
		"/api/v1/members",
		"/api/v1/submissions",
	} {
		rec := env.get(t, path, false)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members", nil)
	req.Header.Set(AdminCodeHeader, "wrong")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.get(t, "/api/v1/dashboard", true)
	require.Equal(t, http.StatusOK, rec.Code)

	d := decode[dashboardDTO](t, rec)
	require.Equal(t, 2, d.Members)
	require.Equal(t, 1, d.Pending)
	require.Equal(t, 2, d.Verified)
	require.Equal(t, "600.00", d.TotalSavings)
	require.Equal(t, "50.00", d.TotalFines)
	require.Equal(t, "50.00", d.InterestPool)
}

func TestMonthlyReportEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.seed(t)

	t.Run("defaults to current month", func(t *testing.T) {
		rec := env.get(t, "/api/v1/reports/monthly", true)
		require.Equal(t, http.StatusOK, rec.Code)
		r := decode[monthlyDTO](t, rec)
		require.Equal(t, "March 2025", r.Month)
		require.Equal(t, 2, r.Verified)
		require.Equal(t, 1, r.Pending)
		require.InDelta(t, 1.0, r.ComplianceRate, 0.0001)
		require.Empty(t, r.BelowMinimum)
	})

	t.Run("invalid month", func(t *testing.T) {
		rec := env.get(t, "/api/v1/reports/monthly?month=2025-03", true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("chart", func(t *testing.T) {
		rec := env.get(t, "/api/v1/reports/monthly/chart?month=March%202025", true)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	})

	t.Run("chart with no submissions", func(t *testing.T) {
		rec := env.get(t, "/api/v1/reports/monthly/chart?month=January%202024", true)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestInterestEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.get(t, "/api/v1/interest/2025", true)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[distributionDTO](t, rec)
	require.Equal(t, 2025, d.Year)
	require.Equal(t, "50.00", d.TotalPool)
	require.Zero(t, d.EligibleCount)
	require.Equal(t, "0.00", d.PerMemberAmount)

	rec = env.get(t, "/api/v1/interest/abc", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.get(t, "/api/v1/interest/0", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembersEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.get(t, "/api/v1/members", true)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decode[[]memberDTO](t, rec)
	require.Len(t, members, 2)
	require.Equal(t, "Sipho", members[0].Name)
	require.Equal(t, "300.00", members[0].TotalSavings)
	require.Equal(t, "50.00", members[0].TotalFines)
}

func TestSubmissionsEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.seed(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantCount: 3},
		{name: "pending", query: "?status=pending", wantStatus: http.StatusOK, wantCount: 1},
		{name: "verified uppercase", query: "?status=VERIFIED", wantStatus: http.StatusOK, wantCount: 2},
		{name: "by phone", query: "?phone=082%20111%201111", wantStatus: http.StatusOK, wantCount: 1},
		{name: "by month", query: "?month=March%202025", wantStatus: http.StatusOK, wantCount: 3},
		{name: "limit", query: "?limit=1", wantStatus: http.StatusOK, wantCount: 1},
		{name: "bad status", query: "?status=approved", wantStatus: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(t, "/api/v1/submissions"+tt.query, true)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				require.Len(t, decode[[]submissionDTO](t, rec), tt.wantCount)
			}
		})
	}
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.store.FailOn("members.List", errors.New("connection reset by peer"))

	rec := env.get(t, "/api/v1/members", true)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection reset")
}
