package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
)

const maxListLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logger.Log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// monthParam returns ?month=, defaulting to the current month.
func (s *Server) monthParam(r *http.Request) string {
	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		return month
	}
	return models.FormatMonth(s.clock.Now())
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Monthly(r.Context(), s.monthParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyDTO(rep))
}

func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Monthly(r.Context(), s.monthParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	png, err := report.Chart(rep)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="`+report.ChartFilename(rep.Month)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be a number")
		return
	}
	d, err := s.ledger.Interest.ComputeDistribution(r.Context(), year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(d))
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.ledger.Members.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]memberDTO, 0, len(members))
	for i := range members {
		out = append(out, toMemberDTO(&members[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.SubmissionFilter{
		Status:       models.SubmissionStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Phone:        q.Get("phone"),
		PaymentMonth: strings.TrimSpace(q.Get("month")),
		Limit:        maxListLimit,
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		filter.Limit = min(limit, maxListLimit)
	}

	subs, err := s.ledger.Submissions.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]submissionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, toSubmissionDTO(&subs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps ledger errors to statuses. Store failures never leak details.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		logger.Log.Error().Err(err).Msg("Store unavailable")
		writeError(w, http.StatusServiceUnavailable, "storage is unavailable, please try again")
	default:
		logger.Log.Error().Err(err).Msg("Unhandled API error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
