package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/trendbot/internal/domain"
	"github.com/alanyoungcy/trendbot/internal/service"
)

// TrendReader serves the read views.
type TrendReader interface {
	TopTrends(ctx context.Context, q domain.TopTrendsQuery) ([]domain.TopTrend, error)
	CategoryMomentum(ctx context.Context, days int) ([]domain.CategoryMomentum, error)
	Timeline(ctx context.Context, marketUID string) ([]domain.TimelinePoint, error)
	SearchMarkets(ctx context.Context, q string) ([]domain.MarketSummary, error)
}

// TrendHandler serves the trend read endpoints.
type TrendHandler struct {
	svc    TrendReader
	logger *slog.Logger
}

// NewTrendHandler creates a TrendHandler.
func NewTrendHandler(svc TrendReader, logger *slog.Logger) *TrendHandler {
	return &TrendHandler{svc: svc, logger: logHandler(logger, "trends")}
}

// TopTrends returns the ranked markets of the latest run.
// GET /api/trendbot/top?n=&category=
func (h *TrendHandler) TopTrends(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", service.DefaultTopN)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	q := domain.TopTrendsQuery{
		N:        n,
		Category: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))),
	}
	rows, err := h.svc.TopTrends(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// CategoryMomentum returns the momentum index of the last days days.
// GET /api/trendbot/category-momentum?days=
func (h *TrendHandler) CategoryMomentum(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultMomentumDays)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	rows, err := h.svc.CategoryMomentum(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// Timeline returns one market's per-run history.
// GET /api/trendbot/timeline?market_uid=
func (h *TrendHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.Timeline(r.Context(), strings.TrimSpace(r.URL.Query().Get("market_uid")))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(points))
}

// SearchMarkets finds markets by question text.
// GET /api/trendbot/markets?search= (or q=)
func (h *TrendHandler) SearchMarkets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	text := query.Get("search")
	if text == "" {
		text = query.Get("q")
	}
	rows, err := h.svc.SearchMarkets(r.Context(), text)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}
