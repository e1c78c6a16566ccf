package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// Read-view parameter bounds.
const (
	DefaultTopN         = 10
	MaxTopN             = 100
	DefaultMomentumDays = 7
	MaxMomentumDays     = 90
	SearchLimit         = 50
)

// TrendService serves the read views. Parameters are validated here so every
// caller gets the same bounds; violations wrap domain.ErrInvalidArgument.
type TrendService struct {
	views  domain.ViewStore
	cache  domain.ViewCache
	logger *slog.Logger
}

// NewTrendService creates a TrendService. cache may be nil.
func NewTrendService(views domain.ViewStore, cache domain.ViewCache, logger *slog.Logger) *TrendService {
	return &TrendService{
		views:  views,
		cache:  cache,
		logger: logger.With(slog.String("component", "trend_service")),
	}
}

// TopTrends returns the top q.N markets of the latest run, read through the
// view cache when one is configured.
func (s *TrendService) TopTrends(ctx context.Context, q domain.TopTrendsQuery) ([]domain.TopTrend, error) {
	if q.N < 1 || q.N > MaxTopN {
		return nil, fmt.Errorf("n must be between 1 and %d: %w", MaxTopN, domain.ErrInvalidArgument)
	}

	if s.cache != nil {
		rows, err := s.cache.GetTopTrends(ctx, q)
		if err == nil {
			return rows, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "view cache read failed", slog.String("error", err.Error()))
		}
	}

	rows, err := s.views.TopTrends(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("trend_service: top trends: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetTopTrends(ctx, q, rows); err != nil {
			s.logger.WarnContext(ctx, "view cache write failed", slog.String("error", err.Error()))
		}
	}
	return rows, nil
}

// CategoryMomentum returns momentum index rows of the last days days.
func (s *TrendService) CategoryMomentum(ctx context.Context, days int) ([]domain.CategoryMomentum, error) {
	if days < 1 || days > MaxMomentumDays {
		return nil, fmt.Errorf("days must be between 1 and %d: %w", MaxMomentumDays, domain.ErrInvalidArgument)
	}
	rows, err := s.views.CategoryMomentum(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("trend_service: category momentum: %w", err)
	}
	return rows, nil
}

// Timeline returns a market's per-run history.
func (s *TrendService) Timeline(ctx context.Context, marketUID string) ([]domain.TimelinePoint, error) {
	if marketUID == "" {
		return nil, fmt.Errorf("market_uid is required: %w", domain.ErrInvalidArgument)
	}
	points, err := s.views.Timeline(ctx, marketUID)
	if err != nil {
		return nil, fmt.Errorf("trend_service: timeline: %w", err)
	}
	return points, nil
}

// SearchMarkets returns up to SearchLimit markets whose question contains q.
func (s *TrendService) SearchMarkets(ctx context.Context, q string) ([]domain.MarketSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("search text is required: %w", domain.ErrInvalidArgument)
	}
	rows, err := s.views.SearchMarkets(ctx, q, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("trend_service: search markets: %w", err)
	}
	return rows, nil
}
