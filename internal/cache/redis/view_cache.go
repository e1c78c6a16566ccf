package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

const topTrendsKey = "trendbot:view:top"

// ViewCache implements domain.ViewCache. All cached top-trends pages live as
// fields of one hash so a run can drop them with a single DEL.
type ViewCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewViewCache creates a ViewCache whose entries expire after ttl. A
// non-positive ttl keeps entries until the next Invalidate.
func NewViewCache(c *Client, ttl time.Duration) *ViewCache {
	return &ViewCache{rdb: c.Underlying(), ttl: ttl}
}

func topTrendsField(q domain.TopTrendsQuery) string {
	return strconv.Itoa(q.N) + "|" + q.Category
}

// GetTopTrends returns a cached page or domain.ErrNotFound.
func (vc *ViewCache) GetTopTrends(ctx context.Context, q domain.TopTrendsQuery) ([]domain.TopTrend, error) {
	data, err := vc.rdb.HGet(ctx, topTrendsKey, topTrendsField(q)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get top trends: %w", err)
	}

	var rows []domain.TopTrend
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("redis: unmarshal top trends: %w", err)
	}
	return rows, nil
}

// SetTopTrends caches one page.
func (vc *ViewCache) SetTopTrends(ctx context.Context, q domain.TopTrendsQuery, rows []domain.TopTrend) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("redis: marshal top trends: %w", err)
	}

	pipe := vc.rdb.TxPipeline()
	pipe.HSet(ctx, topTrendsKey, topTrendsField(q), data)
	if vc.ttl > 0 {
		pipe.Expire(ctx, topTrendsKey, vc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set top trends: %w", err)
	}
	return nil
}

// Invalidate drops every cached page.
func (vc *ViewCache) Invalidate(ctx context.Context) error {
	if err := vc.rdb.Del(ctx, topTrendsKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate views: %w", err)
	}
	return nil
}

var _ domain.ViewCache = (*ViewCache)(nil)
