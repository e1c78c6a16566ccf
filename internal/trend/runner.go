package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// Runner executes one scoring run: it loads the current/baseline join,
// derives signals, gates and scores them, persists both, and ranks the latest
// run. Everything after ranking (category rollup, archive, audit, event,
// cache invalidation) is best effort and only logged on failure.
//
// A Runner assumes at most one run is in flight; callers serialise runs.
type Runner struct {
	store        domain.TrendStore
	minLiquidity float64
	now          func() time.Time
	logger       *slog.Logger

	index    domain.CategoryIndexStore
	archiver domain.RunArchiver
	audit    domain.AuditStore
	bus      domain.SignalBus
	cache    domain.ViewCache
}

// NewRunner creates a Runner writing to store. minLiquidity is the liquidity
// floor of the score gate; zero disables it.
func NewRunner(store domain.TrendStore, minLiquidity float64, logger *slog.Logger) *Runner {
	return &Runner{
		store:        store,
		minLiquidity: minLiquidity,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "trend_runner")),
	}
}

// WithClock overrides the wall clock used to derive run_at.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// WithCategoryIndex enables the daily category rollup after each run.
func (r *Runner) WithCategoryIndex(index domain.CategoryIndexStore) *Runner {
	r.index = index
	return r
}

// WithArchiver enables copying each run's scores to object storage.
func (r *Runner) WithArchiver(a domain.RunArchiver) *Runner {
	r.archiver = a
	return r
}

// WithAudit records each completed run in the audit log.
func (r *Runner) WithAudit(a domain.AuditStore) *Runner {
	r.audit = a
	return r
}

// WithBus publishes each RunResult on domain.ChannelRuns.
func (r *Runner) WithBus(bus domain.SignalBus) *Runner {
	r.bus = bus
	return r
}

// WithCache invalidates cached views after each run.
func (r *Runner) WithCache(c domain.ViewCache) *Runner {
	r.cache = c
	return r
}

// RunAt derives the run timestamp from the wall clock: UTC, truncated to the
// store's microsecond precision so re-reads compare equal.
func (r *Runner) RunAt() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// Run executes a run at runAt, or at the wall clock when runAt is zero.
// Re-running with the same runAt converges to the same stored state.
func (r *Runner) Run(ctx context.Context, runAt time.Time) (domain.RunResult, error) {
	if runAt.IsZero() {
		runAt = r.RunAt()
	} else {
		runAt = runAt.UTC().Truncate(time.Microsecond)
	}
	res := domain.RunResult{RunID: uuid.NewString(), RunAt: runAt}

	inputs, err := r.store.LoadSignalInputs(ctx, runAt)
	if err != nil {
		return res, fmt.Errorf("trend: load signal inputs: %w", err)
	}
	res.Markets = len(inputs)

	signals, scores := Build(inputs, runAt, r.minLiquidity)
	res.Signals = len(signals)
	res.Scored = len(scores)
	res.Excluded = len(signals) - len(scores)

	if err := r.store.SaveRun(ctx, signals, scores); err != nil {
		return res, fmt.Errorf("trend: save run: %w", err)
	}

	ranked, err := r.store.AssignRanks(ctx)
	if err != nil {
		return res, fmt.Errorf("trend: assign ranks: %w", err)
	}
	res.Ranked = ranked

	r.afterRun(ctx, res)

	r.logger.InfoContext(ctx, "trend run complete",
		slog.String("run_id", res.RunID),
		slog.Time("run_at", res.RunAt),
		slog.Int("markets", res.Markets),
		slog.Int("scored", res.Scored),
		slog.Int("excluded", res.Excluded),
		slog.Int64("ranked", res.Ranked),
	)
	return res, nil
}

// Build derives one signal per input and one score per input that passes the
// liquidity gate. It is pure; Run persists its output.
func Build(inputs []domain.SignalInput, runAt time.Time, minLiquidity float64) ([]domain.TrendSignal, []domain.TrendScore) {
	signals := make([]domain.TrendSignal, 0, len(inputs))
	scores := make([]domain.TrendScore, 0, len(inputs))
	for _, in := range inputs {
		sig := ComputeSignal(in, runAt)
		signals = append(signals, sig)

		if !PassesLiquidityGate(in.Current.Liquidity, minLiquidity) {
			continue
		}
		scores = append(scores, domain.TrendScore{
			MarketUID:    in.MarketUID,
			RunAt:        runAt,
			Score:        Score(sig),
			Category:     in.Category,
			Vendor:       in.Vendor,
			DVol24h:      sig.DVol24h,
			DPrice24h:    sig.DPrice24h,
			DLiq24h:      sig.DLiq24h,
			PriceNow:     in.Current.Price,
			Volume24hNow: in.Current.Volume24h,
			LiquidityNow: in.Current.Liquidity,
		})
	}
	return signals, scores
}

func (r *Runner) afterRun(ctx context.Context, res domain.RunResult) {
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.warn(ctx, "view cache invalidate failed", err)
		}
	}

	if r.index != nil {
		if n, err := r.index.RefreshDay(ctx, res.RunAt); err != nil {
			r.warn(ctx, "category index refresh failed", err)
		} else {
			r.logger.DebugContext(ctx, "category index refreshed", slog.Int64("categories", n))
		}
	}

	if r.archiver != nil {
		if err := r.archive(ctx, res.RunAt); err != nil {
			r.warn(ctx, "run archive failed", err)
		}
	}

	if r.audit != nil {
		if err := r.audit.Log(ctx, "trend.run", map[string]any{
			"run_id":   res.RunID,
			"run_at":   res.RunAt.Format(time.RFC3339Nano),
			"markets":  res.Markets,
			"scored":   res.Scored,
			"excluded": res.Excluded,
			"ranked":   res.Ranked,
		}); err != nil {
			r.warn(ctx, "audit log failed", err)
		}
	}

	if r.bus != nil {
		payload, err := json.Marshal(res)
		if err == nil {
			err = r.bus.Publish(ctx, domain.ChannelRuns, payload)
		}
		if err != nil {
			r.warn(ctx, "publish run event failed", err)
		}
	}
}

func (r *Runner) archive(ctx context.Context, runAt time.Time) error {
	scores, err := r.store.ListRunScores(ctx, runAt)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		return nil
	}
	path, err := r.archiver.ArchiveRun(ctx, runAt, scores)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "run archived", slog.String("path", path), slog.Int("scores", len(scores)))
	return nil
}

func (r *Runner) warn(ctx context.Context, msg string, err error) {
	r.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
}
