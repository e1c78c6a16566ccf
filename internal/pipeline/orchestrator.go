package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// RunLockKey is the distributed lock held around every ingest+score cycle.
const RunLockKey = "trendbot:run"

// Ingestor runs one ingestion pass.
type Ingestor interface {
	Run(ctx context.Context) (IngestResult, error)
}

// TrendRunner runs one scoring run. A zero runAt means "now".
type TrendRunner interface {
	Run(ctx context.Context, runAt time.Time) (domain.RunResult, error)
}

// CycleResult reports what one cycle did. Ingest or Run is nil when that phase
// was disabled or failed.
type CycleResult struct {
	Ingest *IngestResult     `json:"ingest,omitempty"`
	Run    *domain.RunResult `json:"run,omitempty"`
}

// Orchestrator drives ingest+score cycles on an interval and on demand.
// Cycles never overlap: within the process a mutex serialises them, and across
// replicas the optional LockManager does.
type Orchestrator struct {
	ingester Ingestor
	runner   TrendRunner
	locks    domain.LockManager
	interval time.Duration
	lockTTL  time.Duration
	trigger  chan struct{}
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. Either ingester or runner may be
// nil to run only the other phase; locks may be nil for single-replica use.
func NewOrchestrator(
	ingester Ingestor,
	runner TrendRunner,
	locks domain.LockManager,
	interval time.Duration,
	lockTTL time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		ingester: ingester,
		runner:   runner,
		locks:    locks,
		interval: interval,
		lockTTL:  lockTTL,
		trigger:  make(chan struct{}, 1),
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Trigger requests a cycle as soon as the loop is free. It returns false when
// a request is already pending.
func (o *Orchestrator) Trigger() bool {
	select {
	case o.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce executes a single cycle: ingest when enabled, then score when
// enabled. An ingest failure is logged and scoring proceeds on whatever ticks
// are already stored. It returns domain.ErrLockHeld when another replica owns
// the run lock, and domain.ErrLockLost when the lock could not be kept for the
// whole cycle; the cycle is cancelled in that case.
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var res CycleResult
	runCtx := ctx
	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, RunLockKey, o.lockTTL)
		if err != nil {
			return res, fmt.Errorf("pipeline: acquire run lock: %w", err)
		}
		defer unlock()

		var cancel context.CancelCauseFunc
		runCtx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)
		stop := o.keepLock(runCtx, cancel)
		defer stop()
	}

	if o.ingester != nil {
		ir, err := o.ingester.Run(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				return res, context.Cause(runCtx)
			}
			o.logger.ErrorContext(ctx, "ingest failed", slog.String("error", err.Error()))
		} else {
			res.Ingest = &ir
		}
	}

	if o.runner != nil {
		if runCtx.Err() != nil {
			return res, context.Cause(runCtx)
		}
		rr, err := o.runner.Run(runCtx, time.Time{})
		if err != nil {
			if runCtx.Err() != nil {
				return res, context.Cause(runCtx)
			}
			return res, fmt.Errorf("pipeline: trend run: %w", err)
		}
		res.Run = &rr
	}
	return res, nil
}

// keepLock extends the run lock every third of its TTL until stop is called.
// Losing the lock cancels ctx with a domain.ErrLockLost cause; other extend
// errors are retried on the next tick.
func (o *Orchestrator) keepLock(ctx context.Context, cancel context.CancelCauseFunc) (stop func()) {
	every := o.lockTTL / 3
	if every <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := o.locks.Extend(ctx, RunLockKey, o.lockTTL)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLockLost):
				o.logger.ErrorContext(ctx, "run lock lost, cancelling cycle")
				cancel(fmt.Errorf("pipeline: extend run lock: %w", err))
				return
			case ctx.Err() != nil:
				return
			default:
				o.logger.WarnContext(ctx, "run lock extend failed", slog.String("error", err.Error()))
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// Run executes a cycle immediately, then again on every interval tick and
// every Trigger until ctx is cancelled. A non-positive interval disables the
// ticker, leaving only triggers. Cycle errors are logged, not returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "orchestrator starting",
		slog.Duration("interval", o.interval),
		slog.Bool("ingest", o.ingester != nil),
		slog.Bool("score", o.runner != nil),
	)

	var tick <-chan time.Time
	if o.interval > 0 {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	o.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopped cleanly")
			return nil
		case <-tick:
			o.cycle(ctx)
		case <-o.trigger:
			o.cycle(ctx)
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context) {
	start := time.Now()
	_, err := o.RunOnce(ctx)
	switch {
	case err == nil:
		o.logger.DebugContext(ctx, "cycle complete", slog.Duration("elapsed", time.Since(start)))
	case errors.Is(err, domain.ErrLockHeld):
		o.logger.InfoContext(ctx, "cycle skipped, run lock held elsewhere")
	case errors.Is(err, domain.ErrLockLost):
		o.logger.WarnContext(ctx, "cycle aborted, run lock lost", slog.Duration("elapsed", time.Since(start)))
	case ctx.Err() != nil:
	default:
		o.logger.ErrorContext(ctx, "cycle failed", slog.String("error", err.Error()))
	}
}
