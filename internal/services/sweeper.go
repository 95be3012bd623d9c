package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"famledger/internal/engine"
	"famledger/internal/logger"
)

// DefaultSweepConcurrency is the number of scopes advanced in parallel.
const DefaultSweepConcurrency = 4

// ScopeFailure records a scope the sweep could not advance.
type ScopeFailure struct {
	ScopeKey string `json:"scope_key"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error"`
}

// SweepResult summarises one sweep.
type SweepResult struct {
	AsOf           time.Time      `json:"as_of"`
	ScopesScanned  int            `json:"scopes_scanned"`
	ScopesAdvanced int            `json:"scopes_advanced"`
	PeriodsClosed  int            `json:"periods_closed"`
	PeriodsCreated int            `json:"periods_created"`
	Healed         int            `json:"healed"`
	Failures       []ScopeFailure `json:"failures"`
	Duration       time.Duration  `json:"duration"`
}

// Sweeper closes stale periods across all scopes with a bounded worker pool.
// Scopes are independent: one scope failing never stops the others, and a
// sweep interrupted halfway is safe to run again.
type Sweeper struct {
	budgets     BudgetStore
	periods     PeriodEnsurer
	concurrency int
}

// NewSweeper creates a new Sweeper.
func NewSweeper(budgets BudgetStore, periods PeriodEnsurer, concurrency int) *Sweeper {
	if concurrency < 1 {
		concurrency = DefaultSweepConcurrency
	}
	return &Sweeper{budgets: budgets, periods: periods, concurrency: concurrency}
}

// Sweep advances every scope whose latest period ended on or before asOf.
// Cancelling ctx stops scheduling further scopes; scopes already running
// finish their current step.
func (s *Sweeper) Sweep(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	started := time.Now()
	asOf = engine.NormalizeDate(asOf)
	log := logger.Named("sweeper")

	keys, err := s.budgets.StaleScopeKeys(ctx, asOf)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{AsOf: asOf, ScopesScanned: len(keys), Failures: []ScopeFailure{}}
	var mu sync.Mutex

	// Workers never return errors so one scope cannot cancel the rest.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.periods.Advance(ctx, key, asOf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, failureOf(key, err))
				log.Warnw("sweep failed for scope", "scope_key", key, "error", err)
				return nil
			}
			result.ScopesAdvanced++
			result.PeriodsClosed += len(res.Closed)
			result.PeriodsCreated += res.Created
			result.Healed += res.Healed
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(started)
	log.Infow("Sweep finished",
		"as_of", asOf.Format(time.DateOnly),
		"scanned", result.ScopesScanned,
		"advanced", result.ScopesAdvanced,
		"created", result.PeriodsCreated,
		"failed", len(result.Failures),
		"duration", result.Duration,
	)
	return result, ctx.Err()
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	log := logger.Named("sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx, time.Now()); err != nil && ctx.Err() == nil {
			log.Errorw("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
