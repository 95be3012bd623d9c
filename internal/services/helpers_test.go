package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"famledger/internal/events"
	"famledger/internal/logger"
	"famledger/internal/repository"
	"famledger/internal/scope"
)

func init() {
	logger.Init("test")
}

// recordingObserver collects scope events.
type recordingObserver struct {
	mu     sync.Mutex
	events []events.ScopeEvent
}

func (o *recordingObserver) ScopeChanged(_ context.Context, ev events.ScopeEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) reasons() []events.Reason {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]events.Reason, len(o.events))
	for i, ev := range o.events {
		out[i] = ev.Reason
	}
	return out
}

// failingSpend always fails.
type failingSpend struct{}

func (failingSpend) ExpenseTotal(context.Context, scope.Scope, time.Time, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("transaction service down")
}

// blockingSpend waits for the context to expire.
type blockingSpend struct{}

func (blockingSpend) ExpenseTotal(ctx context.Context, _ scope.Scope, _, _ time.Time) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

// countingSpend wraps another aggregator and counts calls.
type countingSpend struct {
	mu    sync.Mutex
	calls int
	next  SpendAggregator
}

func (c *countingSpend) ExpenseTotal(ctx context.Context, s scope.Scope, start, end time.Time) (decimal.Decimal, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.ExpenseTotal(ctx, s, start, end)
}

func newTestGenerator(db *gorm.DB, spend SpendAggregator, observers ...ScopeObserver) *PeriodGenerator {
	if spend == nil {
		spend = repository.NewSpendAggregator(db)
	}
	return NewPeriodGenerator(
		repository.NewBudgetStore(db),
		repository.NewLedgerStore(db),
		spend,
		NewAuditService(db),
		time.Second,
		observers...,
	)
}
