package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"famledger/internal/engine"
	apperrors "famledger/internal/errors"
	"famledger/internal/events"
	"famledger/internal/logger"
	"famledger/internal/models"
	"famledger/internal/scope"
)

// DefaultAggregationTimeout bounds one spend aggregation call.
const DefaultAggregationTimeout = 10 * time.Second

// AdvanceResult describes what one Advance call did to a scope.
type AdvanceResult struct {
	// Current is the period covering the requested date.
	Current *models.Budget `json:"current"`
	// Closed lists the ledger entries written or found for periods that ended.
	Closed []models.LedgerEntry `json:"closed"`
	// Created counts the periods this call inserted. Periods inserted by a
	// concurrent caller are not counted.
	Created int `json:"created"`
	// Healed counts cached rollover amounts corrected from the ledger.
	Healed int `json:"healed"`
}

// PeriodGenerator moves a scope's budget timeline forward in time, closing
// every ended period and creating its successor.
type PeriodGenerator struct {
	budgets            BudgetStore
	ledger             LedgerStore
	spend              SpendAggregator
	audit              AuditServicer
	observers          []ScopeObserver
	aggregationTimeout time.Duration
}

// NewPeriodGenerator creates a new PeriodGenerator. A non-positive timeout
// falls back to DefaultAggregationTimeout.
func NewPeriodGenerator(
	budgets BudgetStore,
	ledger LedgerStore,
	spend SpendAggregator,
	audit AuditServicer,
	aggregationTimeout time.Duration,
	observers ...ScopeObserver,
) *PeriodGenerator {
	if aggregationTimeout <= 0 {
		aggregationTimeout = DefaultAggregationTimeout
	}
	return &PeriodGenerator{
		budgets:            budgets,
		ledger:             ledger,
		spend:              spend,
		audit:              audit,
		observers:          observers,
		aggregationTimeout: aggregationTimeout,
	}
}

// EnsureCurrentPeriod returns the period of the scope covering asOf,
// creating every missing period up to it.
func (g *PeriodGenerator) EnsureCurrentPeriod(ctx context.Context, scopeKey string, asOf time.Time) (*models.Budget, error) {
	res, err := g.Advance(ctx, scopeKey, asOf)
	if err != nil {
		return nil, err
	}
	return res.Current, nil
}

// Advance closes every period of the scope that ended on or before asOf and
// creates the periods that follow, one at a time. It never creates a period
// starting after asOf. When asOf lies before the latest period, the
// existing period covering it is returned and nothing is written.
//
// If spend cannot be aggregated the scope is left as it was at the failing
// period and ErrAggregationUnavailable is returned.
func (g *PeriodGenerator) Advance(ctx context.Context, scopeKey string, asOf time.Time) (*AdvanceResult, error) {
	asOf = engine.NormalizeDate(asOf)
	log := logger.Get().With("scope_key", scopeKey, "as_of", asOf.Format(time.DateOnly))

	latest, err := g.budgets.Latest(ctx, scopeKey)
	if err != nil {
		return nil, err
	}

	result := &AdvanceResult{}
	if asOf.Before(latest.StartDate) {
		current, err := g.budgets.FindCovering(ctx, scopeKey, asOf)
		if err != nil {
			return nil, err
		}
		result.Current = current
		return result, nil
	}

	healed, err := g.heal(ctx, latest)
	if err != nil {
		return nil, err
	}
	if healed {
		result.Healed++
	}

	maxSteps := engine.MaxPeriodsBetween(latest.Period, latest.EndDate, asOf)
	for steps := 0; !asOf.Before(latest.EndDate); steps++ {
		if steps >= maxSteps {
			log.Errorw("period loop did not converge", "latest_end", latest.EndDate, "steps", steps)
			return nil, apperrors.Wrap(apperrors.ErrInvariantViolation,
				fmt.Errorf("scope %s did not reach %s after %d periods", scopeKey, asOf.Format(time.DateOnly), steps))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, _, err := g.ClosePeriod(ctx, latest, asOf)
		if err != nil {
			return nil, err
		}
		result.Closed = append(result.Closed, *entry)

		next, created, err := g.createNext(ctx, latest, entry)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
			log.Infow("Created budget period",
				"budget_id", next.ID,
				"period", engine.PeriodLabel(next.Period, next.StartDate),
				"rollover_amount", next.RolloverAmount.StringFixed(engine.Precision),
			)
		} else {
			// A concurrent caller won the insert. Its row must still agree
			// with the ledger.
			healed, err := g.heal(ctx, next)
			if err != nil {
				return nil, err
			}
			if healed {
				result.Healed++
			}
		}
		latest = next
	}

	result.Current = latest
	return result, nil
}

// ClosePeriod writes the ledger entry of a period that ended on or before
// asOf. Closing the same period again returns the stored entry without
// aggregating spend, so repeated calls yield the same entry and the same
// carry-forward.
func (g *PeriodGenerator) ClosePeriod(ctx context.Context, b *models.Budget, asOf time.Time) (*models.LedgerEntry, bool, error) {
	if engine.NormalizeDate(asOf).Before(b.EndDate) {
		return nil, false, apperrors.ErrPeriodNotClosed
	}
	label := engine.PeriodLabel(b.Period, b.StartDate)

	existing, err := g.ledger.Get(ctx, b.ScopeKey, label)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.Is(err, apperrors.ErrLedgerNotFound) {
		return nil, false, err
	}

	spent, err := g.aggregate(ctx, b)
	if err != nil {
		return nil, false, err
	}

	entry, _ := engine.Close(b, spent)
	stored, created, err := g.ledger.Append(ctx, &entry)
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Get().Infow("Closed budget period",
			"scope_key", b.ScopeKey,
			"period", stored.Period,
			"type", stored.Type,
			"amount", stored.Amount.StringFixed(engine.Precision),
			"spent", stored.Spent.StringFixed(engine.Precision),
		)
		g.notify(ctx, events.NewScopeEvent(b.ScopeKey, events.ReasonPeriodClosed, stored.Period, b.ID))
	}
	return stored, created, nil
}

func (g *PeriodGenerator) aggregate(ctx context.Context, b *models.Budget) (decimal.Decimal, error) {
	actx, cancel := context.WithTimeout(ctx, g.aggregationTimeout)
	defer cancel()

	spent, err := g.spend.ExpenseTotal(actx, b.Scope(), b.StartDate, b.EndDate)
	if err != nil {
		logger.Get().Warnw("spend aggregation failed",
			"error", err,
			"scope_key", b.ScopeKey,
			"period", engine.PeriodLabel(b.Period, b.StartDate),
		)
		return decimal.Zero, apperrors.Wrap(apperrors.ErrAggregationUnavailable, err)
	}
	return spent, nil
}

// createNext inserts the period following prev. The template carries over
// the amount, the period type, the rollover flag and the category shape.
func (g *PeriodGenerator) createNext(ctx context.Context, prev *models.Budget, closed *models.LedgerEntry) (*models.Budget, bool, error) {
	end, err := engine.PeriodEnd(prev.Period, prev.RefreshDay, prev.EndDate)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInvariantViolation, err)
	}

	next := &models.Budget{
		ScopeKey:             prev.ScopeKey,
		ScopeKind:            prev.ScopeKind,
		OwnerID:              prev.OwnerID,
		AccountBookID:        prev.AccountBookID,
		CategoryID:           prev.CategoryID,
		Name:                 prev.Name,
		Amount:               prev.Amount,
		Period:               prev.Period,
		StartDate:            prev.EndDate,
		EndDate:              end,
		RefreshDay:           prev.RefreshDay,
		RolloverEnabled:      prev.RolloverEnabled,
		RolloverAmount:       engine.CarryIn(prev.RolloverEnabled, closed),
		EnableCategoryBudget: prev.EnableCategoryBudget,
		AutoCalculated:       prev.AutoCalculated,
	}
	for _, cb := range prev.CategoryBudgets {
		next.CategoryBudgets = append(next.CategoryBudgets, models.CategoryBudget{
			CategoryID: cb.CategoryID,
			Amount:     cb.Amount,
		})
	}

	stored, created, err := g.budgets.CreatePeriod(ctx, next)
	if err != nil {
		return nil, false, err
	}
	if created {
		g.notify(ctx, events.NewScopeEvent(stored.ScopeKey, events.ReasonBudgetCreated,
			engine.PeriodLabel(stored.Period, stored.StartDate), stored.ID))
	}
	return stored, created, nil
}

// heal checks b's cached carry-in against the ledger entry of the period
// before it and overwrites the cache when they disagree. A budget without a
// predecessor entry is left alone.
func (g *PeriodGenerator) heal(ctx context.Context, b *models.Budget) (bool, error) {
	prev, err := g.ledger.GetByPeriodEnd(ctx, b.ScopeKey, b.StartDate)
	if apperrors.Is(err, apperrors.ErrLedgerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.healFrom(ctx, b, prev)
}

// healFrom is heal with the predecessor's ledger entry already loaded.
func (g *PeriodGenerator) healFrom(ctx context.Context, b *models.Budget, prev *models.LedgerEntry) (bool, error) {
	want := engine.CarryIn(b.RolloverEnabled, prev)
	if b.RolloverAmount.Equal(want) {
		return false, nil
	}

	violation := apperrors.Wrap(apperrors.ErrInvariantViolation, fmt.Errorf(
		"budget %s carries %s but ledger %s says %s",
		b.ID, b.RolloverAmount.StringFixed(engine.Precision), prev.Period, want.StringFixed(engine.Precision)))
	logger.Get().Errorw("rollover amount disagrees with ledger, healing",
		"error", violation.Internal,
		"code", violation.Code,
		"scope_key", b.ScopeKey,
		"budget_id", b.ID,
		"ledger_period", prev.Period,
		"cached", b.RolloverAmount.StringFixed(engine.Precision),
		"ledger", want.StringFixed(engine.Precision),
	)

	if err := g.budgets.UpdateRolloverAmount(ctx, b.ID, want); err != nil {
		return false, err
	}
	g.audit.Log(SystemActor, AuditHealRollover, "budget", b.ID, "", map[string]interface{}{
		"scope_key":     b.ScopeKey,
		"ledger_period": prev.Period,
		"from":          b.RolloverAmount.StringFixed(engine.Precision),
		"to":            want.StringFixed(engine.Precision),
	})
	b.RolloverAmount = want
	g.notify(ctx, events.NewScopeEvent(b.ScopeKey, events.ReasonRolloverHealed, prev.Period, b.ID))
	return true, nil
}

// ReconcileScope heals every period of the scope whose cached carry-in
// disagrees with the ledger and returns how many were corrected.
func (g *PeriodGenerator) ReconcileScope(ctx context.Context, scopeKey string) (int, error) {
	if _, err := scope.Parse(scopeKey); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	periods, err := g.budgets.ListPeriods(ctx, scopeKey)
	if err != nil {
		return 0, err
	}
	if len(periods) == 0 {
		return 0, apperrors.ErrScopeNotFound
	}

	entries, err := g.ledger.ListAll(ctx, scopeKey)
	if err != nil {
		return 0, err
	}
	byEnd := make(map[int64]*models.LedgerEntry, len(entries))
	for i := range entries {
		byEnd[entries[i].PeriodEnd.Unix()] = &entries[i]
	}

	healed := 0
	for i := range periods {
		prev, ok := byEnd[periods[i].StartDate.Unix()]
		if !ok {
			continue
		}
		fixed, err := g.healFrom(ctx, &periods[i], prev)
		if err != nil {
			return healed, err
		}
		if fixed {
			healed++
		}
	}
	return healed, nil
}

func (g *PeriodGenerator) notify(ctx context.Context, ev events.ScopeEvent) {
	for _, o := range g.observers {
		o.ScopeChanged(ctx, ev)
	}
}
