package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"famledger/internal/cache"
	"famledger/internal/engine"
	apperrors "famledger/internal/errors"
	"famledger/internal/events"
	"famledger/internal/logger"
	"famledger/internal/models"
	"famledger/internal/pagination"
	"famledger/internal/scope"
)

// activeViewConcurrency bounds the scopes of one view computed in parallel.
const activeViewConcurrency = 4

// ActiveBudgetCache holds computed active-budget views, tagged by scope key.
type ActiveBudgetCache = cache.LRUCache[*ActiveBudgets]

// CreateBudgetInput describes the first period of a scope.
type CreateBudgetInput struct {
	Scope           scope.Scope
	Name            string
	Amount          decimal.Decimal
	Period          models.BudgetPeriod
	StartDate       time.Time
	RefreshDay      int // 0 means the start date's day
	RolloverEnabled bool
	AutoCalculated  bool
	CategoryBudgets []engine.Allocation
}

// CategoryBudgetsInput replaces the category allocation of a budget.
type CategoryBudgetsInput struct {
	Entries        []engine.Allocation
	AutoCalculated bool
}

// ActiveBudget is one budget's current period as shown to a user.
type ActiveBudget struct {
	BudgetID        string                  `json:"budget_id"`
	ScopeKey        string                  `json:"scope_key"`
	ScopeKind       scope.Kind              `json:"scope_kind"`
	DisplayName     string                  `json:"display_name"`
	Name            string                  `json:"name"`
	AccountBookID   string                  `json:"account_book_id"`
	AccountBookName string                  `json:"account_book_name"`
	Custodial       bool                    `json:"custodial"`
	Period          models.BudgetPeriod     `json:"period"`
	Amount          decimal.Decimal         `json:"amount"`
	RolloverEnabled bool                    `json:"rollover_enabled"`
	RolloverAmount  decimal.Decimal         `json:"rollover_amount"`
	Spent           decimal.Decimal         `json:"spent"`
	Remaining       decimal.Decimal         `json:"remaining"`
	Percentage      decimal.Decimal         `json:"percentage"`
	PeriodStart     time.Time               `json:"period_start"`
	PeriodEnd       time.Time               `json:"period_end"`
	CategoryBudgets []models.CategoryBudget `json:"category_budgets,omitempty"`
}

// ActiveBudgets is the answer to "which budgets apply to me on a date".
// Scopes whose figures could not be computed are listed in Unavailable.
type ActiveBudgets struct {
	AsOf        time.Time      `json:"as_of"`
	Budgets     []ActiveBudget `json:"budgets"`
	Unavailable []string       `json:"unavailable,omitempty"`
}

// budgetService handles budget-related business logic.
type budgetService struct {
	budgets   BudgetStore
	ledger    LedgerStore
	spend     SpendAggregator
	dir       Directory
	periods   PeriodEnsurer
	resolver  *ScopeResolver
	cache     *ActiveBudgetCache
	observers []ScopeObserver
	timeout   time.Duration
}

// BudgetServiceDeps groups the collaborators of the budget service.
type BudgetServiceDeps struct {
	Budgets            BudgetStore
	Ledger             LedgerStore
	Spend              SpendAggregator
	Directory          Directory
	Periods            PeriodEnsurer
	Cache              *ActiveBudgetCache // optional
	Observers          []ScopeObserver
	AggregationTimeout time.Duration
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(deps BudgetServiceDeps) BudgetServicer {
	timeout := deps.AggregationTimeout
	if timeout <= 0 {
		timeout = DefaultAggregationTimeout
	}
	return &budgetService{
		budgets:   deps.Budgets,
		ledger:    deps.Ledger,
		spend:     deps.Spend,
		dir:       deps.Directory,
		periods:   deps.Periods,
		resolver:  NewScopeResolver(deps.Directory, deps.Budgets),
		cache:     deps.Cache,
		observers: deps.Observers,
		timeout:   timeout,
	}
}

// CreateBudget creates the first period of a scope. Later periods are only
// ever created by the period generator.
func (s *budgetService) CreateBudget(ctx context.Context, userID string, input CreateBudgetInput) (*models.Budget, error) {
	if _, err := s.resolver.Resolve(ctx, userID, input.Scope); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if !input.Period.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be monthly or yearly")
	}
	if err := engine.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	start := engine.NormalizeDate(input.StartDate)
	refreshDay := input.RefreshDay
	if refreshDay == 0 {
		refreshDay = start.Day()
	}
	if err := engine.CheckStart(start, refreshDay); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	end, err := engine.PeriodEnd(input.Period, refreshDay, start)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	if err := s.checkCategories(ctx, input.Scope.AccountBookID, input.CategoryBudgets); err != nil {
		return nil, err
	}
	if err := engine.ValidateCategoryBudgets(input.Amount, input.CategoryBudgets, input.AutoCalculated); err != nil {
		return nil, err
	}
	amount := input.Amount
	if input.AutoCalculated {
		amount = engine.CategoryTotal(input.CategoryBudgets)
	}

	budget := &models.Budget{
		Name:                 strings.TrimSpace(input.Name),
		Amount:               amount,
		Period:               input.Period,
		StartDate:            start,
		EndDate:              end,
		RefreshDay:           refreshDay,
		RolloverEnabled:      input.RolloverEnabled,
		RolloverAmount:       decimal.Zero,
		EnableCategoryBudget: len(input.CategoryBudgets) > 0,
		AutoCalculated:       input.AutoCalculated,
		CategoryBudgets:      toCategoryBudgets(input.CategoryBudgets),
	}
	budget.SetScope(input.Scope)

	stored, err := s.budgets.Bootstrap(ctx, budget)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.NewScopeEvent(stored.ScopeKey, events.ReasonBudgetCreated,
		engine.PeriodLabel(stored.Period, stored.StartDate), stored.ID))
	return stored, nil
}

// GetActiveBudgets ensures and returns the current period of every scope
// visible to the user on asOf.
func (s *budgetService) GetActiveBudgets(ctx context.Context, userID string, asOf time.Time, view View) (*ActiveBudgets, error) {
	scopes, err := s.resolver.ActiveScopesFor(ctx, userID, view)
	if err != nil {
		return nil, err
	}
	return s.activeBudgets(ctx, "user:"+userID+":"+string(view), scopes, asOf)
}

// GetCustodialBudgets returns the current budgets of a family's custodial
// members. The caller must be a guardian of the family.
func (s *budgetService) GetCustodialBudgets(ctx context.Context, userID, familyID string, asOf time.Time) (*ActiveBudgets, error) {
	scopes, err := s.resolver.CustodialScopesFor(ctx, userID, familyID)
	if err != nil {
		return nil, err
	}
	return s.activeBudgets(ctx, "custodial:"+familyID, scopes, asOf)
}

func (s *budgetService) activeBudgets(ctx context.Context, owner string, scopes []ResolvedScope, asOf time.Time) (*ActiveBudgets, error) {
	asOf = engine.NormalizeDate(asOf)

	keys := make([]string, len(scopes))
	for i, rs := range scopes {
		keys[i] = rs.Scope.Key()
	}
	cacheKey := activeCacheKey(owner, asOf, keys)

	var gen uint64
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			return cached, nil
		}
		gen = s.cache.Generation()
	}

	type slot struct {
		budget      *ActiveBudget
		unavailable bool
	}
	slots := make([]slot, len(scopes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(activeViewConcurrency)
	for i := range scopes {
		g.Go(func() error {
			b, err := s.activeBudget(gctx, scopes[i], asOf)
			switch {
			case err == nil:
				slots[i].budget = b
			case apperrors.Is(err, apperrors.ErrScopeNotFound), apperrors.Is(err, apperrors.ErrPeriodNotFound):
				// No budget for this scope on this date.
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				logger.Get().Warnw("active budget unavailable",
					"error", err,
					"scope_key", keys[i],
					"as_of", asOf.Format(time.DateOnly),
				)
				slots[i].unavailable = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ActiveBudgets{AsOf: asOf, Budgets: []ActiveBudget{}}
	for i, sl := range slots {
		if sl.budget != nil {
			result.Budgets = append(result.Budgets, *sl.budget)
		}
		if sl.unavailable {
			result.Unavailable = append(result.Unavailable, keys[i])
		}
	}

	if s.cache != nil && len(result.Unavailable) == 0 {
		s.cache.SetIfCurrent(gen, cacheKey, result, keys...)
	}
	return result, nil
}

func (s *budgetService) activeBudget(ctx context.Context, rs ResolvedScope, asOf time.Time) (*ActiveBudget, error) {
	budget, err := s.periods.EnsureCurrentPeriod(ctx, rs.Scope.Key(), asOf)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	spent, err := s.spend.ExpenseTotal(sctx, rs.Scope, budget.StartDate, budget.EndDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAggregationUnavailable, err)
	}

	rollover := engine.CarriedIn(budget)
	remaining, pct := engine.Progress(budget.Amount, rollover, spent)
	return &ActiveBudget{
		BudgetID:        budget.ID,
		ScopeKey:        budget.ScopeKey,
		ScopeKind:       budget.ScopeKind,
		DisplayName:     rs.DisplayName(budget.Name),
		Name:            budget.Name,
		AccountBookID:   budget.AccountBookID,
		AccountBookName: rs.AccountBookName,
		Custodial:       rs.Custodial,
		Period:          budget.Period,
		Amount:          budget.Amount,
		RolloverEnabled: budget.RolloverEnabled,
		RolloverAmount:  rollover,
		Spent:           spent,
		Remaining:       remaining,
		Percentage:      pct,
		PeriodStart:     budget.StartDate,
		PeriodEnd:       budget.EndDate,
		CategoryBudgets: budget.CategoryBudgets,
	}, nil
}

// GetRolloverHistory returns the ledger of a scope, newest period first.
func (s *budgetService) GetRolloverHistory(ctx context.Context, userID, scopeKey string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	sc, err := scope.Parse(scopeKey)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if _, err := s.resolver.Resolve(ctx, userID, sc); err != nil {
		return nil, err
	}
	return s.ledger.ListByScope(ctx, scopeKey, page)
}

// UpdateCategoryBudgets validates and stores a new category allocation.
// Closed periods are frozen and cannot be edited.
func (s *budgetService) UpdateCategoryBudgets(ctx context.Context, userID, budgetID string, input CategoryBudgetsInput) (*models.Budget, error) {
	budget, err := s.budgets.GetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolver.Resolve(ctx, userID, budget.Scope()); err != nil {
		return nil, err
	}

	label := engine.PeriodLabel(budget.Period, budget.StartDate)
	if _, err := s.ledger.Get(ctx, budget.ScopeKey, label); err == nil {
		return nil, apperrors.ErrBudgetClosed
	} else if !apperrors.Is(err, apperrors.ErrLedgerNotFound) {
		return nil, err
	}

	if err := s.checkCategories(ctx, budget.AccountBookID, input.Entries); err != nil {
		return nil, err
	}
	if err := engine.ValidateCategoryBudgets(budget.Amount, input.Entries, input.AutoCalculated); err != nil {
		return nil, err
	}

	amount := budget.Amount
	if input.AutoCalculated {
		amount = engine.CategoryTotal(input.Entries)
	}

	updated, err := s.budgets.ReplaceCategoryBudgets(ctx, budgetID, amount, input.AutoCalculated, toCategoryBudgets(input.Entries))
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.NewScopeEvent(budget.ScopeKey, events.ReasonCategoryBudgetsUpdated, label, budgetID))
	return updated, nil
}

func (s *budgetService) checkCategories(ctx context.Context, bookID string, entries []engine.Allocation) error {
	for _, e := range entries {
		if e.CategoryID == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "category id is required")
		}
		category, err := s.dir.GetCategory(ctx, e.CategoryID)
		if err != nil {
			return err
		}
		if category.AccountBookID != bookID {
			return apperrors.ErrInvalidCategory
		}
	}
	return nil
}

func (s *budgetService) notify(ctx context.Context, ev events.ScopeEvent) {
	for _, o := range s.observers {
		o.ScopeChanged(ctx, ev)
	}
}

func toCategoryBudgets(entries []engine.Allocation) []models.CategoryBudget {
	if len(entries) == 0 {
		return nil
	}
	out := make([]models.CategoryBudget, len(entries))
	for i, e := range entries {
		out[i] = models.CategoryBudget{CategoryID: e.CategoryID, Amount: e.Amount}
	}
	return out
}

// activeCacheKey builds the cache key of a view from its owner, the day it
// was computed for and the sorted set of scopes it covers.
func activeCacheKey(owner string, asOf time.Time, keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return owner + "|" + asOf.Format(time.DateOnly) + "|" + strings.Join(sorted, ",")
}

// CacheInvalidator drops cached views of a scope whenever it changes.
type CacheInvalidator struct {
	cache *ActiveBudgetCache
}

// NewCacheInvalidator creates a ScopeObserver for c.
func NewCacheInvalidator(c *ActiveBudgetCache) *CacheInvalidator {
	return &CacheInvalidator{cache: c}
}

// ScopeChanged implements ScopeObserver.
func (ci *CacheInvalidator) ScopeChanged(_ context.Context, ev events.ScopeEvent) {
	ci.cache.InvalidateTag(ev.ScopeKey)
}

// HandleRemote applies an event received from another process.
func (ci *CacheInvalidator) HandleRemote(ctx context.Context, ev events.ScopeEvent) error {
	ci.ScopeChanged(ctx, ev)
	return nil
}
