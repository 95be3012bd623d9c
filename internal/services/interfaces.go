package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"famledger/internal/events"
	"famledger/internal/models"
	"famledger/internal/pagination"
	"famledger/internal/scope"
)

// BudgetStore persists budget periods. Period rows are unique per
// (scope key, start date); the store enforces that at the storage layer.
type BudgetStore interface {
	// Latest returns the period with the greatest start date of the scope.
	Latest(ctx context.Context, scopeKey string) (*models.Budget, error)
	GetByID(ctx context.Context, id string) (*models.Budget, error)
	// FindCovering returns the period with start <= t < end.
	FindCovering(ctx context.Context, scopeKey string, t time.Time) (*models.Budget, error)
	// CreatePeriod inserts b unless a period with the same scope key and
	// start date exists, in which case the existing row is returned and
	// created is false.
	CreatePeriod(ctx context.Context, b *models.Budget) (budget *models.Budget, created bool, err error)
	// Bootstrap inserts the first period of a scope that has never had one.
	// Concurrent callers are arbitrated by the store; every loser gets
	// ErrBudgetExists.
	Bootstrap(ctx context.Context, b *models.Budget) (*models.Budget, error)
	// ListPeriods returns every period of the scope, oldest first.
	ListPeriods(ctx context.Context, scopeKey string) ([]models.Budget, error)
	// StaleScopeKeys returns the scopes whose latest period ended on or before asOf.
	StaleScopeKeys(ctx context.Context, asOf time.Time) ([]string, error)
	ScopeKeyLister
	UpdateRolloverAmount(ctx context.Context, budgetID string, amount decimal.Decimal) error
	// ReplaceCategoryBudgets swaps the category allocation of a budget and
	// stores its (possibly recomputed) amount in one transaction.
	ReplaceCategoryBudgets(ctx context.Context, budgetID string, amount decimal.Decimal, autoCalculated bool, entries []models.CategoryBudget) (*models.Budget, error)
}

// ScopeKeyLister lists the scopes that have budgets in a set of account books.
type ScopeKeyLister interface {
	ScopeKeysInBooks(ctx context.Context, bookIDs []string) ([]string, error)
}

// LedgerStore persists closed-period outcomes. Entries are write-once and
// unique per (scope key, period label).
type LedgerStore interface {
	// Append inserts entry unless one exists for its scope and period, in
	// which case the existing entry is returned and created is false.
	Append(ctx context.Context, entry *models.LedgerEntry) (stored *models.LedgerEntry, created bool, err error)
	Get(ctx context.Context, scopeKey, period string) (*models.LedgerEntry, error)
	// GetByPeriodEnd returns the entry of the period that ended at end.
	GetByPeriodEnd(ctx context.Context, scopeKey string, end time.Time) (*models.LedgerEntry, error)
	// ListByScope returns a page of entries, newest period first.
	ListByScope(ctx context.Context, scopeKey string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)
	// ListAll returns every entry of the scope, oldest period first.
	ListAll(ctx context.Context, scopeKey string) ([]models.LedgerEntry, error)
}

// SpendAggregator reports the total expense of a scope in [start, end).
type SpendAggregator interface {
	ExpenseTotal(ctx context.Context, s scope.Scope, start, end time.Time) (decimal.Decimal, error)
}

// Directory reads the users, families and account books budgets belong to.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetFamily(ctx context.Context, familyID string) (*models.Family, error)
	GetFamilyMember(ctx context.Context, memberID string) (*models.FamilyMember, error)
	GetAccountBook(ctx context.Context, bookID string) (*models.AccountBook, error)
	GetCategory(ctx context.Context, categoryID string) (*models.Category, error)
	// ListFamilyMemberships returns the user's memberships with Family loaded.
	ListFamilyMemberships(ctx context.Context, userID string) ([]models.FamilyMember, error)
	// ListPersonalBooks returns the personal account books the user owns.
	ListPersonalBooks(ctx context.Context, userID string) ([]models.AccountBook, error)
	ListFamilyBooks(ctx context.Context, familyID string) ([]models.AccountBook, error)
	ListCustodialMembers(ctx context.Context, familyID string) ([]models.FamilyMember, error)
}

// ScopeObserver is told about every change to a scope's budgets or ledger.
// Implementations must not block.
type ScopeObserver interface {
	ScopeChanged(ctx context.Context, ev events.ScopeEvent)
}

// PeriodEnsurer advances a scope's periods up to a date.
type PeriodEnsurer interface {
	EnsureCurrentPeriod(ctx context.Context, scopeKey string, asOf time.Time) (*models.Budget, error)
	Advance(ctx context.Context, scopeKey string, asOf time.Time) (*AdvanceResult, error)
	ReconcileScope(ctx context.Context, scopeKey string) (int, error)
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, userID string, input CreateBudgetInput) (*models.Budget, error)
	GetActiveBudgets(ctx context.Context, userID string, asOf time.Time, view View) (*ActiveBudgets, error)
	GetCustodialBudgets(ctx context.Context, userID, familyID string, asOf time.Time) (*ActiveBudgets, error)
	GetRolloverHistory(ctx context.Context, userID, scopeKey string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)
	UpdateCategoryBudgets(ctx context.Context, userID, budgetID string, input CategoryBudgetsInput) (*models.Budget, error)
}

// MaintenanceServicer defines the operator-facing engine operations.
type MaintenanceServicer interface {
	CloseAndAdvance(ctx context.Context, scopeKey string, asOf time.Time) (*AdvanceResult, error)
	Sweep(ctx context.Context, asOf time.Time) (*SweepResult, error)
	Reconcile(ctx context.Context, scopeKey string) (int, error)
	History(ctx context.Context, scopeKey string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
