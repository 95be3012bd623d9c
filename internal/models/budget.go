package models

import (
	"time"

	"github.com/shopspring/decimal"

	"famledger/internal/scope"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Valid reports whether p is a supported period type.
func (p BudgetPeriod) Valid() bool {
	return p == BudgetPeriodMonthly || p == BudgetPeriodYearly
}

// Budget is one period of a recurring allowance for a scope. Periods of a
// scope are contiguous half-open windows [StartDate, EndDate); at most one
// row exists per (ScopeKey, StartDate).
type Budget struct {
	Base
	ScopeKey      string     `gorm:"type:varchar(160);not null;uniqueIndex:idx_budgets_scope_start,priority:1" json:"scope_key"`
	ScopeKind     scope.Kind `gorm:"type:varchar(16);not null;index" json:"scope_kind"`
	OwnerID       string     `gorm:"type:uuid;not null;index" json:"owner_id"`
	AccountBookID string     `gorm:"type:uuid;not null;index" json:"account_book_id"`
	CategoryID    *string    `gorm:"type:uuid" json:"category_id,omitempty"`

	Name       string          `gorm:"not null" json:"name"`
	Amount     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Period     BudgetPeriod    `gorm:"type:varchar(16);not null" json:"period"`
	StartDate  time.Time       `gorm:"not null;uniqueIndex:idx_budgets_scope_start,priority:2" json:"start_date"`
	EndDate    time.Time       `gorm:"not null;index" json:"end_date"`
	RefreshDay int             `gorm:"not null" json:"refresh_day"`

	RolloverEnabled bool `gorm:"not null" json:"rollover_enabled"`
	// RolloverAmount is the signed amount carried in from the previous
	// period. It is a cached projection of that period's ledger entry.
	RolloverAmount decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"rollover_amount"`

	EnableCategoryBudget bool `gorm:"not null" json:"enable_category_budget"`
	AutoCalculated       bool `gorm:"not null" json:"auto_calculated"`

	// Relationships
	CategoryBudgets []CategoryBudget `gorm:"foreignKey:BudgetID" json:"category_budgets,omitempty"`
}

// Scope rebuilds the tagged scope from the denormalised columns.
func (b *Budget) Scope() scope.Scope {
	s := scope.Scope{Kind: b.ScopeKind, OwnerID: b.OwnerID, AccountBookID: b.AccountBookID}
	if b.CategoryID != nil {
		s.CategoryID = *b.CategoryID
	}
	return s
}

// SetScope fills the scope columns, including the derived key.
func (b *Budget) SetScope(s scope.Scope) {
	b.ScopeKey = s.Key()
	b.ScopeKind = s.Kind
	b.OwnerID = s.OwnerID
	b.AccountBookID = s.AccountBookID
	b.CategoryID = nil
	if s.CategoryID != "" {
		id := s.CategoryID
		b.CategoryID = &id
	}
}

// CategoryBudget is a sub-allocation of a budget to one category.
type CategoryBudget struct {
	Base
	BudgetID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_category_budgets_budget_category,priority:1" json:"budget_id"`
	CategoryID string          `gorm:"type:uuid;not null;uniqueIndex:idx_category_budgets_budget_category,priority:2" json:"category_id"`
	Amount     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// BudgetScope registers a scope when its first period is created. The
// primary key makes bootstrap a single insert that only one caller can win.
type BudgetScope struct {
	ScopeKey  string    `gorm:"type:varchar(160);primaryKey" json:"scope_key"`
	CreatedAt time.Time `json:"created_at"`
}
