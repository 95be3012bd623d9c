package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerType tells whether a closed period ended under or over budget.
type LedgerType string

const (
	LedgerTypeSurplus LedgerType = "SURPLUS"
	LedgerTypeDeficit LedgerType = "DEFICIT"
)

// LedgerEntry is the immutable outcome of a closed budget period. At most one
// entry exists per (ScopeKey, Period).
type LedgerEntry struct {
	Record
	ScopeKey    string    `gorm:"type:varchar(160);not null;uniqueIndex:idx_budget_ledger_scope_period,priority:1" json:"scope_key"`
	BudgetID    string    `gorm:"type:uuid;not null;index" json:"budget_id"`
	Period      string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_budget_ledger_scope_period,priority:2" json:"period"`
	PeriodStart time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null;index" json:"period_end"`

	// Amount is the unsigned magnitude; Type carries the sign.
	Amount decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Type   LedgerType      `gorm:"type:varchar(16);not null" json:"type"`

	BudgetAmount     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"budget_amount"`
	PreviousRollover decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"previous_rollover"`
	Spent            decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"spent"`
}

// TableName pins the ledger table name.
func (LedgerEntry) TableName() string { return "budget_ledger" }

// Signed returns +Amount for a surplus and -Amount for a deficit.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Type == LedgerTypeDeficit {
		return e.Amount.Neg()
	}
	return e.Amount
}
