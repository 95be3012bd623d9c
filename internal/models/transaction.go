package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction is a booked income or expense. Rows are written by the
// transaction subsystem; the engine only aggregates them.
type Transaction struct {
	Base
	UserID         string          `gorm:"type:uuid;not null;index" json:"user_id"`
	FamilyMemberID *string         `gorm:"type:uuid;index" json:"family_member_id,omitempty"`
	AccountBookID  string          `gorm:"type:uuid;not null;index:idx_transactions_book_date,priority:1" json:"account_book_id"`
	CategoryID     *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type           TransactionType `gorm:"type:varchar(16);not null" json:"type"`
	Amount         decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Description    string          `json:"description"`
	Date           time.Time       `gorm:"not null;index:idx_transactions_book_date,priority:2" json:"date"`
}
