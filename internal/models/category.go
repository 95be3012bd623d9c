package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category represents a transaction category of an account book
type Category struct {
	Base
	AccountBookID string       `gorm:"type:uuid;not null;index" json:"account_book_id"`
	Name          string       `gorm:"not null" json:"name"`
	Type          CategoryType `gorm:"type:varchar(16);not null" json:"type"`
}
