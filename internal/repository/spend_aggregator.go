package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"famledger/internal/engine"
	"famledger/internal/models"
	"famledger/internal/scope"
)

// SpendAggregator sums expense transactions per scope. It stands in for the
// transaction subsystem when both share a database.
type SpendAggregator struct {
	db *gorm.DB
}

// NewSpendAggregator creates a new SpendAggregator.
func NewSpendAggregator(db *gorm.DB) *SpendAggregator {
	return &SpendAggregator{db: db}
}

// ExpenseTotal returns the expenses booked for s in [start, end).
//
// PERSONAL counts the owner's own expenses that are not attributed to a
// family member, GENERAL counts every expense of the book, and MEMBER counts
// the expenses attributed to that member.
func (a *SpendAggregator) ExpenseTotal(ctx context.Context, s scope.Scope, start, end time.Time) (decimal.Decimal, error) {
	q := a.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("account_book_id = ? AND type = ?", s.AccountBookID, models.TransactionTypeExpense).
		Where("date >= ? AND date < ?", start.UTC(), end.UTC())

	switch s.Kind {
	case scope.KindPersonal:
		q = q.Where("user_id = ? AND family_member_id IS NULL", s.OwnerID)
	case scope.KindGeneral:
	case scope.KindMember:
		q = q.Where("family_member_id = ?", s.OwnerID)
	default:
		return decimal.Zero, fmt.Errorf("aggregate spend: %w", scope.ErrInvalidScope)
	}
	if s.CategoryID != "" {
		q = q.Where("category_id = ?", s.CategoryID)
	}

	var total decimal.Decimal
	if err := q.Select("COALESCE(SUM(amount), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("aggregate spend for %s: %w", s.Key(), err)
	}
	return engine.Money(total), nil
}
