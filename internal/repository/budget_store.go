// Package repository implements the engine's storage contracts on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "famledger/internal/errors"
	"famledger/internal/models"
)

// BudgetStore stores budget periods in the budgets and category_budgets tables.
type BudgetStore struct {
	db *gorm.DB
}

// NewBudgetStore creates a new BudgetStore.
func NewBudgetStore(db *gorm.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

func (s *BudgetStore) withCategories(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("CategoryBudgets", func(db *gorm.DB) *gorm.DB {
		return db.Order("category_id ASC")
	})
}

func (s *BudgetStore) first(q *gorm.DB, notFound *apperrors.AppError) (*models.Budget, error) {
	var budget models.Budget
	if err := q.First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// Latest returns the most recent period of the scope.
func (s *BudgetStore) Latest(ctx context.Context, scopeKey string) (*models.Budget, error) {
	q := s.withCategories(ctx).Where("scope_key = ?", scopeKey).Order("start_date DESC")
	return s.first(q, apperrors.ErrScopeNotFound)
}

// GetByID returns a budget period by ID.
func (s *BudgetStore) GetByID(ctx context.Context, id string) (*models.Budget, error) {
	q := s.db.WithContext(ctx).
		Preload("CategoryBudgets", func(db *gorm.DB) *gorm.DB { return db.Order("category_id ASC") }).
		Preload("CategoryBudgets.Category").
		Where("id = ?", id)
	return s.first(q, apperrors.ErrBudgetNotFound)
}

// FindCovering returns the period of the scope that contains t.
func (s *BudgetStore) FindCovering(ctx context.Context, scopeKey string, t time.Time) (*models.Budget, error) {
	q := s.withCategories(ctx).
		Where("scope_key = ? AND start_date <= ? AND end_date > ?", scopeKey, t.UTC(), t.UTC())
	return s.first(q, apperrors.ErrPeriodNotFound)
}

// CreatePeriod inserts b and its category budgets. The unique index on
// (scope_key, start_date) arbitrates concurrent inserts: the loser gets the
// winner's row back with created set to false.
func (s *BudgetStore) CreatePeriod(ctx context.Context, b *models.Budget) (*models.Budget, bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = insertPeriod(tx, b)
		return err
	})
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if created {
		return b, true, nil
	}

	q := s.withCategories(ctx).Where("scope_key = ? AND start_date = ?", b.ScopeKey, b.StartDate.UTC())
	existing, err := s.first(q, apperrors.ErrInternalServer)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Bootstrap inserts the first period of a new scope. The scope is claimed in
// budget_scopes in the same transaction, so of any number of concurrent
// bootstraps only one commits a period, whatever their start dates. The
// others get ErrBudgetExists.
func (s *BudgetStore) Bootstrap(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_key"}},
			DoNothing: true,
		}).Create(&models.BudgetScope{ScopeKey: b.ScopeKey})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrBudgetExists
		}

		created, err := insertPeriod(tx, b)
		if err != nil {
			return err
		}
		if !created {
			return apperrors.ErrBudgetExists
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return b, nil
}

func insertPeriod(tx *gorm.DB, b *models.Budget) (bool, error) {
	categories := b.CategoryBudgets
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_key"}, {Name: "start_date"}},
			DoNothing: true,
		}).
		Create(b)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if len(categories) == 0 {
		return true, nil
	}

	rows := make([]models.CategoryBudget, len(categories))
	for i, cb := range categories {
		rows[i] = models.CategoryBudget{BudgetID: b.ID, CategoryID: cb.CategoryID, Amount: cb.Amount}
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return false, err
	}
	b.CategoryBudgets = rows
	return true, nil
}

// ListPeriods returns every period of the scope, oldest first.
func (s *BudgetStore) ListPeriods(ctx context.Context, scopeKey string) ([]models.Budget, error) {
	var budgets []models.Budget
	if err := s.withCategories(ctx).Where("scope_key = ?", scopeKey).Order("start_date ASC").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budgets, nil
}

// StaleScopeKeys returns the scopes whose latest period ended on or before asOf.
func (s *BudgetStore) StaleScopeKeys(ctx context.Context, asOf time.Time) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&models.Budget{}).
		Group("scope_key").
		Having("MAX(end_date) <= ?", asOf.UTC()).
		Order("scope_key ASC").
		Pluck("scope_key", &keys).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return keys, nil
}

// ScopeKeysInBooks returns the distinct scope keys with at least one period
// in any of the given account books.
func (s *BudgetStore) ScopeKeysInBooks(ctx context.Context, bookIDs []string) ([]string, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}
	var keys []string
	err := s.db.WithContext(ctx).Model(&models.Budget{}).
		Distinct("scope_key").
		Where("account_book_id IN ?", bookIDs).
		Order("scope_key ASC").
		Pluck("scope_key", &keys).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return keys, nil
}

// UpdateRolloverAmount overwrites the cached carry-in of a period.
func (s *BudgetStore) UpdateRolloverAmount(ctx context.Context, budgetID string, amount decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&models.Budget{}).Where("id = ?", budgetID).Update("rollover_amount", amount)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrBudgetNotFound
	}
	return nil
}

// ReplaceCategoryBudgets swaps the category allocation of a budget.
func (s *BudgetStore) ReplaceCategoryBudgets(
	ctx context.Context,
	budgetID string,
	amount decimal.Decimal,
	autoCalculated bool,
	entries []models.CategoryBudget,
) (*models.Budget, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Budget{}).Where("id = ?", budgetID).Updates(map[string]interface{}{
			"amount":                 amount,
			"auto_calculated":        autoCalculated,
			"enable_category_budget": len(entries) > 0,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrBudgetNotFound
		}

		if err := tx.Unscoped().Where("budget_id = ?", budgetID).Delete(&models.CategoryBudget{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		rows := make([]models.CategoryBudget, len(entries))
		for i, e := range entries {
			rows[i] = models.CategoryBudget{BudgetID: budgetID, CategoryID: e.CategoryID, Amount: e.Amount}
		}
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetByID(ctx, budgetID)
}
