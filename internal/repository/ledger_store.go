package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "famledger/internal/errors"
	"famledger/internal/models"
	"famledger/internal/pagination"
)

// LedgerStore stores closed-period outcomes in the budget_ledger table.
// Entries are never updated or deleted.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Append inserts entry. If the scope already has an entry for the period,
// nothing is written and the stored entry is returned with created false.
func (s *LedgerStore) Append(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_key"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected > 0 {
		return entry, true, nil
	}

	existing, err := s.Get(ctx, entry.ScopeKey, entry.Period)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *LedgerStore) first(q *gorm.DB) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := q.First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLedgerNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &entry, nil
}

// Get returns the entry of the scope for the given period label.
func (s *LedgerStore) Get(ctx context.Context, scopeKey, period string) (*models.LedgerEntry, error) {
	return s.first(s.db.WithContext(ctx).Where("scope_key = ? AND period = ?", scopeKey, period))
}

// GetByPeriodEnd returns the entry of the period that ended at end.
func (s *LedgerStore) GetByPeriodEnd(ctx context.Context, scopeKey string, end time.Time) (*models.LedgerEntry, error) {
	return s.first(s.db.WithContext(ctx).Where("scope_key = ? AND period_end = ?", scopeKey, end.UTC()))
}

// ListByScope returns a page of the scope's entries, newest period first.
func (s *LedgerStore) ListByScope(ctx context.Context, scopeKey string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("scope_key = ?", scopeKey).Session(&gorm.Session{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.LedgerEntry
	if err := base.Order("period_start DESC").Scopes(pagination.Paginate(page)).Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListAll returns every entry of the scope, oldest period first.
func (s *LedgerStore) ListAll(ctx context.Context, scopeKey string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := s.db.WithContext(ctx).Where("scope_key = ?", scopeKey).Order("period_start ASC").Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entries, nil
}
