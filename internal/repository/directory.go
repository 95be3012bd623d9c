package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "famledger/internal/errors"
	"famledger/internal/models"
)

// Directory reads users, families and account books. Those tables are owned
// by the account subsystem; this type never writes them.
type Directory struct {
	db *gorm.DB
}

// NewDirectory creates a new Directory.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func get[T any](ctx context.Context, db *gorm.DB, id string, notFound *apperrors.AppError) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &row, nil
}

// GetUser returns a user by ID.
func (d *Directory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return get[models.User](ctx, d.db, userID, apperrors.ErrUserNotFound)
}

// GetFamily returns a family by ID.
func (d *Directory) GetFamily(ctx context.Context, familyID string) (*models.Family, error) {
	return get[models.Family](ctx, d.db, familyID, apperrors.ErrFamilyNotFound)
}

// GetFamilyMember returns a family member by ID.
func (d *Directory) GetFamilyMember(ctx context.Context, memberID string) (*models.FamilyMember, error) {
	return get[models.FamilyMember](ctx, d.db, memberID, apperrors.ErrMemberNotFound)
}

// GetAccountBook returns an account book by ID.
func (d *Directory) GetAccountBook(ctx context.Context, bookID string) (*models.AccountBook, error) {
	return get[models.AccountBook](ctx, d.db, bookID, apperrors.ErrAccountBookNotFound)
}

// GetCategory returns a category by ID.
func (d *Directory) GetCategory(ctx context.Context, categoryID string) (*models.Category, error) {
	return get[models.Category](ctx, d.db, categoryID, apperrors.ErrCategoryNotFound)
}

// ListFamilyMemberships returns the user's memberships with their family.
func (d *Directory) ListFamilyMemberships(ctx context.Context, userID string) ([]models.FamilyMember, error) {
	var members []models.FamilyMember
	err := d.db.WithContext(ctx).Preload("Family").
		Where("user_id = ?", userID).
		Order("family_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return members, nil
}

// ListPersonalBooks returns the personal account books the user owns.
func (d *Directory) ListPersonalBooks(ctx context.Context, userID string) ([]models.AccountBook, error) {
	var books []models.AccountBook
	err := d.db.WithContext(ctx).
		Where("owner_user_id = ? AND type = ?", userID, models.AccountBookTypePersonal).
		Order("name ASC, id ASC").
		Find(&books).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return books, nil
}

// ListFamilyBooks returns the account books shared by a family.
func (d *Directory) ListFamilyBooks(ctx context.Context, familyID string) ([]models.AccountBook, error) {
	var books []models.AccountBook
	err := d.db.WithContext(ctx).
		Where("family_id = ? AND type = ?", familyID, models.AccountBookTypeFamily).
		Order("name ASC, id ASC").
		Find(&books).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return books, nil
}

// ListCustodialMembers returns the family's members that have no login.
func (d *Directory) ListCustodialMembers(ctx context.Context, familyID string) ([]models.FamilyMember, error) {
	var members []models.FamilyMember
	err := d.db.WithContext(ctx).
		Where("family_id = ? AND is_custodial = ?", familyID, true).
		Order("name ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return members, nil
}
