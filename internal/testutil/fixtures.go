package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"famledger/internal/models"
	"famledger/internal/scope"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Decimal parses s and panics on malformed input.
func Decimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestUser creates a user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := nextID()
	return CreateTestUserWithName(t, db, fmt.Sprintf("User %d", n))
}

// CreateTestUserWithName creates a user with the given display name.
func CreateTestUserWithName(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Email: fmt.Sprintf("user%d@test.com", nextID()),
		Name:  name,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestPersonalBook creates a personal account book owned by userID.
func CreateTestPersonalBook(t *testing.T, db *gorm.DB, userID, name string) *models.AccountBook {
	t.Helper()

	book := &models.AccountBook{
		Name:        name,
		Type:        models.AccountBookTypePersonal,
		OwnerUserID: userID,
	}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("failed to create test account book: %v", err)
	}
	return book
}

// CreateTestFamily creates a family with the creator as its admin member.
func CreateTestFamily(t *testing.T, db *gorm.DB, creator *models.User) (*models.Family, *models.FamilyMember) {
	t.Helper()

	family := &models.Family{
		Name:      fmt.Sprintf("Family %d", nextID()),
		CreatedBy: creator.ID,
	}
	if err := db.Create(family).Error; err != nil {
		t.Fatalf("failed to create test family: %v", err)
	}
	admin := CreateTestFamilyMember(t, db, family.ID, creator, models.FamilyRoleAdmin)
	return family, admin
}

// CreateTestFamilyMember adds user to the family with the given role.
func CreateTestFamilyMember(t *testing.T, db *gorm.DB, familyID string, user *models.User, role models.FamilyRole) *models.FamilyMember {
	t.Helper()

	userID := user.ID
	member := &models.FamilyMember{
		FamilyID: familyID,
		UserID:   &userID,
		Name:     user.Name,
		Role:     role,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test family member: %v", err)
	}
	return member
}

// CreateTestCustodialMember adds a member without a login to the family.
func CreateTestCustodialMember(t *testing.T, db *gorm.DB, familyID, name string) *models.FamilyMember {
	t.Helper()

	member := &models.FamilyMember{
		FamilyID:    familyID,
		Name:        name,
		Role:        models.FamilyRoleMember,
		IsCustodial: true,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test custodial member: %v", err)
	}
	return member
}

// CreateTestFamilyBook creates a shared account book of the family.
func CreateTestFamilyBook(t *testing.T, db *gorm.DB, family *models.Family, name string) *models.AccountBook {
	t.Helper()

	familyID := family.ID
	book := &models.AccountBook{
		Name:        name,
		Type:        models.AccountBookTypeFamily,
		OwnerUserID: family.CreatedBy,
		FamilyID:    &familyID,
	}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("failed to create test family book: %v", err)
	}
	return book
}

// CreateTestCategory creates an expense category in the account book.
func CreateTestCategory(t *testing.T, db *gorm.DB, accountBookID, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		AccountBookID: accountBookID,
		Name:          name,
		Type:          models.CategoryTypeExpense,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// TransactionOption customises a fixture transaction.
type TransactionOption func(*models.Transaction)

// WithMember attributes the transaction to a family member.
func WithMember(memberID string) TransactionOption {
	return func(tx *models.Transaction) { tx.FamilyMemberID = &memberID }
}

// WithCategory books the transaction in a category.
func WithCategory(categoryID string) TransactionOption {
	return func(tx *models.Transaction) { tx.CategoryID = &categoryID }
}

// AsIncome marks the transaction as income.
func AsIncome() TransactionOption {
	return func(tx *models.Transaction) { tx.Type = models.TransactionTypeIncome }
}

// CreateTestExpense books an expense of amount in the account book on date.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID, accountBookID, amount string, date time.Time, opts ...TransactionOption) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:        userID,
		AccountBookID: accountBookID,
		Type:          models.TransactionTypeExpense,
		Amount:        Decimal(amount),
		Description:   fmt.Sprintf("Test expense %d", nextID()),
		Date:          date.UTC(),
	}
	for _, opt := range opts {
		opt(tx)
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// BudgetOption customises a fixture budget.
type BudgetOption func(*models.Budget)

// WithRollover sets the carried-in amount and enables rollover.
func WithRollover(amount string) BudgetOption {
	return func(b *models.Budget) {
		b.RolloverEnabled = true
		b.RolloverAmount = Decimal(amount)
	}
}

// WithoutRollover disables rollover.
func WithoutRollover() BudgetOption {
	return func(b *models.Budget) {
		b.RolloverEnabled = false
		b.RolloverAmount = decimal.Zero
	}
}

// Yearly turns the fixture into a yearly budget.
func Yearly() BudgetOption {
	return func(b *models.Budget) { b.Period = models.BudgetPeriodYearly }
}

// WithRefreshDay sets the refresh anchor day.
func WithRefreshDay(day int) BudgetOption {
	return func(b *models.Budget) { b.RefreshDay = day }
}

// CreateTestBudget stores one period of a budget for s. The period type
// defaults to monthly with rollover enabled.
func CreateTestBudget(t *testing.T, db *gorm.DB, s scope.Scope, amount string, start, end time.Time, opts ...BudgetOption) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		Name:            fmt.Sprintf("Test Budget %d", nextID()),
		Amount:          Decimal(amount),
		Period:          models.BudgetPeriodMonthly,
		StartDate:       start.UTC(),
		EndDate:         end.UTC(),
		RefreshDay:      start.Day(),
		RolloverEnabled: true,
		RolloverAmount:  decimal.Zero,
	}
	budget.SetScope(s)
	for _, opt := range opts {
		opt(budget)
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	claim := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BudgetScope{ScopeKey: budget.ScopeKey})
	if err := claim.Error; err != nil {
		t.Fatalf("failed to register test budget scope: %v", err)
	}
	return budget
}

// CreateTestLedgerEntry stores a ledger entry for budget.
func CreateTestLedgerEntry(t *testing.T, db *gorm.DB, budget *models.Budget, period string, typ models.LedgerType, amount string) *models.LedgerEntry {
	t.Helper()

	entry := &models.LedgerEntry{
		ScopeKey:         budget.ScopeKey,
		BudgetID:         budget.ID,
		Period:           period,
		PeriodStart:      budget.StartDate,
		PeriodEnd:        budget.EndDate,
		Amount:           Decimal(amount),
		Type:             typ,
		BudgetAmount:     budget.Amount,
		PreviousRollover: budget.RolloverAmount,
		Spent:            decimal.Zero,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to create test ledger entry: %v", err)
	}
	return entry
}
