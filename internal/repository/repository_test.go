package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "famledger/internal/errors"
	"famledger/internal/models"
	"famledger/internal/pagination"
	"famledger/internal/scope"
	"famledger/internal/testutil"
)

func newPeriod(s scope.Scope, amount string, startY, startM, endY, endM int) *models.Budget {
	b := &models.Budget{
		Name:            "Groceries",
		Amount:          testutil.Decimal(amount),
		Period:          models.BudgetPeriodMonthly,
		StartDate:       testutil.Date(startY, time.Month(startM), 1),
		EndDate:         testutil.Date(endY, time.Month(endM), 1),
		RefreshDay:      1,
		RolloverEnabled: true,
	}
	b.SetScope(s)
	return b
}

func TestBudgetStore_CreatePeriod(t *testing.T) {
	t.Run("inserts_with_categories", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		store := NewBudgetStore(db)
		ctx := context.Background()

		b := newPeriod(scope.Personal("u1", "b1"), "1000", 2024, 1, 2024, 2)
		b.EnableCategoryBudget = true
		b.CategoryBudgets = []models.CategoryBudget{
			{CategoryID: "c1", Amount: testutil.Decimal("400")},
			{CategoryID: "c2", Amount: testutil.Decimal("600")},
		}

		got, created, err := store.CreatePeriod(ctx, b)
		testutil.AssertNoError(t, err)
		if !created {
			t.Fatal("expected created = true")
		}

		latest, err := store.Latest(ctx, b.ScopeKey)
		testutil.AssertNoError(t, err)
		if latest.ID != got.ID || len(latest.CategoryBudgets) != 2 {
			t.Errorf("unexpected latest %+v", latest)
		}
	})

	t.Run("duplicate_returns_existing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		store := NewBudgetStore(db)
		ctx := context.Background()
		s := scope.Personal("u1", "b1")

		first, _, err := store.CreatePeriod(ctx, newPeriod(s, "1000", 2024, 1, 2024, 2))
		testutil.AssertNoError(t, err)

		second, created, err := store.CreatePeriod(ctx, newPeriod(s, "999", 2024, 1, 2024, 2))
		testutil.AssertNoError(t, err)
		if created {
			t.Error("expected created = false for duplicate period")
		}
		if second.ID != first.ID || !second.Amount.Equal(testutil.Decimal("1000")) {
			t.Errorf("expected winner row back, got %+v", second)
		}

		var count int64
		db.Model(&models.Budget{}).Where("scope_key = ?", s.Key()).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 row, got %d", count)
		}
	})

	t.Run("concurrent_inserts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		store := NewBudgetStore(db)
		s := scope.General("f1", "b1")

		var wg sync.WaitGroup
		var mu sync.Mutex
		ids := map[string]bool{}
		createdCount := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b, created, err := store.CreatePeriod(context.Background(), newPeriod(s, "500", 2024, 3, 2024, 4))
				if err != nil {
					t.Errorf("CreatePeriod: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[b.ID] = true
				if created {
					createdCount++
				}
			}()
		}
		wg.Wait()

		if len(ids) != 1 || createdCount != 1 {
			t.Errorf("expected one winner, got ids=%v created=%d", ids, createdCount)
		}
	})
}

func TestBudgetStore_Bootstrap(t *testing.T) {
	t.Run("claims_scope", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		store := NewBudgetStore(db)
		ctx := context.Background()
		s := scope.Personal("u1", "b1")

		b := newPeriod(s, "1000", 2024, 1, 2024, 2)
		b.CategoryBudgets = []models.CategoryBudget{{CategoryID: "c1", Amount: testutil.Decimal("400")}}
		got, err := store.Bootstrap(ctx, b)
		testutil.AssertNoError(t, err)
		if got.ID == "" || len(got.CategoryBudgets) != 1 {
			t.Errorf("unexpected budget %+v", got)
		}

		var claimed int64
		db.Model(&models.BudgetScope{}).Where("scope_key = ?", s.Key()).Count(&claimed)
		if claimed != 1 {
			t.Errorf("expected scope to be registered, got %d rows", claimed)
		}
	})

	t.Run("claimed_scope_rejects_any_start_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		store := NewBudgetStore(db)
		ctx := context.Background()
		s := scope.Personal("u1", "b1")

		// A competing bootstrap has claimed the scope but its period is
		// not visible yet.
		if err := db.Create(&models.BudgetScope{ScopeKey: s.Key()}).Error; err != nil {
			t.Fatalf("failed to claim scope: %v", err)
		}

		_, err := store.Bootstrap(ctx, newPeriod(s, "1000", 2024, 5, 2024, 6))
		testutil.AssertAppError(t, err, "BUDGET_EXISTS")

		var count int64
		db.Model(&models.Budget{}).Where("scope_key = ?", s.Key()).Count(&count)
		if count != 0 {
			t.Errorf("expected no period rows, got %d", count)
		}
	})

	t.Run("concurrent_bootstraps_with_different_starts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		store := NewBudgetStore(db)
		s := scope.General("f1", "b1")

		var wg sync.WaitGroup
		var mu sync.Mutex
		won, lost := 0, 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(month int) {
				defer wg.Done()
				_, err := store.Bootstrap(context.Background(), newPeriod(s, "500", 2024, month, 2024, month+1))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won++
				case apperrors.Is(err, apperrors.ErrBudgetExists):
					lost++
				default:
					t.Errorf("Bootstrap: %v", err)
				}
			}(i + 1)
		}
		wg.Wait()

		if won != 1 || lost != 7 {
			t.Errorf("expected one winner, got won=%d lost=%d", won, lost)
		}
		var count int64
		db.Model(&models.Budget{}).Where("scope_key = ?", s.Key()).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 period, got %d", count)
		}
	})
}

func TestBudgetStore_ScopeKeysInBooks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewBudgetStore(db)
	ctx := context.Background()

	narrowed := scope.Personal("u1", "b1").WithCategory("c1")
	testutil.CreateTestBudget(t, db, scope.Personal("u1", "b1"), "100", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	testutil.CreateTestBudget(t, db, scope.Personal("u1", "b1"), "100", testutil.Date(2024, 2, 1), testutil.Date(2024, 3, 1))
	testutil.CreateTestBudget(t, db, narrowed, "50", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	testutil.CreateTestBudget(t, db, scope.Personal("u2", "b2"), "100", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))

	keys, err := store.ScopeKeysInBooks(ctx, []string{"b1"})
	testutil.AssertNoError(t, err)
	if len(keys) != 2 || keys[0] != "personal:u1:b1" || keys[1] != narrowed.Key() {
		t.Errorf("ScopeKeysInBooks() = %v", keys)
	}

	keys, err = store.ScopeKeysInBooks(ctx, nil)
	testutil.AssertNoError(t, err)
	if len(keys) != 0 {
		t.Errorf("expected no keys for no books, got %v", keys)
	}
}

func TestBudgetStore_Queries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewBudgetStore(db)
	ctx := context.Background()

	s1 := scope.Personal("u1", "b1")
	s2 := scope.Personal("u2", "b2")
	jan := testutil.CreateTestBudget(t, db, s1, "100", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	feb := testutil.CreateTestBudget(t, db, s1, "100", testutil.Date(2024, 2, 1), testutil.Date(2024, 3, 1))
	testutil.CreateTestBudget(t, db, s2, "100", testutil.Date(2024, 3, 1), testutil.Date(2024, 4, 1))

	latest, err := store.Latest(ctx, s1.Key())
	testutil.AssertNoError(t, err)
	if latest.ID != feb.ID {
		t.Errorf("Latest() = %s, want %s", latest.ID, feb.ID)
	}

	covering, err := store.FindCovering(ctx, s1.Key(), testutil.Date(2024, 1, 31))
	testutil.AssertNoError(t, err)
	if covering.ID != jan.ID {
		t.Errorf("FindCovering() = %s, want %s", covering.ID, jan.ID)
	}

	_, err = store.FindCovering(ctx, s1.Key(), testutil.Date(2024, 3, 1))
	testutil.AssertAppError(t, err, "PERIOD_NOT_FOUND")

	_, err = store.Latest(ctx, "personal:nobody:none")
	testutil.AssertAppError(t, err, "SCOPE_NOT_FOUND")

	periods, err := store.ListPeriods(ctx, s1.Key())
	testutil.AssertNoError(t, err)
	if len(periods) != 2 || periods[0].ID != jan.ID {
		t.Errorf("ListPeriods() returned %d periods", len(periods))
	}

	stale, err := store.StaleScopeKeys(ctx, testutil.Date(2024, 3, 1))
	testutil.AssertNoError(t, err)
	if len(stale) != 1 || stale[0] != s1.Key() {
		t.Errorf("StaleScopeKeys() = %v, want [%s]", stale, s1.Key())
	}

	testutil.AssertNoError(t, store.UpdateRolloverAmount(ctx, feb.ID, testutil.Decimal("-12.5")))
	got, err := store.GetByID(ctx, feb.ID)
	testutil.AssertNoError(t, err)
	if !got.RolloverAmount.Equal(testutil.Decimal("-12.5")) {
		t.Errorf("rollover = %s, want -12.5", got.RolloverAmount)
	}

	testutil.AssertAppError(t, store.UpdateRolloverAmount(ctx, "missing", testutil.Decimal("1")), "BUDGET_NOT_FOUND")
}

func TestBudgetStore_ReplaceCategoryBudgets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewBudgetStore(db)
	ctx := context.Background()

	b := testutil.CreateTestBudget(t, db, scope.Personal("u1", "b1"), "100", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))

	_, err := store.ReplaceCategoryBudgets(ctx, b.ID, testutil.Decimal("100"), false, []models.CategoryBudget{
		{CategoryID: "c1", Amount: testutil.Decimal("60")},
	})
	testutil.AssertNoError(t, err)

	got, err := store.ReplaceCategoryBudgets(ctx, b.ID, testutil.Decimal("70"), true, []models.CategoryBudget{
		{CategoryID: "c1", Amount: testutil.Decimal("30")},
		{CategoryID: "c2", Amount: testutil.Decimal("40")},
	})
	testutil.AssertNoError(t, err)

	if !got.Amount.Equal(testutil.Decimal("70")) || !got.AutoCalculated || !got.EnableCategoryBudget {
		t.Errorf("unexpected budget %+v", got)
	}
	if len(got.CategoryBudgets) != 2 {
		t.Errorf("expected 2 category budgets, got %d", len(got.CategoryBudgets))
	}

	_, err = store.ReplaceCategoryBudgets(ctx, "missing", testutil.Decimal("1"), false, nil)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
}

func TestLedgerStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	store := NewLedgerStore(db)
	ctx := context.Background()

	s := scope.Personal("u1", "b1")
	jan := testutil.CreateTestBudget(t, db, s, "1000", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	feb := testutil.CreateTestBudget(t, db, s, "1000", testutil.Date(2024, 2, 1), testutil.Date(2024, 3, 1))

	entry := func(b *models.Budget, period string, typ models.LedgerType, amount string) *models.LedgerEntry {
		return &models.LedgerEntry{
			ScopeKey: b.ScopeKey, BudgetID: b.ID, Period: period,
			PeriodStart: b.StartDate, PeriodEnd: b.EndDate,
			Amount: testutil.Decimal(amount), Type: typ,
			BudgetAmount: b.Amount, PreviousRollover: b.RolloverAmount, Spent: testutil.Decimal("0"),
		}
	}

	first, created, err := store.Append(ctx, entry(jan, "2024-01", models.LedgerTypeSurplus, "200"))
	testutil.AssertNoError(t, err)
	if !created {
		t.Fatal("expected created = true")
	}

	again, created, err := store.Append(ctx, entry(jan, "2024-01", models.LedgerTypeDeficit, "999"))
	testutil.AssertNoError(t, err)
	if created || again.ID != first.ID || again.Type != models.LedgerTypeSurplus {
		t.Errorf("second append must return the stored entry, got %+v", again)
	}

	_, _, err = store.Append(ctx, entry(feb, "2024-02", models.LedgerTypeDeficit, "100"))
	testutil.AssertNoError(t, err)

	byEnd, err := store.GetByPeriodEnd(ctx, s.Key(), testutil.Date(2024, 2, 1))
	testutil.AssertNoError(t, err)
	if byEnd.Period != "2024-01" {
		t.Errorf("GetByPeriodEnd() = %s, want 2024-01", byEnd.Period)
	}

	_, err = store.Get(ctx, s.Key(), "2024-03")
	testutil.AssertAppError(t, err, "LEDGER_ENTRY_NOT_FOUND")

	page, err := store.ListByScope(ctx, s.Key(), pagination.PageRequest{Page: 1, PageSize: 1})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 || page.TotalPages != 2 || len(page.Data) != 1 || page.Data[0].Period != "2024-02" {
		t.Errorf("unexpected page %+v", page)
	}

	all, err := store.ListAll(ctx, s.Key())
	testutil.AssertNoError(t, err)
	if len(all) != 2 || all[0].Period != "2024-01" {
		t.Errorf("ListAll() = %+v", all)
	}
}

func TestSpendAggregator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	agg := NewSpendAggregator(db)
	ctx := context.Background()

	parent := testutil.CreateTestUserWithName(t, db, "Parent")
	family, _ := testutil.CreateTestFamily(t, db, parent)
	child := testutil.CreateTestCustodialMember(t, db, family.ID, "Kid")
	book := testutil.CreateTestFamilyBook(t, db, family, "Household")
	food := testutil.CreateTestCategory(t, db, book.ID, "Food")

	testutil.CreateTestExpense(t, db, parent.ID, book.ID, "100.10", testutil.Date(2024, 1, 1))
	testutil.CreateTestExpense(t, db, parent.ID, book.ID, "50.20", testutil.Date(2024, 1, 31), testutil.WithCategory(food.ID))
	testutil.CreateTestExpense(t, db, parent.ID, book.ID, "25", testutil.Date(2024, 1, 15), testutil.WithMember(child.ID), testutil.WithCategory(food.ID))
	testutil.CreateTestExpense(t, db, parent.ID, book.ID, "999", testutil.Date(2024, 2, 1))
	testutil.CreateTestExpense(t, db, parent.ID, book.ID, "500", testutil.Date(2024, 1, 10), testutil.AsIncome())

	start, end := testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1)
	tests := []struct {
		name  string
		scope scope.Scope
		want  string
	}{
		{"personal", scope.Personal(parent.ID, book.ID), "150.30"},
		{"general", scope.General(family.ID, book.ID), "175.30"},
		{"member", scope.Member(child.ID, book.ID), "25"},
		{"general_category", scope.General(family.ID, book.ID).WithCategory(food.ID), "75.20"},
		{"empty", scope.Personal("nobody", book.ID), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := agg.ExpenseTotal(ctx, tt.scope, start, end)
			testutil.AssertNoError(t, err)
			if !got.Equal(testutil.Decimal(tt.want)) {
				t.Errorf("ExpenseTotal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDirectory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	dir := NewDirectory(db)
	ctx := context.Background()

	alice := testutil.CreateTestUserWithName(t, db, "Alice")
	family, _ := testutil.CreateTestFamily(t, db, alice)
	testutil.CreateTestCustodialMember(t, db, family.ID, "Zed")
	testutil.CreateTestCustodialMember(t, db, family.ID, "Amy")
	testutil.CreateTestPersonalBook(t, db, alice.ID, "Wallet")
	testutil.CreateTestFamilyBook(t, db, family, "Household")

	memberships, err := dir.ListFamilyMemberships(ctx, alice.ID)
	testutil.AssertNoError(t, err)
	if len(memberships) != 1 || memberships[0].Family == nil || memberships[0].Family.ID != family.ID {
		t.Errorf("unexpected memberships %+v", memberships)
	}

	personal, err := dir.ListPersonalBooks(ctx, alice.ID)
	testutil.AssertNoError(t, err)
	if len(personal) != 1 || personal[0].Name != "Wallet" {
		t.Errorf("unexpected personal books %+v", personal)
	}

	shared, err := dir.ListFamilyBooks(ctx, family.ID)
	testutil.AssertNoError(t, err)
	if len(shared) != 1 || shared[0].Name != "Household" {
		t.Errorf("unexpected family books %+v", shared)
	}

	kids, err := dir.ListCustodialMembers(ctx, family.ID)
	testutil.AssertNoError(t, err)
	if len(kids) != 2 || kids[0].Name != "Amy" {
		t.Errorf("unexpected custodial members %+v", kids)
	}

	_, err = dir.GetUser(ctx, "missing")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	_, err = dir.GetAccountBook(ctx, "missing")
	testutil.AssertAppError(t, err, "ACCOUNT_BOOK_NOT_FOUND")
}
