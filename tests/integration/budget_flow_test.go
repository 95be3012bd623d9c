package integration

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"famledger/internal/models"
	"famledger/internal/scope"
	"famledger/internal/testutil"
)

func TestBudgetFlow_PersonalRolloverAcrossPeriods(t *testing.T) {
	app := setupApp(t)
	alice := testutil.CreateTestUserWithName(t, app.DB, "Alice")
	wallet := testutil.CreateTestPersonalBook(t, app.DB, alice.ID, "Wallet")
	food := testutil.CreateTestCategory(t, app.DB, wallet.ID, "Food")
	token := tokenFor(t, alice)
	scopeKey := scope.Personal(alice.ID, wallet.ID).Key()

	// Step 1: Create the first monthly period with a category allocation
	body := fmt.Sprintf(`{"scope_kind":"PERSONAL","owner_id":%q,"account_book_id":%q,"name":"Monthly",
		"amount":"1000","period":"monthly","start_date":"2024-01-01","rollover_enabled":true,
		"category_budgets":[{"category_id":%q,"amount":"400"}]}`, alice.ID, wallet.ID, food.ID)
	rec := app.request("POST", "/api/v1/budgets", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	january := parseJSON(t, rec)["budget"].(map[string]interface{})
	januaryID := january["id"].(string)
	if january["scope_key"] != scopeKey || january["end_date"] == nil {
		t.Errorf("unexpected budget %v", january)
	}

	// Step 2: A second bootstrap of the same scope is rejected
	rec = app.request("POST", "/api/v1/budgets", body, token)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "BUDGET_EXISTS" {
		t.Fatalf("expected 409 BUDGET_EXISTS, got %d: %s", rec.Code, rec.Body.String())
	}

	// Step 3: Spend inside January and check the view
	testutil.CreateTestExpense(t, app.DB, alice.ID, wallet.ID, "700", testutil.Date(2024, 1, 10), testutil.WithCategory(food.ID))
	testutil.CreateTestExpense(t, app.DB, alice.ID, wallet.ID, "5000", testutil.Date(2024, 1, 11), testutil.AsIncome())

	rec = app.request("GET", "/api/v1/budgets/active?as_of=2024-01-20", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	budgets := parseJSON(t, rec)["budgets"].([]interface{})
	if len(budgets) != 1 {
		t.Fatalf("expected 1 active budget, got %d", len(budgets))
	}
	active := budgets[0].(map[string]interface{})
	expectDec(t, active, "spent", "700")
	expectDec(t, active, "remaining", "300")
	if active["display_name"] != "Alice" {
		t.Errorf("display_name = %v, want Alice", active["display_name"])
	}

	// Step 4: Moving into February closes January and carries the surplus
	rec = app.request("GET", "/api/v1/budgets/active?as_of=2024-02-05", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	active = parseJSON(t, rec)["budgets"].([]interface{})[0].(map[string]interface{})
	februaryID := active["budget_id"].(string)
	if februaryID == januaryID {
		t.Fatal("expected a new period for February")
	}
	expectDec(t, active, "amount", "1000")
	expectDec(t, active, "rollover_amount", "300")
	expectDec(t, active, "spent", "0")
	expectDec(t, active, "remaining", "1300")

	// Step 5: The ledger records the closed month
	rec = app.request("GET", "/api/v1/budgets/rollover-history?scope_key="+url.QueryEscape(scopeKey), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	history := parseJSON(t, rec)
	if history["total_items"].(float64) != 1 {
		t.Fatalf("expected 1 ledger entry, got %v", history["total_items"])
	}
	entry := history["data"].([]interface{})[0].(map[string]interface{})
	if entry["period"] != "2024-01" || entry["type"] != string(models.LedgerTypeSurplus) {
		t.Errorf("unexpected ledger entry %v", entry)
	}
	expectDec(t, entry, "amount", "300")
	expectDec(t, entry, "spent", "700")

	// Step 6: The closed period is frozen
	rec = app.request("PUT", "/api/v1/budgets/"+januaryID+"/category-budgets",
		fmt.Sprintf(`{"entries":[{"category_id":%q,"amount":"100"}]}`, food.ID), token)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "BUDGET_CLOSED" {
		t.Fatalf("expected 409 BUDGET_CLOSED, got %d: %s", rec.Code, rec.Body.String())
	}

	// Step 7: The open period accepts allocations within its amount only
	rec = app.request("PUT", "/api/v1/budgets/"+februaryID+"/category-budgets",
		fmt.Sprintf(`{"entries":[{"category_id":%q,"amount":"1500"}]}`, food.ID), token)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "OVER_ALLOCATED" {
		t.Fatalf("expected 422 OVER_ALLOCATED, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("PUT", "/api/v1/budgets/"+februaryID+"/category-budgets",
		fmt.Sprintf(`{"entries":[{"category_id":%q,"amount":"600"}]}`, food.ID), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := parseJSON(t, rec)["budget"].(map[string]interface{})
	expectDec(t, updated, "amount", "1000")

	// Step 8: Updates were audited
	var audits int64
	app.DB.Model(&models.AuditLog{}).Where("user_id = ?", alice.ID).Count(&audits)
	if audits != 2 {
		t.Errorf("expected 2 audit entries for alice, got %d", audits)
	}
}

func TestBudgetFlow_AccessControl(t *testing.T) {
	app := setupApp(t)
	alice := testutil.CreateTestUserWithName(t, app.DB, "Alice")
	bob := testutil.CreateTestUserWithName(t, app.DB, "Bob")
	family, _ := testutil.CreateTestFamily(t, app.DB, alice)
	testutil.CreateTestFamilyMember(t, app.DB, family.ID, bob, models.FamilyRoleMember)
	kid := testutil.CreateTestCustodialMember(t, app.DB, family.ID, "Kid")
	book := testutil.CreateTestFamilyBook(t, app.DB, family, "Household")
	aliceToken := tokenFor(t, alice)
	bobToken := tokenFor(t, bob)

	kidBudget := fmt.Sprintf(`{"scope_kind":"MEMBER","owner_id":%q,"account_book_id":%q,"name":"Pocket money",
		"amount":"50","period":"monthly","start_date":"2024-01-01","rollover_enabled":true}`, kid.ID, book.ID)

	t.Run("member_cannot_budget_custodial_member", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/budgets", kidBudget, bobToken)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("guardian_budgets_custodial_member", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/budgets", kidBudget, aliceToken)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		testutil.CreateTestExpense(t, app.DB, alice.ID, book.ID, "20", testutil.Date(2024, 1, 5), testutil.WithMember(kid.ID))

		rec = app.request("GET", "/api/v1/families/"+family.ID+"/custodial-budgets?as_of=2024-01-20", "", aliceToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		budgets := parseJSON(t, rec)["budgets"].([]interface{})
		if len(budgets) != 1 {
			t.Fatalf("expected 1 custodial budget, got %d", len(budgets))
		}
		kidView := budgets[0].(map[string]interface{})
		if kidView["display_name"] != "Kid" || kidView["custodial"] != true {
			t.Errorf("unexpected custodial budget %v", kidView)
		}
		expectDec(t, kidView, "remaining", "30")
	})

	t.Run("member_cannot_view_custodial_budgets", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/families/"+family.ID+"/custodial-budgets", "", bobToken)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("history_of_another_users_scope", func(t *testing.T) {
		wallet := testutil.CreateTestPersonalBook(t, app.DB, alice.ID, "Wallet")
		key := scope.Personal(alice.ID, wallet.ID).Key()
		rec := app.request("GET", "/api/v1/budgets/rollover-history?scope_key="+url.QueryEscape(key), "", bobToken)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing_token", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/budgets/active", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid_query", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/budgets/active?as_of=yesterday", "", aliceToken)
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_INPUT" {
			t.Fatalf("expected 400 INVALID_INPUT, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestMaintenanceFlow(t *testing.T) {
	app := setupApp(t)
	alice := testutil.CreateTestUserWithName(t, app.DB, "Alice")
	wallet := testutil.CreateTestPersonalBook(t, app.DB, alice.ID, "Wallet")
	s := scope.Personal(alice.ID, wallet.ID)
	testutil.CreateTestBudget(t, app.DB, s, "100", testutil.Date(2024, 1, 1), testutil.Date(2024, 2, 1))
	testutil.CreateTestExpense(t, app.DB, alice.ID, wallet.ID, "40", testutil.Date(2024, 1, 3))
	scopeBody := func(asOf string) string {
		return fmt.Sprintf(`{"scope_key":%q,"as_of":%q}`, s.Key(), asOf)
	}

	t.Run("api_key_required", func(t *testing.T) {
		for _, key := range []string{"", "wrong-key"} {
			rec := app.maintenance("POST", "/api/v1/maintenance/sweep", "", key)
			if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "INVALID_API_KEY" {
				t.Errorf("key %q: expected 401 INVALID_API_KEY, got %d: %s", key, rec.Code, rec.Body.String())
			}
		}
	})

	t.Run("close_and_advance", func(t *testing.T) {
		rec := app.maintenance("POST", "/api/v1/maintenance/close-and-advance", scopeBody("2024-03-10"), maintenanceKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["created"].(float64) != 2 || len(result["closed"].([]interface{})) != 2 {
			t.Errorf("unexpected result %v", result)
		}
		current := result["current"].(map[string]interface{})
		// January carried 60 into February, February carried its full 160 into March.
		expectDec(t, current, "rollover_amount", "160")

		rec = app.maintenance("POST", "/api/v1/maintenance/close-and-advance", scopeBody("2024-03-10"), maintenanceKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if created := parseJSON(t, rec)["created"].(float64); created != 0 {
			t.Errorf("repeat created %v periods, want 0", created)
		}
	})

	t.Run("sweep", func(t *testing.T) {
		rec := app.maintenance("POST", "/api/v1/maintenance/sweep?as_of=2024-04-02", "", maintenanceKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["scopes_scanned"].(float64) != 1 || result["periods_created"].(float64) != 1 {
			t.Errorf("unexpected sweep result %v", result)
		}
	})

	t.Run("reconcile", func(t *testing.T) {
		rec := app.maintenance("POST", "/api/v1/maintenance/reconcile", fmt.Sprintf(`{"scope_key":%q}`, s.Key()), maintenanceKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if healed := parseJSON(t, rec)["healed"].(float64); healed != 0 {
			t.Errorf("healed = %v, want 0", healed)
		}
	})

	t.Run("history_visible_to_owner", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/budgets/rollover-history?page_size=2&scope_key="+url.QueryEscape(s.Key()), "", tokenFor(t, alice))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		history := parseJSON(t, rec)
		if history["total_items"].(float64) != 3 || history["total_pages"].(float64) != 2 {
			t.Errorf("unexpected history page %v", history)
		}
	})

	t.Run("unknown_scope", func(t *testing.T) {
		missing := scope.Personal(alice.ID, "00000000-0000-0000-0000-000000000000").Key()
		rec := app.maintenance("POST", "/api/v1/maintenance/close-and-advance",
			fmt.Sprintf(`{"scope_key":%q}`, missing), maintenanceKey)
		if rec.Code != http.StatusNotFound || errorCode(t, rec) != "SCOPE_NOT_FOUND" {
			t.Fatalf("expected 404 SCOPE_NOT_FOUND, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("sweep_audited", func(t *testing.T) {
		var count int64
		app.DB.Model(&models.AuditLog{}).Where("action = ?", "SWEEP").Count(&count)
		if count != 1 {
			t.Errorf("expected 1 sweep audit entry, got %d", count)
		}
	})
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	rec := app.request("GET", "/api/health", "", "")
	if rec.Code != http.StatusOK || parseJSON(t, rec)["status"] != "ok" {
		t.Fatalf("expected healthy, got %d: %s", rec.Code, rec.Body.String())
	}
}
