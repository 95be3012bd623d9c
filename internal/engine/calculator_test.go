package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"famledger/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testBudget(amount, rollover string, enabled bool, start, end string) *models.Budget {
	b := &models.Budget{
		ScopeKey:        "personal:u1:b1",
		Amount:          dec(amount),
		Period:          models.BudgetPeriodMonthly,
		RolloverEnabled: enabled,
		RolloverAmount:  dec(rollover),
	}
	b.ID = "budget-1"
	b.StartDate = mustDate(start)
	b.EndDate = mustDate(end)
	return b
}

func mustDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClose(t *testing.T) {
	tests := []struct {
		name         string
		budget       *models.Budget
		spent        string
		wantType     models.LedgerType
		wantAmount   string
		wantRollover string
		wantPeriod   string
	}{
		{
			name:         "surplus_january",
			budget:       testBudget("1000", "0", true, "2024-01-01", "2024-02-01"),
			spent:        "800",
			wantType:     models.LedgerTypeSurplus,
			wantAmount:   "200",
			wantRollover: "200",
			wantPeriod:   "2024-01",
		},
		{
			name:         "deficit_february",
			budget:       testBudget("1000", "200", true, "2024-02-01", "2024-03-01"),
			spent:        "1300",
			wantType:     models.LedgerTypeDeficit,
			wantAmount:   "100",
			wantRollover: "-100",
			wantPeriod:   "2024-02",
		},
		{
			name:         "exact_spend_is_zero_surplus",
			budget:       testBudget("500", "0", true, "2024-03-01", "2024-04-01"),
			spent:        "500",
			wantType:     models.LedgerTypeSurplus,
			wantAmount:   "0",
			wantRollover: "0",
			wantPeriod:   "2024-03",
		},
		{
			name:         "rollover_disabled_ignores_carry_in",
			budget:       testBudget("1000", "300", false, "2024-01-01", "2024-02-01"),
			spent:        "900",
			wantType:     models.LedgerTypeSurplus,
			wantAmount:   "100",
			wantRollover: "0",
			wantPeriod:   "2024-01",
		},
		{
			name:         "cents",
			budget:       testBudget("100.10", "-0.20", true, "2024-01-01", "2024-02-01"),
			spent:        "99.95",
			wantType:     models.LedgerTypeDeficit,
			wantAmount:   "0.05",
			wantRollover: "-0.05",
			wantPeriod:   "2024-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, next := Close(tt.budget, dec(tt.spent))

			if entry.Type != tt.wantType {
				t.Errorf("type = %s, want %s", entry.Type, tt.wantType)
			}
			if !entry.Amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", entry.Amount, tt.wantAmount)
			}
			if !next.Equal(dec(tt.wantRollover)) {
				t.Errorf("next rollover = %s, want %s", next, tt.wantRollover)
			}
			if entry.Period != tt.wantPeriod {
				t.Errorf("period = %q, want %q", entry.Period, tt.wantPeriod)
			}
			if entry.ScopeKey != tt.budget.ScopeKey || entry.BudgetID != tt.budget.ID {
				t.Errorf("entry not linked to budget: %+v", entry)
			}
			if !entry.Spent.Equal(dec(tt.spent)) {
				t.Errorf("spent = %s, want %s", entry.Spent, tt.spent)
			}
		})
	}
}

func TestClose_Deterministic(t *testing.T) {
	b := testBudget("1000", "200", true, "2024-02-01", "2024-03-01")
	first, r1 := Close(b, dec("1300"))
	second, r2 := Close(b, dec("1300"))
	if first.Amount.Cmp(second.Amount) != 0 || first.Type != second.Type || !r1.Equal(r2) {
		t.Errorf("Close is not deterministic: %+v / %+v", first, second)
	}
}

func TestClose_NoDriftOverManyPeriods(t *testing.T) {
	// 0.10 surplus per month for ten years must add up exactly.
	rollover := decimal.Zero
	for i := 0; i < 120; i++ {
		b := testBudget("100.10", "0", true, "2024-01-01", "2024-02-01")
		b.RolloverAmount = rollover
		_, rollover = Close(b, dec("100.00"))
	}
	if !rollover.Equal(dec("12.00")) {
		t.Errorf("accumulated rollover = %s, want 12.00", rollover)
	}
}

func TestCarryIn(t *testing.T) {
	deficit := &models.LedgerEntry{Amount: dec("100"), Type: models.LedgerTypeDeficit}
	if got := CarryIn(true, deficit); !got.Equal(dec("-100")) {
		t.Errorf("CarryIn(enabled) = %s, want -100", got)
	}
	if got := CarryIn(false, deficit); !got.IsZero() {
		t.Errorf("CarryIn(disabled) = %s, want 0", got)
	}
	if got := CarryIn(true, nil); !got.IsZero() {
		t.Errorf("CarryIn(nil) = %s, want 0", got)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name                       string
		amount, rollover, spent    string
		wantRemaining, wantPercent string
	}{
		{"with_surplus", "1000", "200", "300", "900", "25"},
		{"with_deficit", "1000", "-100", "450", "450", "50"},
		{"overspent", "100", "0", "150", "-50", "150"},
		{"nothing_available", "100", "-100", "20", "-20", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining, pct := Progress(dec(tt.amount), dec(tt.rollover), dec(tt.spent))
			if !remaining.Equal(dec(tt.wantRemaining)) {
				t.Errorf("remaining = %s, want %s", remaining, tt.wantRemaining)
			}
			if !pct.Equal(dec(tt.wantPercent)) {
				t.Errorf("percentage = %s, want %s", pct, tt.wantPercent)
			}
		})
	}
}
