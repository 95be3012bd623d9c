package engine

import (
	"github.com/shopspring/decimal"

	"famledger/internal/models"
)

// Precision is the number of decimal places money amounts are kept at.
const Precision = 2

// Money rounds d to the engine's fixed precision.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// CarriedIn returns the rollover that counts towards b's available total.
func CarriedIn(b *models.Budget) decimal.Decimal {
	if !b.RolloverEnabled {
		return decimal.Zero
	}
	return b.RolloverAmount
}

// Close computes the ledger entry of a finished period and the amount to
// carry into the next one. The entry is not persisted.
func Close(b *models.Budget, spent decimal.Decimal) (models.LedgerEntry, decimal.Decimal) {
	rollover := Money(CarriedIn(b))
	spent = Money(spent)
	delta := Money(b.Amount).Add(rollover).Sub(spent)

	entry := models.LedgerEntry{
		ScopeKey:         b.ScopeKey,
		BudgetID:         b.ID,
		Period:           PeriodLabel(b.Period, b.StartDate),
		PeriodStart:      b.StartDate,
		PeriodEnd:        b.EndDate,
		Amount:           delta.Abs(),
		Type:             models.LedgerTypeSurplus,
		BudgetAmount:     Money(b.Amount),
		PreviousRollover: rollover,
		Spent:            spent,
	}
	if delta.IsNegative() {
		entry.Type = models.LedgerTypeDeficit
	}

	return entry, CarryIn(b.RolloverEnabled, &entry)
}

// CarryIn returns the rollover a successor period receives from entry.
func CarryIn(rolloverEnabled bool, entry *models.LedgerEntry) decimal.Decimal {
	if !rolloverEnabled || entry == nil {
		return decimal.Zero
	}
	return entry.Signed()
}

// Progress reports the remaining balance and the spent percentage of an
// open period. Percentage is zero when nothing is available.
func Progress(amount, rollover, spent decimal.Decimal) (remaining, percentage decimal.Decimal) {
	available := amount.Add(rollover)
	remaining = Money(available.Sub(spent))
	if !available.IsPositive() {
		return remaining, decimal.Zero
	}
	percentage = Money(spent.Div(available).Mul(decimal.NewFromInt(100)))
	return remaining, percentage
}
