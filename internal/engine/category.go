package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "famledger/internal/errors"
)

// Allocation is one category's share of a parent budget.
type Allocation struct {
	CategoryID string
	Amount     decimal.Decimal
}

// ValidateAmount rejects negative amounts and amounts finer than cents.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidAmount,
			fmt.Sprintf("amount %s must not be negative", d.String()))
	}
	if !d.Equal(Money(d)) {
		return apperrors.WithMessage(apperrors.ErrInvalidAmount,
			fmt.Sprintf("amount %s has more than %d decimal places", d.String(), Precision))
	}
	return nil
}

// CategoryTotal sums the allocations.
func CategoryTotal(entries []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// ValidateCategoryBudgets checks a category allocation against its parent
// amount. When auto is set the parent is derived from the sum instead, and
// the caller must store CategoryTotal(entries) as the new parent amount.
func ValidateCategoryBudgets(parent decimal.Decimal, entries []Allocation, auto bool) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.CategoryID == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "category id is required")
		}
		if _, dup := seen[e.CategoryID]; dup {
			return apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("category %s is allocated more than once", e.CategoryID))
		}
		seen[e.CategoryID] = struct{}{}

		if err := ValidateAmount(e.Amount); err != nil {
			return err
		}
	}

	if auto {
		return nil
	}
	if total := CategoryTotal(entries); total.GreaterThan(parent) {
		return apperrors.WithMessage(apperrors.ErrOverAllocated,
			fmt.Sprintf("category budgets total %s exceeds budget amount %s",
				total.StringFixed(Precision), parent.StringFixed(Precision)))
	}
	return nil
}
