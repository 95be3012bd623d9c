package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "famledger/internal/errors"
)

// AssertAppError fails unless err is an *AppError with code want. A code
// mismatch reports the message and the wrapped cause.
func AssertAppError(t testing.TB, err error, want string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected AppError %s, got nil", want)
	case !errors.As(err, &appErr):
		t.Fatalf("expected AppError %s, got %T: %v", want, err, err)
	case appErr.Code != want:
		t.Errorf("expected AppError %s, got %s: %s (cause: %v)", want, appErr.Code, appErr.Message, appErr.Internal)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal compares money by value, so "10" equals "10.00".
func AssertDecimal(t testing.TB, name string, got decimal.Decimal, want string) {
	t.Helper()

	if !got.Equal(Decimal(want)) {
		t.Errorf("%s = %s, want %s", name, got.String(), want)
	}
}
