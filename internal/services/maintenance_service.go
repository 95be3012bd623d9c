package services

import (
	"context"
	"errors"
	"time"

	apperrors "famledger/internal/errors"
	"famledger/internal/models"
	"famledger/internal/pagination"
	"famledger/internal/scope"
)

// maintenanceService exposes the engine to operators. Callers are trusted
// and no per-user access checks apply.
type maintenanceService struct {
	periods PeriodEnsurer
	ledger  LedgerStore
	sweeper *Sweeper
}

// NewMaintenanceService creates a new MaintenanceServicer.
func NewMaintenanceService(periods PeriodEnsurer, ledger LedgerStore, sweeper *Sweeper) MaintenanceServicer {
	return &maintenanceService{periods: periods, ledger: ledger, sweeper: sweeper}
}

// CloseAndAdvance closes every ended period of the scope and returns the
// current one. Repeating the call is a no-op.
func (s *maintenanceService) CloseAndAdvance(ctx context.Context, scopeKey string, asOf time.Time) (*AdvanceResult, error) {
	if _, err := scope.Parse(scopeKey); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return s.periods.Advance(ctx, scopeKey, asOf)
}

// Sweep advances all stale scopes.
func (s *maintenanceService) Sweep(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	return s.sweeper.Sweep(ctx, asOf)
}

// Reconcile heals a scope's cached rollover amounts from the ledger.
func (s *maintenanceService) Reconcile(ctx context.Context, scopeKey string) (int, error) {
	return s.periods.ReconcileScope(ctx, scopeKey)
}

// History returns a scope's ledger without access checks.
func (s *maintenanceService) History(ctx context.Context, scopeKey string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	if _, err := scope.Parse(scopeKey); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return s.ledger.ListByScope(ctx, scopeKey, page)
}

func failureOf(scopeKey string, err error) ScopeFailure {
	f := ScopeFailure{ScopeKey: scopeKey, Error: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		f.Code = appErr.Code
		if appErr.Internal != nil {
			f.Error = appErr.Message + ": " + appErr.Internal.Error()
		}
	}
	return f
}
