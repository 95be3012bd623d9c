package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "famledger/internal/errors"
	"famledger/internal/services"
)

// MaintenanceHandler exposes operator endpoints guarded by an API key.
type MaintenanceHandler struct {
	maintenanceService services.MaintenanceServicer
	auditService       services.AuditServicer
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(maintenanceService services.MaintenanceServicer, auditService services.AuditServicer) *MaintenanceHandler {
	return &MaintenanceHandler{maintenanceService: maintenanceService, auditService: auditService}
}

// ScopeRequest names a scope and an optional reference date.
type ScopeRequest struct {
	ScopeKey string `json:"scope_key" binding:"required"`
	AsOf     string `json:"as_of" binding:"omitempty,date_only" example:"2024-03-01"`
}

// CloseAndAdvance closes every ended period of a scope.
// @Summary     Close and advance a scope
// @Description Close every ended period of the scope and create the current one. Idempotent.
// @Tags        maintenance
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body ScopeRequest true "Scope"
// @Success     200 {object} services.AdvanceResult "Scope advanced"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Scope not found"
// @Failure     503 {object} ErrorResponse "Spend aggregation unavailable"
// @Router      /maintenance/close-and-advance [post]
func (h *MaintenanceHandler) CloseAndAdvance(c *gin.Context) {
	var req ScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.maintenanceService.CloseAndAdvance(c.Request.Context(), req.ScopeKey, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.Created > 0 || len(result.Closed) > 0 {
		h.auditService.Log(services.SystemActor, services.AuditCloseAndAdvance, "scope", req.ScopeKey, c.ClientIP(),
			map[string]interface{}{"as_of": asOf.Format("2006-01-02"), "created": result.Created, "closed": len(result.Closed)})
	}

	c.JSON(http.StatusOK, result)
}

// Sweep advances every stale scope.
// @Summary     Sweep stale scopes
// @Description Close and advance every scope whose latest period has ended. Failed scopes are reported, not fatal.
// @Tags        maintenance
// @Produce     json
// @Security    ApiKeyAuth
// @Param       as_of query string false "Date in YYYY-MM-DD form (default today)"
// @Success     200 {object} services.SweepResult "Sweep result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /maintenance/sweep [post]
func (h *MaintenanceHandler) Sweep(c *gin.Context) {
	asOf, err := parseAsOf(c.Query("as_of"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.maintenanceService.Sweep(c.Request.Context(), asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.SystemActor, services.AuditSweep, "sweep", "", c.ClientIP(),
		map[string]interface{}{"as_of": asOf.Format("2006-01-02"), "created": result.PeriodsCreated, "failed": len(result.Failures)})

	c.JSON(http.StatusOK, result)
}

// Reconcile heals a scope's cached rollover amounts from its ledger.
// @Summary     Reconcile a scope
// @Description Correct cached rollover amounts that disagree with the ledger
// @Tags        maintenance
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body ScopeRequest true "Scope"
// @Success     200 {object} map[string]int "Number of healed periods"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Scope not found"
// @Router      /maintenance/reconcile [post]
func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	var req ScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	healed, err := h.maintenanceService.Reconcile(c.Request.Context(), req.ScopeKey)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"healed": healed})
}
