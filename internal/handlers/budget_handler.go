package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"famledger/internal/engine"
	apperrors "famledger/internal/errors"
	"famledger/internal/models"
	"famledger/internal/pagination"
	"famledger/internal/scope"
	"famledger/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CategoryBudgetEntry is one category allocation in a request.
type CategoryBudgetEntry struct {
	CategoryID string          `json:"category_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string" example:"250.00"`
}

// CreateBudgetRequest represents the request payload for creating the first
// budget period of a scope.
type CreateBudgetRequest struct {
	ScopeKind       scope.Kind            `json:"scope_kind" binding:"required,scope_kind"`
	OwnerID         string                `json:"owner_id" binding:"required"`
	AccountBookID   string                `json:"account_book_id" binding:"required"`
	CategoryID      string                `json:"category_id"`
	Name            string                `json:"name" binding:"required,min=1,max=100"`
	Amount          decimal.Decimal       `json:"amount" swaggertype:"string" example:"1000.00"`
	Period          models.BudgetPeriod   `json:"period" binding:"required,budget_period"`
	StartDate       string                `json:"start_date" binding:"required,date_only" example:"2024-01-01"`
	RefreshDay      int                   `json:"refresh_day" binding:"omitempty,min=1,max=31"`
	RolloverEnabled bool                  `json:"rollover_enabled"`
	AutoCalculated  bool                  `json:"auto_calculated"`
	CategoryBudgets []CategoryBudgetEntry `json:"category_budgets" binding:"omitempty,dive"`
}

// UpdateCategoryBudgetsRequest represents the request payload for replacing
// the category allocation of a budget.
type UpdateCategoryBudgetsRequest struct {
	Entries        []CategoryBudgetEntry `json:"entries" binding:"dive"`
	AutoCalculated bool                  `json:"auto_calculated"`
}

// ActiveBudgetsQuery holds the query parameters of the active budget view.
type ActiveBudgetsQuery struct {
	AsOf string `form:"as_of" binding:"omitempty,date_only"`
	View string `form:"view" binding:"omitempty,budget_view"`
}

// RolloverHistoryQuery holds the query parameters of the rollover history.
type RolloverHistoryQuery struct {
	ScopeKey string `form:"scope_key" binding:"required"`
	pagination.PageRequest
}

func toAllocations(entries []CategoryBudgetEntry) []engine.Allocation {
	out := make([]engine.Allocation, len(entries))
	for i, e := range entries {
		out[i] = engine.Allocation{CategoryID: e.CategoryID, Amount: e.Amount}
	}
	return out
}

// CreateBudget handles the creation of the first budget period of a scope.
// @Summary     Create a budget
// @Description Create the first period of a scope. Later periods are generated automatically.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "No access to the scope"
// @Failure     409 {object} ErrorResponse "Scope already has a budget"
// @Failure     422 {object} ErrorResponse "Category budgets exceed the parent amount"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "start_date must be a date in YYYY-MM-DD form"))
		return
	}

	s := scope.Scope{Kind: req.ScopeKind, OwnerID: req.OwnerID, AccountBookID: req.AccountBookID, CategoryID: req.CategoryID}
	budget, err := h.budgetService.CreateBudget(c.Request.Context(), userID, services.CreateBudgetInput{
		Scope:           s,
		Name:            req.Name,
		Amount:          req.Amount,
		Period:          req.Period,
		StartDate:       start,
		RefreshDay:      req.RefreshDay,
		RolloverEnabled: req.RolloverEnabled,
		AutoCalculated:  req.AutoCalculated,
		CategoryBudgets: toAllocations(req.CategoryBudgets),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateBudget, "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"scope_key": budget.ScopeKey, "amount": budget.Amount.String(), "period": budget.Period})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetActiveBudgets handles the "which budgets apply to me" view.
// @Summary     Get active budgets
// @Description Get the current period of every budget visible to the user, creating missing periods on the way
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       as_of query string false "Date in YYYY-MM-DD form (default today)"
// @Param       view  query string false "mine or family (default mine)"
// @Success     200 {object} services.ActiveBudgets "Active budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/active [get]
func (h *BudgetHandler) GetActiveBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ActiveBudgetsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	asOf, err := parseAsOf(q.AsOf)
	if err != nil {
		respondWithError(c, err)
		return
	}
	view := services.ViewMine
	if q.View != "" {
		view = services.View(q.View)
	}

	result, err := h.budgetService.GetActiveBudgets(c.Request.Context(), userID, asOf, view)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCustodialBudgets handles the guardian view of custodial member budgets.
// @Summary     Get custodial budgets
// @Description Get the current budgets of a family's custodial members. Guardians only.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Family ID"
// @Param       as_of query string false "Date in YYYY-MM-DD form (default today)"
// @Success     200 {object} services.ActiveBudgets "Custodial budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a guardian of the family"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /families/{id}/custodial-budgets [get]
func (h *BudgetHandler) GetCustodialBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf, err := parseAsOf(c.Query("as_of"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.GetCustodialBudgets(c.Request.Context(), userID, c.Param("id"), asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRolloverHistory handles listing the rollover ledger of a scope.
// @Summary     Get rollover history
// @Description Get the closed periods of a scope with their surplus or deficit, newest first
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       scope_key query string true  "Scope key"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.LedgerEntry] "Paginated ledger entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "No access to the scope"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/rollover-history [get]
func (h *BudgetHandler) GetRolloverHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q RolloverHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.budgetService.GetRolloverHistory(c.Request.Context(), userID, q.ScopeKey, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateCategoryBudgets handles replacing the category allocation of a budget.
// @Summary     Update category budgets
// @Description Replace the category allocation of an open budget period
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                       true "Budget ID"
// @Param       request body UpdateCategoryBudgetsRequest true "Category allocation"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input or amount"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Budget period is closed"
// @Failure     422 {object} ErrorResponse "Category budgets exceed the parent amount"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/category-budgets [put]
func (h *BudgetHandler) UpdateCategoryBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryBudgetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budgetID := c.Param("id")
	budget, err := h.budgetService.UpdateCategoryBudgets(c.Request.Context(), userID, budgetID, services.CategoryBudgetsInput{
		Entries:        toAllocations(req.Entries),
		AutoCalculated: req.AutoCalculated,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateCategoryBudgets, "budget", budgetID, c.ClientIP(),
		map[string]interface{}{"entries": len(req.Entries), "auto_calculated": req.AutoCalculated, "amount": budget.Amount.String()})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}
