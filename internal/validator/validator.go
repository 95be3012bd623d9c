// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("budget_period", validateBudgetPeriod)
		_ = v.RegisterValidation("scope_kind", validateScopeKind)
		_ = v.RegisterValidation("budget_view", validateBudgetView)
		_ = v.RegisterValidation("date_only", validateDateOnly)
	}
}

func validateBudgetPeriod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "monthly", "yearly":
		return true
	}
	return false
}

func validateScopeKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "PERSONAL", "GENERAL", "MEMBER":
		return true
	}
	return false
}

func validateBudgetView(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "mine", "family":
		return true
	}
	return false
}

// validateDateOnly accepts calendar dates in YYYY-MM-DD form.
func validateDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}
