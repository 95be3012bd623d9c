package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "famledger/internal/errors"
)

// MaintenanceAuthMiddleware guards operator endpoints with the X-API-Key
// header. An empty apiKey disables the endpoints entirely.
func MaintenanceAuthMiddleware(apiKey string) gin.HandlerFunc {
	want := []byte(apiKey)
	return func(c *gin.Context) {
		if len(want) == 0 {
			abortWithError(c, apperrors.ErrMaintenanceDisabled)
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-Key")), want) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
