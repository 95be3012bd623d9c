package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "famledger/internal/errors"
	"famledger/internal/logger"
)

// errorBody is the JSON envelope every error response uses.
func errorBody(err *apperrors.AppError) gin.H {
	return gin.H{"error": gin.H{"code": err.Code, "message": err.Message}}
}

// abortWithError writes err and stops the handler chain.
func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, errorBody(err))
}

// ErrorHandler renders the last error attached with c.Error when the handler
// did not write a response itself. Errors that are not AppErrors become
// INTERNAL_ERROR so driver messages never reach clients.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		log := logger.Get().With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", RequestID(c),
		)

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error", "error", err.Error())
			abortWithError(c, apperrors.ErrInternalServer)
			return
		}

		switch {
		case appErr.StatusCode >= 500:
			log.Errorw("request failed", "code", appErr.Code, "error", err.Error())
		case appErr.Internal != nil:
			log.Warnw("request rejected", "code", appErr.Code, "internal", appErr.Internal.Error())
		}
		abortWithError(c, appErr)
	}
}
