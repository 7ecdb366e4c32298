// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"

	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope. Upgraded
// websocket connections have already written their headers and are only
// logged.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			operatorID, _ := GetOperatorID(c)
			logger.Error("handler panicked",
				zap.String("panic", fmt.Sprint(rec)),
				zap.String("route", c.FullPath()),
				zap.String("operator_id", operatorID),
				zap.Stack("stack"),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.FromError(c, "internal server error", xerrors.ErrInternal)
		}()
		c.Next()
	}
}
