package middleware

import (
	"errors"
	"net/http"

	"snapshoot-sync/internal/transport/httpdto"
	snapshoot_errors "snapshoot-sync/pkg/errors"
	"snapshoot-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError && l != nil {
			l.Error(c.Request.Context(), "request failed", zap.Error(err))
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code).WithRequestID(c.Writer.Header().Get(HeaderRequestID)))
	}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, snapshoot_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, snapshoot_errors.ErrNotAuthenticated):
		return http.StatusUnauthorized, "NOT_AUTHENTICATED"
	case errors.Is(err, snapshoot_errors.ErrUnauthorized):
		return http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, snapshoot_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, snapshoot_errors.ErrOffline):
		return http.StatusServiceUnavailable, "OFFLINE"
	case errors.Is(err, snapshoot_errors.ErrRemoteUnavailable):
		return http.StatusBadGateway, "REMOTE_UNAVAILABLE"
	case errors.Is(err, snapshoot_errors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
