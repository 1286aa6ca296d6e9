package errorx

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorHandler maps the error taxonomy onto HTTP responses and logs each
// failure with a trace id so operators can correlate caller reports.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// HandleError writes the JSON response for err and logs it. The mapping keeps
// provider-side failures (502/503/504) distinct from caller mistakes (4xx).
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	traceID := uuid.New().String()
	status, body := h.responseFor(c, err)
	body["trace_id"] = traceID

	h.logError(c, traceID, status, err)
	c.JSON(status, body)
}

func (h *ErrorHandler) responseFor(c *gin.Context, err error) (int, gin.H) {
	if rl, ok := IsRateLimited(err); ok {
		secs := RetryAfterSeconds(rl.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(secs))
		return http.StatusTooManyRequests, gin.H{
			"error":               "rate_limited",
			"retry_after_seconds": secs,
		}
	}

	var oauthErr *OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr.HTTPStatus, gin.H{
			"error":             oauthErr.ErrorType,
			"error_description": oauthErr.ErrorDescription,
		}
	}

	var authErr *AuthInvalidError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized, gin.H{"error": "authentication_invalid", "reason": authErr.Reason}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusServiceUnavailable, gin.H{"error": "provider_rate_limited"}
		}
		return http.StatusBadGateway, gin.H{
			"error":           "provider_error",
			"provider_status": apiErr.StatusCode,
			"message":         apiErr.Message,
		}
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, gin.H{"error": "validation_failed", "message": err.Error()}
	case errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrCredentialExpired),
		errors.Is(err, ErrRefreshFailed):
		// all three require the same caller action
		return http.StatusFailedDependency, gin.H{"error": "reconnect_required", "message": err.Error()}
	case errors.Is(err, ErrAuthFailed):
		return http.StatusBadGateway, gin.H{"error": "provider_auth_failed"}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, gin.H{"error": "forbidden"}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "not_found"}
	case errors.Is(err, ErrNetworkTimeout):
		return http.StatusGatewayTimeout, gin.H{"error": "provider_timeout"}
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError, gin.H{"error": "configuration_error"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal_error"}
	}
}

func (h *ErrorHandler) logError(c *gin.Context, traceID string, status int, err error) {
	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.Int("http_status", status),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
		zap.Error(err),
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
		return
	}
	h.logger.Warn("request rejected", fields...)
}

// RetryAfterSeconds rounds a retry hint up to whole seconds, minimum 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
