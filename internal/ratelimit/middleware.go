package ratelimit

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/shrixloki/lokiai-biometrics/internal/errors"
	"github.com/shrixloki/lokiai-biometrics/internal/monitoring"
)

// IPMiddleware enforces the per-IP limit on every request.
func IPMiddleware(limiter *RateLimiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowIP(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Limiter failure must not lock users out.
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitIPBlock()
			}
			appErr := apierrors.NewRateLimitError(result.RetryAfter.String())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Next()
	}
}

// UserLimit checks the per-user verification limit for the claimed identity.
// Returns nil when the attempt may proceed.
func UserLimit(c *gin.Context, limiter *RateLimiter, metrics *monitoring.Metrics, username string) *apierrors.AppError {
	result, err := limiter.AllowUser(c.Request.Context(), username)
	if err != nil {
		return nil
	}

	if !result.Allowed {
		if metrics != nil {
			metrics.IncrementRateLimitUserBlock()
		}
		setRateLimitHeaders(c, result)
		return apierrors.NewRateLimitError(result.RetryAfter.String())
	}

	return nil
}

func setRateLimitHeaders(c *gin.Context, result *Result) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))
	if !result.Allowed && result.RetryAfter > 0 {
		c.Header("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter/time.Second)+1))
	}
}
