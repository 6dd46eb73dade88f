package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation      ErrorCategory = "validation"
	CategoryModelMissing    ErrorCategory = "model_missing"
	CategoryModelIncomplete ErrorCategory = "model_incomplete"
	CategoryFeatureSet      ErrorCategory = "invalid_feature_set"
	CategoryEnrollment      ErrorCategory = "enrollment"
	CategoryRateLimit       ErrorCategory = "rate_limit"
	CategoryUnauthorized    ErrorCategory = "unauthorized"
	CategoryInternal        ErrorCategory = "internal"
)

// AppError wraps an errbuilder error with the HTTP-facing context handlers
// need to build a response.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// MarshalJSON writes the HTTP response body. The embedded builder's own
// marshaler dereferences its cause, which most responses do not carry, so
// the fields are flattened here instead of promoting it.
func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Category   ErrorCategory       `json:"category"`
		Code       errbuilder.ErrCode  `json:"code"`
		Message    string              `json:"message"`
		HTTPStatus int                 `json:"http_status"`
		Timestamp  time.Time           `json:"timestamp"`
		Details    errbuilder.ErrorMap `json:"details,omitempty"`
	}{
		Category:   e.Category,
		Code:       e.ErrBuilder.ErrCode(),
		Message:    e.ErrBuilder.Msg,
		HTTPStatus: e.HTTPStatus,
		Timestamp:  e.Timestamp,
		Details:    e.ErrBuilder.Details.Errors,
	})
}

// NewAppError creates an AppError from an errbuilder with category and status.
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError creates a request-validation error.
func NewValidationError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewModelMissingError reports that no enrolled model exists for a user.
// "Not found" semantics at the HTTP boundary.
func NewModelMissingError(username string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("No model found for user %s. Please register first.", username)).
		WithCause(biometric.ErrModelMissing)

	return NewAppError(builder, CategoryModelMissing, http.StatusNotFound)
}

// NewModelIncompleteError reports a stored model that cannot be scored
// against. Distinct from a failed match.
func NewModelIncompleteError(cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("stored model is incomplete or malformed")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryModelIncomplete, http.StatusUnprocessableEntity)
}

// NewInvalidFeatureSetError reports a probe or reference missing required
// sub-features.
func NewInvalidFeatureSetError(cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("feature set is missing required sub-features")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryFeatureSet, http.StatusBadRequest)
}

// NewEnrollmentError reports an enrollment-time model building failure
// (empty batch, shape mismatch).
func NewEnrollmentError(cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("enrollment failed")

	if cause != nil {
		builder = builder.WithCause(cause).WithMsg(cause.Error())
	}

	return NewAppError(builder, CategoryEnrollment, http.StatusBadRequest)
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(retryAfter string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("retry_after", errors.New(retryAfter))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewUnauthorizedError creates an admin-authorization error.
func NewUnauthorizedError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg(message)

	return NewAppError(builder, CategoryUnauthorized, http.StatusUnauthorized)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("internal_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// ErrorHandler is a Gin middleware that provides centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			appErr := ToAppError(err)
			LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses.
func RecoveryHandler() gin.HandlerFunc {
	return gin.RecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)

		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	})
}

// ToAppError converts any error to an AppError, recognizing the scoring and
// enrollment sentinels from the biometric core.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	switch {
	case errors.Is(err, biometric.ErrModelMissing):
		return NewAppError(
			errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("No enrolled model found. Please register first.").
				WithCause(err),
			CategoryModelMissing, http.StatusNotFound)
	case errors.Is(err, biometric.ErrModelIncomplete):
		return NewModelIncompleteError(err)
	case errors.Is(err, biometric.ErrInvalidFeatureSet):
		return NewInvalidFeatureSetError(err)
	case errors.Is(err, biometric.ErrEmptyEnrollment), errors.Is(err, biometric.ErrShapeMismatch):
		return NewEnrollmentError(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewAppError(
			errbuilder.New().WithCode(errbuilder.CodeDeadlineExceeded).WithMsg("Request timeout").WithCause(err),
			CategoryInternal, http.StatusGatewayTimeout)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs an error with appropriate level and request context.
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryFeatureSet, CategoryEnrollment:
		logEntry.Warn(err.ErrBuilder.Msg)
	case CategoryModelMissing, CategoryUnauthorized:
		logEntry.Info(err.ErrBuilder.Msg)
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(err.ErrBuilder.Msg, "cause", cause)
		} else {
			logEntry.Error(err.ErrBuilder.Msg)
		}
	}
}
