package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/types"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeBadRequest             = "BAD_REQUEST"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeInternalError          = "INTERNAL_ERROR"
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodeDuplicateResource      = "DUPLICATE_RESOURCE"
	ErrCodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	ErrCodeQuoteNotFound          = "QUOTE_NOT_FOUND"
	ErrCodeQuoteExpired           = "QUOTE_EXPIRED"
	ErrCodeOrderRejected          = "ORDER_REJECTED"
	ErrCodeIllegalStateTransition = "ILLEGAL_STATE_TRANSITION"
	ErrCodeRateLimited            = "RATE_LIMITED"
)

// Handle processes the error and returns appropriate response.
// data is still sent alongside an error when it is not nil, which lets a
// rejected commit return the persisted REJECTED order.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		handleError(c, data, err)
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// Fail sends an error response with an optional payload
func Fail(c *gin.Context, status int, code, message string, data interface{}) {
	c.JSON(status, Response{
		Success: false,
		Data:    data,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, ErrCodeNotFound, message, nil)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, ErrCodeBadRequest, message, nil)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message, nil)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, ErrCodeForbidden, message, nil)
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context, message string) {
	Fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, message, nil)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, ErrCodeInternalError, message, nil)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	Fail(c, http.StatusConflict, ErrCodeDuplicateResource, message, nil)
}

// handleError maps the core's error taxonomy onto HTTP statuses
func handleError(c *gin.Context, data interface{}, err error) {
	switch {
	case errors.Is(err, types.ErrOrderRejected):
		Fail(c, http.StatusUnprocessableEntity, ErrCodeOrderRejected, err.Error(), data)
	case errors.Is(err, types.ErrQuoteExpired):
		Fail(c, http.StatusGone, ErrCodeQuoteExpired, err.Error(), data)
	case errors.Is(err, types.ErrQuoteNotFound):
		Fail(c, http.StatusGone, ErrCodeQuoteNotFound, err.Error(), data)
	case errors.Is(err, types.ErrInsufficientFunds):
		Fail(c, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, err.Error(), data)
	case errors.Is(err, types.ErrIllegalStateTransition):
		Fail(c, http.StatusConflict, ErrCodeIllegalStateTransition, err.Error(), data)
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrAccountInactive):
		Fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), data)
	case errors.Is(err, types.ErrOrderNotFound),
		errors.Is(err, types.ErrAccountNotFound),
		errors.Is(err, types.ErrStockNotFound):
		NotFound(c, err.Error())
	default:
		// Persistence failures and anything unexpected stay opaque to the caller
		InternalError(c, "An unexpected error occurred")
	}
}
