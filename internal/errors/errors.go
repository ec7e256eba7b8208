package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in the "code" field of every error body.
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountInactive    = "ACCOUNT_INACTIVE"
	ErrCodeForbidden          = "FORBIDDEN"

	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInvalidRole  = "INVALID_ROLE"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"

	// Membership lifecycle
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeAlreadyMember     = "ALREADY_MEMBER"
	ErrCodeAlreadyRequested  = "ALREADY_REQUESTED"
	ErrCodeStudyFull         = "STUDY_FULL"
	ErrCodeCannotModifyOwner = "CANNOT_MODIFY_OWNER"
	ErrCodeCannotRemoveOwner = "CANNOT_REMOVE_OWNER"

	ErrCodeExternalFailure = "EXTERNAL_FAILURE"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// APIError is the JSON error body: {code, message, details}.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// RespondWithError writes body with status and stops the handler chain.
func RespondWithError(c *gin.Context, status int, body *APIError) {
	c.AbortWithStatusJSON(status, body)
}

func abortWith(c *gin.Context, status int, code, message, fallback string) {
	if message == "" {
		message = fallback
	}
	RespondWithError(c, status, NewAPIError(code, message))
}

// Unauthorized answers 401 for requests that reach a handler without a
// resolved identity.
func Unauthorized(c *gin.Context, message string) {
	abortWith(c, http.StatusUnauthorized, ErrCodeUnauthorized, message, "Authentication required")
}

// BadRequest answers 400 for malformed bodies and path parameters.
func BadRequest(c *gin.Context, message string) {
	abortWith(c, http.StatusBadRequest, ErrCodeInvalidInput, message, "Invalid request")
}

func InternalError(c *gin.Context, message string) {
	abortWith(c, http.StatusInternalServerError, ErrCodeInternalError, message, "Internal server error")
}
