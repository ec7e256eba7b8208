package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies a domain error for status mapping.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindAccountInactive Kind = "account_inactive"
	KindNotAuthorized   Kind = "not_authorized"
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindExternal        Kind = "external"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal"
)

// Error is the error type returned by services. Two errors are equal
// under errors.Is when their codes match, so a sentinel declared with a
// constructor matches every error built with the same code. NotFound
// sentinels also compare the entity.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}

	// Err is the underlying cause. It is logged, never sent to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code != e.Code {
		return false
	}
	if entity := t.Detail("entity"); entity != "" {
		return e.Detail("entity") == entity
	}
	return true
}

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountInactive, KindNotAuthorized:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns a string detail value, or "" when absent.
func (e *Error) Detail(key string) string {
	v, _ := e.Details[key].(string)
	return v
}

// As extracts a domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func UnauthenticatedError(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Kind: KindUnauthenticated, Code: ErrCodeUnauthorized, Message: message}
}

// AccountInactiveError reports a SUSPENDED or DELETED account. The status is
// echoed so clients can tell the two apart.
func AccountInactiveError(status string) *Error {
	message := "Account is not active"
	switch status {
	case "SUSPENDED":
		message = "Account is suspended"
	case "DELETED":
		message = "Account has been deleted"
	}
	return &Error{
		Kind:    KindAccountInactive,
		Code:    ErrCodeAccountInactive,
		Message: message,
		Details: map[string]interface{}{"status": status},
	}
}

func NotAuthorizedError(reason string) *Error {
	return &Error{
		Kind:    KindNotAuthorized,
		Code:    ErrCodeForbidden,
		Message: "Access denied",
		Details: map[string]interface{}{"reason": reason},
	}
}

func InvalidStateError(expected, actual string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("Current state is %s, expected %s", actual, expected),
		Details: map[string]interface{}{"expected": expected, "actual": actual},
	}
}

func NotFoundError(entity string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    ErrCodeNotFound,
		Message: entity + " not found",
		Details: map[string]interface{}{"entity": entity},
	}
}

func ConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func InvalidInputError(code, message string) *Error {
	return &Error{Kind: KindInvalidInput, Code: code, Message: message}
}

func ExternalError(collaborator string, cause error) *Error {
	return &Error{
		Kind:    KindExternal,
		Code:    ErrCodeExternalFailure,
		Message: collaborator + " is unavailable",
		Details: map[string]interface{}{"collaborator": collaborator},
		Err:     cause,
	}
}

func TimeoutError() *Error {
	return &Error{Kind: KindTimeout, Code: ErrCodeTimeout, Message: "Request timed out"}
}

// Respond writes err as a JSON error body. Errors without a domain kind are
// recorded on the gin context for the request logger and answered with a
// generic 500.
func Respond(c *gin.Context, err error) {
	e, ok := As(err)
	if !ok {
		if stderrors.Is(err, context.DeadlineExceeded) {
			e = TimeoutError()
		} else {
			_ = c.Error(err)
			InternalError(c, "")
			return
		}
	}
	if e.Err != nil {
		_ = c.Error(err)
	}

	body := NewAPIError(e.Code, e.Message)
	if len(e.Details) > 0 {
		body.Details = e.Details
	}
	RespondWithError(c, e.Status(), body)
}
