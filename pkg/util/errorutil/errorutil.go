package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes. They are used for metrics and logs, never rendered.
const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeUnavailable          = "INFRASTRUCTURE_UNAVAILABLE"
	CodeValidation           = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeBadRequest           = "BAD_REQUEST"
	CodeInternal             = "INTERNAL_ERROR"
)

// Reasons shown in the "error" field of 401 responses.
const (
	ReasonNoToken      = "No token provided"
	ReasonInvalidToken = "Invalid or expired token"
	ReasonRevoked      = "Token is blacklisted"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	Reason     string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Body renders the response payload. The wrapped cause is never included.
func (e *DomainError) Body() fiber.Map {
	body := fiber.Map{}
	switch e.Code {
	case CodeAuthenticationFailed, CodeNotFound, CodeConflict, CodeBadRequest:
		body["error"] = e.Message
	default:
		body["message"] = e.Message
		if e.Reason != "" {
			body["error"] = e.Reason
		}
	}
	if len(e.Details) > 0 {
		body["errors"] = e.Details
	}
	return body
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(details map[string]any) error {
	return NewDomainError(CodeValidation, "Validation failed", http.StatusUnprocessableEntity, details)
}

func NewBadRequest(message string) error {
	return NewDomainError(CodeBadRequest, message, http.StatusBadRequest, nil)
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewConflict(message string) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, nil)
}

// NewUnauthorized builds a 401. reason may be empty.
func NewUnauthorized(reason string) error {
	return &DomainError{
		Code:       CodeUnauthorized,
		Message:    http.StatusText(http.StatusUnauthorized),
		Reason:     reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func NewForbidden() error {
	return NewDomainError(CodeForbidden, http.StatusText(http.StatusForbidden), http.StatusForbidden, nil)
}

// NewAuthenticationFailed is the single login rejection, whatever the cause.
func NewAuthenticationFailed(err error) error {
	return &DomainError{
		Code:       CodeAuthenticationFailed,
		Message:    "Invalid credentials",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

// NewUnavailable marks a retryable infrastructure failure.
func NewUnavailable(err error) error {
	return &DomainError{
		Code:       CodeUnavailable,
		Message:    http.StatusText(http.StatusServiceUnavailable),
		Reason:     "Authentication temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    http.StatusText(http.StatusInternalServerError),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code >= http.StatusInternalServerError {
			return NewInternalError(err).(*DomainError)
		}
		return NewDomainError(CodeBadRequest, fiberErr.Message, fiberErr.Code, nil)
	}
	return NewInternalError(err).(*DomainError)
}

// Retryable reports whether the client may retry the failed request.
func Retryable(err error) bool {
	de := ToDomainError(err)
	return de != nil && de.Code == CodeUnavailable
}
