// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrAccountNotActive   = errors.New("account not active")
	ErrDuplicateTeam      = errors.New("team already registered")
	ErrCancellationClosed = errors.New("cancellation window closed")
	ErrStorage            = errors.New("storage failure")
	ErrNotification       = errors.New("notification failure")
)

// BlockedError reports an active block together with what the caller
// needs to render it.
type BlockedError struct {
	Reason string
	Until  time.Time
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf(
		"account blocked until %s: %s",
		e.Until.Format(time.RFC3339),
		e.Reason,
	)
}

func (e *BlockedError) Unwrap() error {
	return ErrAccountBlocked
}

// ForbiddenRoleError is returned when a resolved role is outside the
// permitted set of an operation.
type ForbiddenRoleError struct {
	Role string
}

func (e *ForbiddenRoleError) Error() string {
	return fmt.Sprintf("role %q is not permitted", e.Role)
}

func (e *ForbiddenRoleError) Unwrap() error {
	return ErrForbidden
}

type AppError struct {
	Err     error          `json:"-"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Status:  status,
		Code:    code,
	}
}

func ValidationError(message string) *AppError {
	return NewAppError(
		ErrInvalidInput,
		message,
		http.StatusBadRequest,
		"VALIDATION_FAILED",
	)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(
		ErrUnauthorized,
		message,
		http.StatusUnauthorized,
		"UNAUTHORIZED",
	)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		resource+" not found",
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		field+" already exists",
		http.StatusConflict,
		"DUPLICATE",
	)
}

// InvalidOrExpiredTokenError deliberately does not say which of the two
// happened.
func InvalidOrExpiredTokenError(status int) *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"invalid or expired token",
		status,
		"TOKEN_INVALID",
	)
}

func AccountBlockedError(blocked *BlockedError) *AppError {
	appErr := NewAppError(
		blocked,
		"account is blocked",
		http.StatusForbidden,
		"ACCOUNT_BLOCKED",
	)
	appErr.Details = map[string]any{
		"reason":        blocked.Reason,
		"blocked_until": blocked.Until,
	}
	return appErr
}

func AccountNotActiveError() *AppError {
	return NewAppError(
		ErrAccountNotActive,
		"account has not completed activation",
		http.StatusForbidden,
		"ACCOUNT_NOT_ACTIVE",
	)
}

func ConflictError(err error, message, code string) *AppError {
	return NewAppError(err, message, http.StatusConflict, code)
}

func NotificationFailedError() *AppError {
	return NewAppError(
		ErrNotification,
		"the change was saved but the email could not be sent",
		http.StatusBadGateway,
		"NOTIFICATION_FAILED",
	)
}

// DomainError maps the lifecycle and authorization taxonomy onto an
// HTTP error. tokenStatus is the status used for token failures, since
// a bad link is a 400 while a bad bearer credential is a 401.
func DomainError(err error, tokenStatus int) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return AccountBlockedError(blocked), true
	}

	var forbidden *ForbiddenRoleError
	if errors.As(err, &forbidden) {
		return ForbiddenError("insufficient permissions"), true
	}

	switch {
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired):
		return InvalidOrExpiredTokenError(tokenStatus), true
	case errors.Is(err, ErrInvalidInput):
		return ValidationError(unwrapMessage(err)), true
	case errors.Is(err, ErrAccountNotActive):
		return AccountNotActiveError(), true
	case errors.Is(err, ErrDuplicateTeam):
		return ConflictError(
			err,
			"this team is already registered for the event",
			"DUPLICATE_TEAM",
		), true
	case errors.Is(err, ErrCancellationClosed):
		return ConflictError(
			err,
			"registrations can only be cancelled before the event day",
			"CANCELLATION_WINDOW_CLOSED",
		), true
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateError("email"), true
	case errors.Is(err, ErrNotFound):
		return NotFoundError("resource"), true
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError(""), true
	case errors.Is(err, ErrForbidden):
		return ForbiddenError(""), true
	case errors.Is(err, ErrNotification):
		return NotificationFailedError(), true
	}

	return nil, false
}

// InvalidInput builds a validation failure whose message is safe to show.
func InvalidInput(message string) error {
	return &inputError{message: message}
}

type inputError struct {
	message string
}

func (e *inputError) Error() string {
	return e.message
}

func (e *inputError) Unwrap() error {
	return ErrInvalidInput
}

func unwrapMessage(err error) string {
	var input *inputError
	if errors.As(err, &input) {
		return input.message
	}
	return "invalid input"
}
