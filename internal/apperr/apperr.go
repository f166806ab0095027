package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the one error shape that crosses component boundaries. Handlers
// map it onto the wire envelope; anything that is not an *Error becomes a
// generic 500 so internals never leak.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.cause = err
	return &cp
}

func (e *Error) WithDetails(d map[string]any) *Error {
	cp := *e
	cp.Details = d
	return &cp
}

func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// As pulls an *Error out of a chain, nil when there is none.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

var (
	ErrInvalidInput      = New("VAL_001", "invalid input", http.StatusBadRequest)
	ErrAlreadyRegistered = New("AUTH_001", "email already registered", http.StatusBadRequest)
	ErrBadCredentials    = New("AUTH_002", "invalid email or password", http.StatusUnauthorized)
	ErrNoAccount         = New("AUTH_003", "no account found with this email, please sign up first", http.StatusUnauthorized)
	ErrSuspended         = New("AUTH_004", "account suspended", http.StatusForbidden)
	ErrAccountInactive   = New("AUTH_005", "account not active", http.StatusUnauthorized)
	ErrTokenInvalid      = New("AUTH_006", "invalid token", http.StatusUnauthorized)
	ErrTokenExpired      = New("AUTH_007", "token has expired, please sign in again", http.StatusUnauthorized)
	ErrEmailNotVerified  = New("AUTH_008", "email not verified with Google", http.StatusUnauthorized)
	ErrUserNotFound      = New("AUTH_009", "user not found", http.StatusUnauthorized)
	ErrGoogleVerify      = New("AUTH_010", "failed to verify Google token", http.StatusUnauthorized)
	ErrRateLimited       = New("RATE_001", "too many requests", http.StatusTooManyRequests)
	ErrDependency        = New("DB_001", "service temporarily unavailable, please try again later", http.StatusServiceUnavailable)
	ErrInternal          = New("SRV_001", "internal error", http.StatusInternalServerError)
)
