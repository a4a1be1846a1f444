// Package apperrors defines the error taxonomy shared by the storage, domain and API layers.
package apperrors

import "errors"

// Domain and infrastructure errors. Callers compare with errors.Is; context is added with
// fmt.Errorf("...: %w", err) or New.
var (
	ErrInvalidReference   = errors.New("invalid reference")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTransientStore     = errors.New("transient store failure")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnavailable        = errors.New("feature unavailable")
)

// Error attaches a human-readable message to one of the sentinel errors above.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps a sentinel with a message.
func New(sentinel error, message string) error {
	return &Error{Err: sentinel, Message: message}
}

// Code returns the machine-readable code for err, used in API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidReference):
		return "INVALID_REFERENCE"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrTransientStore):
		return "TRANSIENT_STORE_FAILURE"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrEmailNotVerified):
		return "EMAIL_NOT_VERIFIED"
	case errors.Is(err, ErrInvalidOTP):
		return "INVALID_OTP"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
