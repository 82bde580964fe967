package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindTooManyRequests
)

const (
	MsgInternal           = "Internal server error."
	MsgValidation         = "The given data was invalid."
	MsgUnauthenticated    = "Authentication is required to access this resource."
	MsgUnauthorized       = "Unauthorized action."
	MsgOwnership          = "The current user does not have ownership rights to the requested resource."
	MsgInvalidAbility     = "Invalid ability provided."
	MsgNotFound           = "Not Found."
	MsgResourceNotFound   = "The requested resource could not be found."
	MsgInvalidUUID        = "The given ID is not a valid UUID."
	MsgBadCredentials     = "The provided credentials are incorrect."
	MsgTooManyAttempts    = "Too Many Attempts"
	MsgRevokeFailed       = "Unable to revoke tokens."
	MsgEmailTaken         = "The email has already been taken."
	MsgPasswordTooLong    = "The password field must not be greater than 72 characters."
	MsgValidationFallback = "Validation error."
)

type AppError struct {
	Kind    Kind
	Message string
	Errors  []string
	Err     error
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

// Is matches another *AppError of the same kind and message, so package level
// sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string, errs ...string) *AppError {
	if message == "" {
		message = MsgValidation
	}
	return &AppError{Kind: KindValidation, Message: message, Errors: errs}
}

func Unauthenticated(message string) *AppError {
	if message == "" {
		message = MsgUnauthenticated
	}
	return &AppError{Kind: KindUnauthenticated, Message: message}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = MsgUnauthorized
	}
	return &AppError{Kind: KindForbidden, Message: message}
}

func NotFound(message string) *AppError {
	if message == "" {
		message = MsgNotFound
	}
	return &AppError{Kind: KindNotFound, Message: message}
}

func TooManyRequests() *AppError {
	return &AppError{Kind: KindTooManyRequests, Message: MsgTooManyAttempts}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// From returns err as an *AppError, wrapping unknown errors as Internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
