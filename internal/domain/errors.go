package domain

import "errors"

// Error taxonomy shared by every layer. Concrete errors wrap one of these so the
// HTTP and socket boundaries can classify them with errors.Is.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not allowed")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrPersistence    = errors.New("persistence failed")
)

// Error codes carried by ERROR frames and JSON error bodies.
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodePersistence   = "PERSISTENCE_FAILED"
)

// CodeOf maps err onto an error code.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrAuthorization):
		return ErrCodeForbidden
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrValidation):
		return ErrCodeBadRequest
	case errors.Is(err, ErrConflict):
		return ErrCodeConflict
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	default:
		return ErrCodeInternalError
	}
}
