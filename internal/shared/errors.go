package shared

import "errors"

// Error categories. Domain packages wrap these so the HTTP layer can map
// failures to status codes without knowing every domain error.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserSafeMessage returns the message that may be shown to end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrValidation), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthorized):
		return err.Error()
	default:
		return "something went wrong, please try again"
	}
}
