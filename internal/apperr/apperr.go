// README: Domain error taxonomy shared by all modules and rendered by the HTTP layer.
package apperr

import "fmt"

type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindNotFound
	KindConflict
	KindInvalidTransition
	KindAlreadyRated
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindAlreadyRated:
		return "already_rated"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a domain failure bound to the request field it concerns. Field may
// be empty when the failure is not about a single input.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
}

// Is matches any *Error of the same kind, so callers can compare against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrAlreadyRated      = &Error{Kind: KindAlreadyRated, Message: "already rated"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
)

func New(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Message: msg}
}

func InvalidInput(field, msg string) *Error { return New(KindInvalidInput, field, msg) }

func NotFound(field, msg string) *Error { return New(KindNotFound, field, msg) }

func Conflict(field, msg string) *Error { return New(KindConflict, field, msg) }

func InvalidTransition(field, msg string) *Error { return New(KindInvalidTransition, field, msg) }

func AlreadyRated(field, msg string) *Error { return New(KindAlreadyRated, field, msg) }

func Unauthorized(field, msg string) *Error { return New(KindUnauthorized, field, msg) }
