package chat

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. Transient delivery failures (socket
// emit, push dispatch) deliberately have no entry here: they are logged and
// swallowed because the message is already durably stored.
var (
	// ErrValidation marks malformed input; the request is rejected with no
	// partial writes.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a referenced user, message or conversation that does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrSelfMessage rejects sending a message to oneself.
	ErrSelfMessage = fmt.Errorf("%w: cannot message self", ErrValidation)
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}
