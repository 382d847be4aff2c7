package watch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFilter is returned when a call uses a filter name the
	// event's descriptor does not declare. Programmer error; never retried.
	ErrUnsupportedFilter = errors.New("unsupported filter type")

	// ErrUnsavedOwner is returned when notify is called with an identity
	// that has no stable reference: an unsaved user or an empty email.
	// Silently accepting it would create a watch no one could ever find.
	ErrUnsavedOwner = errors.New("watch owner has no identity")
)

// ActivationRequestFailed reports that the confirmation email for a brand
// new anonymous watch could not be sent. The watch row has already been
// rolled back when this error is returned.
type ActivationRequestFailed struct {
	Email string
	Err   error
}

func (e *ActivationRequestFailed) Error() string {
	return fmt.Sprintf("activation request to %s failed: %v", e.Email, e.Err)
}

func (e *ActivationRequestFailed) Unwrap() error { return e.Err }
