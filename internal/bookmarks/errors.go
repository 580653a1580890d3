package bookmarks

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentity is returned by operations that need a signed-in user.
	ErrNoIdentity = errors.New("no signed-in identity")

	// ErrUnknownBookmark is returned when deleting an id that is not in the list.
	ErrUnknownBookmark = errors.New("bookmark is not in the list")

	// ErrDeleteInFlight is returned when a delete for the same id is pending.
	ErrDeleteInFlight = errors.New("delete already in progress")

	// ErrSubmitInFlight is returned by Form.Submit while a create is pending.
	ErrSubmitInFlight = errors.New("submit already in progress")
)

// ValidationError reports bad input. It is raised before any backend call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// RequestError reports a failed query or mutation. Local state is left as it
// was before the request.
type RequestError struct {
	Op  string
	ID  string
	Err error
}

func (e *RequestError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// SubscriptionError reports a change stream that could not be opened or
// that dropped unexpectedly.
type SubscriptionError struct {
	Channel string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("change subscription %s: %v", e.Channel, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
