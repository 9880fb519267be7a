package labstep

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveWorkspace is returned by operations that need a workspace
	// filter or owner when the session has none.
	ErrNoActiveWorkspace = errors.New("no active workspace set")

	// ErrValidation wraps every client-side validation failure. No request
	// is sent when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the API answers 404 for an entity.
	// The underlying *transport.RequestError stays reachable via errors.As.
	ErrNotFound = errors.New("entity not found")

	// ErrNoThread is returned by comment operations on an entity whose
	// response carries no comment thread.
	ErrNoThread = errors.New("entity has no comment thread")

	// ErrNoMetadataThread is returned by metadata operations on an entity
	// whose response carries no metadata thread.
	ErrNoMetadataThread = errors.New("entity has no metadata thread")
)

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
