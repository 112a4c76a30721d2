package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for invariant-guard rejections and infrastructure
// failures. Callers match them with errors.Is after any wrapping.
var (
	// ErrDuplicateUser rejects registration of an already-taken username.
	ErrDuplicateUser = errors.New("username already registered")
	// ErrDuplicateRequest rejects a second live request for the same
	// (animal, user) pair.
	ErrDuplicateRequest = errors.New("adoption already requested")
	// ErrAlreadyAdopted rejects any operation that would produce a second
	// adoption for one animal.
	ErrAlreadyAdopted = errors.New("animal already adopted")
	// ErrRequestNotFound rejects a decision on a pair with no live request.
	ErrRequestNotFound = errors.New("adoption request not found")
	// ErrInvalidCredentials reports an authentication failure without
	// disclosing which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStoreUnavailable reports that the backing resource cannot be
	// reached or read.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreCorrupt reports that the backing resource does not match the
	// expected table shapes.
	ErrStoreCorrupt = errors.New("store corrupt")
	// ErrConflict reports that the backing resource was modified by an
	// external writer since this process last loaded it.
	ErrConflict = errors.New("snapshot modified concurrently")
)

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err carries a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
