package canvas

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned when a move would make a container its own
	// ancestor.
	ErrCycle = errors.New("containment cycle")

	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow. State is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when a referenced entity does not exist, or
	// exists with the wrong kind (e.g. a room id that names a text item).
	ErrNotFound = errors.New("entity not found")

	// ErrOutOfScope is returned when an operation targets an entity that is
	// not in the visible set of the room it is applied to.
	ErrOutOfScope = errors.New("entity out of scope")

	// ErrInvalidDraft is returned by AddItem for an unknown item type or a
	// draft that names both a folder and a room.
	ErrInvalidDraft = errors.New("invalid draft")
)

// OpError records the operation and entity that failed.
type OpError struct {
	Op  string
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op, id string, err error) error {
	return &OpError{Op: op, ID: id, Err: err}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
