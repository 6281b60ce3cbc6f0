package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for reference bookkeeping. Every one of them signals that
// the caller's id or reference tracking has drifted from the element set.
var (
	// ErrDuplicateID is returned when an id is registered twice.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownID is returned when unregistering an id that was never
	// registered.
	ErrUnknownID = errors.New("unknown id")

	// ErrUnknownReference is returned when removing a reference the
	// manager does not track.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrInvalidTarget is returned for empty ids and zero handles.
	ErrInvalidTarget = errors.New("invalid registration")
)

// DuplicateIDError reports an id collision. The first registration is kept.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("id %q is not unique", e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// UnknownIDError reports an unregister call for an id that is not present.
type UnknownIDError struct {
	ID string
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("id %q is not registered", e.ID)
}

func (e *UnknownIDError) Unwrap() error { return ErrUnknownID }

// UnknownReferenceError reports a removeReference call that does not match
// any tracked referrer of ID.
type UnknownReferenceError struct {
	ID string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("no tracked reference to %q", e.ID)
}

func (e *UnknownReferenceError) Unwrap() error { return ErrUnknownReference }

// DanglingReferenceWarning describes a reference whose target id does not
// resolve. It is reported by FixReferences and never returned as an error.
type DanglingReferenceWarning struct {
	ID       string
	Referrer Referrer
}

func (w DanglingReferenceWarning) String() string {
	return fmt.Sprintf("dangling reference to %q from %v", w.ID, w.Referrer)
}
