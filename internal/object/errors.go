package object

import "errors"

var (
	// ErrObjectNotFound signals an unknown object identifier or an owner
	// mismatch; the two are deliberately indistinguishable.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidObjectID indicates a malformed identifier from the caller.
	ErrInvalidObjectID = errors.New("invalid object id")
	// ErrStorageUnavailable wraps object-store I/O failures.
	ErrStorageUnavailable = errors.New("object storage unavailable")
	// ErrDuplicateObject indicates a primary-key collision on insert. With
	// freshly minted identifiers this points at an ID-generation bug; the
	// request fails and is never retried.
	ErrDuplicateObject = errors.New("duplicate object id")
	// ErrSizeMismatch is returned by the download relay when the stream ends
	// at a length other than the recorded size.
	ErrSizeMismatch = errors.New("object size mismatch")
	// ErrObjectTooLarge signals that the upload exceeds configured limits.
	ErrObjectTooLarge = errors.New("object too large")
)
