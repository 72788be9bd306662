package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrAlreadyDeleted: evidence row was already soft-deleted
// - ErrDuplicate: a row with the same content hash already exists
// - ErrConflict: link already exists, or write-once key already written
// - ErrLocked: object under retention lock, mutation refused
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyDeleted = errors.New("already deleted")
	ErrDuplicate      = errors.New("duplicate")
	ErrConflict       = errors.New("conflict")
	ErrLocked         = errors.New("locked")
	ErrUnavailable    = errors.New("unavailable")
)
