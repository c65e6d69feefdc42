package mlib

import "errors"

// Sentinel errors returned by the catalog core. Callers compare with
// errors.Is; every layer wraps them with context. None are retried.
var (
	// ErrAlreadyExists: the catalog path is taken, or the content hash is
	// already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotExists: a catalog or source file is missing or malformed.
	ErrNotExists = errors.New("does not exist")

	// ErrNotFound: no media or series with the given identifier.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld: the catalog lock marker is already present.
	ErrLockHeld = errors.New("catalog lock is held")

	// ErrIdentityMismatch: the identity marker disagrees with metadata.json.
	ErrIdentityMismatch = errors.New("catalog identity mismatch")

	// ErrOrdinalOccupied: the requested series ordinal is in use and
	// insertion was not allowed.
	ErrOrdinalOccupied = errors.New("series ordinal occupied")

	// ErrNotInSeries: renumber requested for media outside any series.
	ErrNotInSeries = errors.New("media is not in a series")

	// ErrInconsistent: the index and the filesystem disagree about a media
	// file. Non-recoverable; the caller must repair the catalog.
	ErrInconsistent = errors.New("fatal: index and media storage are inconsistent")

	// ErrSeriesNotEmpty: a series still has members and cannot be deleted.
	ErrSeriesNotEmpty = errors.New("series still has members")

	// ErrInvalidValue: an update field carried a value of the wrong type.
	ErrInvalidValue = errors.New("invalid field value")

	// ErrInvalidMediaType: the media type is not one of the known kinds.
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrClosed: the catalog or index was used after Close.
	ErrClosed = errors.New("catalog is closed")
)
