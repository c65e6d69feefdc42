package mlib

// Locker guards a catalog directory against concurrent openings.
type Locker interface {
	// Acquire takes the lock. Returns ErrLockHeld if it is already taken.
	Acquire() error

	// Release gives the lock up. Safe to call when the lock marker is
	// already gone.
	Release() error

	// Path returns the lock marker path.
	Path() string
}
