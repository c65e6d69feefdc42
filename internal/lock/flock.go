package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"mlib/internal/mlib"
)

// FlockLock holds the marker file under an OS advisory lock for as long as
// the catalog is open. The kernel drops the lock when the holder exits, so
// a stale marker from a crashed process does not block later opens.
type FlockLock struct {
	dir  string
	lock *flock.Flock
}

// NewFlockLock returns an unacquired advisory lock for dir.
func NewFlockLock(dir string) *FlockLock {
	return &FlockLock{dir: dir, lock: flock.New(filepath.Join(dir, FileName))}
}

func (l *FlockLock) Acquire() error {
	if err := checkDir(l.dir); err != nil {
		return err
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.Path(), mlib.ErrLockHeld)
	}
	return nil
}

// Release removes the marker, then drops the OS lock.
func (l *FlockLock) Release() error {
	if !l.lock.Locked() {
		return nil
	}

	var firstErr error
	if err := os.Remove(l.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		firstErr = fmt.Errorf("removing lock marker: %w", err)
	}
	if err := l.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("releasing lock: %w", err)
	}
	return firstErr
}

func (l *FlockLock) Path() string {
	return l.lock.Path()
}

var _ mlib.Locker = (*FlockLock)(nil)
