// Package lock guards a catalog directory against concurrent opens.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mlib/internal/mlib"
)

// FileName is the lock marker created inside the catalog directory.
const FileName = ".LOCK"

const (
	TypeMarker = "marker"
	TypeFlock  = "flock"
)

// New returns a Locker of the given kind for the catalog at dir. An empty
// kind selects the marker lock.
func New(kind, dir string) (mlib.Locker, error) {
	switch kind {
	case "", TypeMarker:
		return NewMarkerLock(dir), nil
	case TypeFlock:
		return NewFlockLock(dir), nil
	default:
		return nil, fmt.Errorf("unknown lock type: %s", kind)
	}
}

// MarkerLock holds a catalog by the existence of a marker file, created
// with O_EXCL so that exactly one of any number of racing openers wins.
// A marker left behind by a crash keeps the catalog locked until it is
// deleted by hand.
type MarkerLock struct {
	dir  string
	path string
}

// NewMarkerLock returns an unacquired marker lock for dir.
func NewMarkerLock(dir string) *MarkerLock {
	return &MarkerLock{dir: dir, path: filepath.Join(dir, FileName)}
}

func (l *MarkerLock) Acquire() error {
	if err := checkDir(l.dir); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", l.path, mlib.ErrLockHeld)
		}
		return fmt.Errorf("creating lock marker: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("creating lock marker: %w", err)
	}
	return nil
}

// Release removes the marker. A marker that is already gone is not an error.
func (l *MarkerLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock marker: %w", err)
	}
	return nil
}

func (l *MarkerLock) Path() string {
	return l.path
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("catalog directory %s: %w", dir, mlib.ErrNotExists)
		}
		return fmt.Errorf("catalog directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog path %s is not a directory: %w", dir, mlib.ErrNotExists)
	}
	return nil
}

var _ mlib.Locker = (*MarkerLock)(nil)
