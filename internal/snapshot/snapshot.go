// Package snapshot exports and restores copies of a catalog index,
// optionally sealed with an Encryptor.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mlib/internal/index"
	"mlib/internal/index/migrations"
	"mlib/internal/mlib"
)

// Source produces a consistent copy of an index at a path.
type Source interface {
	BackupIndex(destPath string) error
}

// Export writes a snapshot of src to w. When enc is nil the snapshot is
// the plain SQLite file. Returns the number of plaintext bytes.
func Export(src Source, w io.Writer, enc mlib.Encryptor) (int64, error) {
	tmpDir, err := os.MkdirTemp("", "mlib-snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	copyPath := filepath.Join(tmpDir, "index.db")
	if err := src.BackupIndex(copyPath); err != nil {
		return 0, err
	}

	f, err := os.Open(copyPath)
	if err != nil {
		return 0, fmt.Errorf("opening index copy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading index copy: %w", err)
	}

	if enc == nil {
		if _, err := io.Copy(w, f); err != nil {
			return 0, fmt.Errorf("writing snapshot: %w", err)
		}
		return info.Size(), nil
	}

	if err := enc.Encrypt(f, w); err != nil {
		return 0, fmt.Errorf("sealing snapshot: %w", err)
	}
	return info.Size(), nil
}

// Restore reads a snapshot from r and writes the index to destPath, which
// must not exist. dec unseals the input; nil means it is plain. The
// restored file is checked to be an index at the current schema version
// before it is moved into place.
func Restore(r io.Reader, destPath string, dec mlib.DecryptionContext) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("restore target %s: %w", destPath, mlib.ErrAlreadyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking restore target: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if dec != nil {
		err = dec.Decrypt(r, tmpFile)
	} else {
		_, err = io.Copy(tmpFile, r)
	}
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("reading snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := verify(tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("moving index into place: %w", err)
	}
	success = true
	return nil
}

func verify(path string) error {
	db, err := index.OpenConnection(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.CheckStatus(db); err != nil {
		return fmt.Errorf("snapshot is not a usable index: %w", err)
	}
	// Reading every row catches a truncated copy.
	if _, err := index.NewSQLiteIndexFromDB(db).ListMedia(); err != nil {
		return fmt.Errorf("snapshot is not a usable index: %w", err)
	}
	return nil
}
