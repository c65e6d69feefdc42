// Package store implements the content-addressed media store on the local
// filesystem.
package store

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mlib/internal/mlib"
)

// HashAlgorithm names the content hash. It is fixed per build:
//
//	go build -ldflags "-X mlib/internal/store.HashAlgorithm=SHA256"
//
// Catalogs written with one algorithm cannot be read with another.
var HashAlgorithm = "MD5"

func newHasher() (hash.Hash, error) {
	switch strings.ToUpper(HashAlgorithm) {
	case "MD5":
		return md5.New(), nil
	case "SHA1":
		return sha1.New(), nil
	case "SHA256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", HashAlgorithm)
	}
}

// Hash returns the uppercase hex content hash of everything read from r.
func Hash(r io.Reader) (string, error) {
	h, err := newHasher()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// FileSystemStore keeps media files under a root directory, sharded by the
// first two characters of the content hash:
//
//	<root>/
//	  <hash[0:2]>/
//	    <hash[2:]><ext>
type FileSystemStore struct {
	root string
}

// NewFileSystemStore returns a store rooted at root. The directory is not
// created; see Init.
func NewFileSystemStore(root string) *FileSystemStore {
	return &FileSystemStore{root: root}
}

// Init creates the root directory.
func (s *FileSystemStore) Init() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("creating media directory: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the root directory exists.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("media directory %s: %w", s.root, mlib.ErrNotExists)
		}
		return fmt.Errorf("media directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media directory %s is not a directory: %w", s.root, mlib.ErrNotExists)
	}
	return nil
}

// Root returns the store's root directory.
func (s *FileSystemStore) Root() string {
	return s.root
}

// Ingest hashes the file at sourcePath and copies it into the store. The
// source is only read. Hashing and copying happen in a single pass into a
// temp file, which is renamed into place once the hash is known.
func (s *FileSystemStore) Ingest(sourcePath string) (*mlib.Blob, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("source %s: %w", sourcePath, mlib.ErrNotExists)
		}
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("source %s is not a regular file: %w", sourcePath, mlib.ErrNotExists)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	h, err := newHasher()
	if err != nil {
		return nil, err
	}

	tmpFile, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(io.MultiWriter(tmpFile, h), src)
	if err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("copying source: %w", err)
	}
	// CreateTemp makes the file 0600; the stored copy keeps the source's bits.
	if err := tmpFile.Chmod(info.Mode().Perm()); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if written != info.Size() {
		return nil, fmt.Errorf("source %s changed while copying: expected %d bytes, got %d", sourcePath, info.Size(), written)
	}

	sum := strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
	ext := Ext(sourcePath)

	stored, err := s.findStem(sum)
	if err != nil {
		return nil, err
	}
	if stored != "" {
		return nil, fmt.Errorf("content %s stored at %s: %w", sum, stored, mlib.ErrAlreadyExists)
	}

	destPath := s.Path(sum, ext)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return nil, fmt.Errorf("moving content into place: %w", err)
	}

	success = true
	return &mlib.Blob{Hash: sum, Ext: ext, Size: written, Path: destPath}, nil
}

// Ext returns the extension kept on a stored file. Leading dots of the base
// name are not an extension, so ".bashrc" has none and "..a.txt" has ".txt".
func Ext(path string) string {
	return filepath.Ext(strings.TrimLeft(filepath.Base(path), "."))
}

// Remove deletes the stored file for hash and ext. A missing file means the
// index and the store have diverged and is reported as ErrInconsistent.
func (s *FileSystemStore) Remove(hash, ext string) error {
	path := s.Path(hash, ext)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("content %s missing at %s: %w", hash, path, mlib.ErrInconsistent)
		}
		return fmt.Errorf("removing content: %w", err)
	}
	return nil
}

// Path returns where the file for hash and ext is stored.
func (s *FileSystemStore) Path(hash, ext string) string {
	if len(hash) < 2 {
		return filepath.Join(s.root, hash+ext)
	}
	return filepath.Join(s.root, hash[:2], hash[2:]+ext)
}

// Exists reports whether the file for hash and ext is present.
func (s *FileSystemStore) Exists(hash, ext string) (bool, error) {
	_, err := os.Stat(s.Path(hash, ext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking content: %w", err)
}

// Open opens the stored file for reading. The returned reader also
// implements io.Seeker.
func (s *FileSystemStore) Open(hash, ext string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(hash, ext))
	if err != nil {
		return nil, fmt.Errorf("opening content %s: %w", hash, err)
	}
	return f, nil
}

// findStem returns the path of any stored file with the given hash,
// whatever its extension, or "" if there is none.
func (s *FileSystemStore) findStem(hash string) (string, error) {
	shard := filepath.Dir(s.Path(hash, ""))
	stem := filepath.Base(s.Path(hash, ""))

	entries, err := os.ReadDir(shard)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading shard directory: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if name == stem || (strings.HasPrefix(name, stem) && name[len(stem)] == '.') {
			return filepath.Join(shard, name), nil
		}
	}
	return "", nil
}

// Compile-time check that FileSystemStore implements mlib.ContentStore.
var _ mlib.ContentStore = (*FileSystemStore)(nil)
