package mlib

import "io"

// Blob describes media bytes placed in the content store.
type Blob struct {
	Hash string
	Ext  string
	Size int64
	Path string
}

// ContentStore keeps media bytes addressed by their content hash.
type ContentStore interface {
	// Ingest hashes and copies the file at sourcePath into the store.
	// The source is never modified. Returns ErrAlreadyExists when a blob
	// with the same hash is already stored.
	Ingest(sourcePath string) (*Blob, error)

	// Remove deletes the blob for hash and ext. Returns ErrInconsistent if
	// the blob is absent.
	Remove(hash, ext string) error

	// Path returns the absolute path the blob for hash and ext lives at.
	Path(hash, ext string) string

	// Exists reports whether the blob for hash and ext is present.
	Exists(hash, ext string) (bool, error)

	// Open opens a stored blob for reading.
	Open(hash, ext string) (io.ReadCloser, error)
}
