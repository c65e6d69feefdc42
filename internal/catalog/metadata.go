package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mlib/internal/mlib"
)

// Metadata is the catalog's self-description, stored as metadata.json.
type Metadata struct {
	UUID        string       `json:"UUID"`
	MasterName  string       `json:"master_name"`
	LocalName   string       `json:"local_name"`
	LibraryName string       `json:"library_name"`
	Summary     mlib.Summary `json:"summary"`
	Schema      string       `json:"schema"`
	LockType    string       `json:"lock_type,omitempty"` // empty in catalogs that predate the field: marker
}

// ReadMetadata loads metadata from path. A missing or malformed file means
// the directory is not a usable catalog.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("metadata %s: %w", path, mlib.ErrNotExists)
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata %s: %v: %w", path, err, mlib.ErrNotExists)
	}
	meta.UUID = strings.TrimSpace(meta.UUID)
	return &meta, nil
}

// Write stores the metadata at path atomically.
func (m *Metadata) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic replaces path with data via a temp file in the same
// directory, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// metadataStore is the catalog's SummaryStore: the summary lives inside
// metadata.json and every update rewrites the file.
type metadataStore struct {
	mu   sync.Mutex
	path string
	meta Metadata
}

func newMetadataStore(path string, meta *Metadata) *metadataStore {
	return &metadataStore{path: path, meta: *meta}
}

func (s *metadataStore) Summary() mlib.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Summary
}

// UpdateSummary applies fn and persists the result. The in-memory summary
// only changes once the write succeeds.
func (s *metadataStore) UpdateSummary(fn func(*mlib.Summary)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.meta
	fn(&next.Summary)
	if err := next.Write(s.path); err != nil {
		return err
	}
	s.meta = next
	return nil
}

func (s *metadataStore) metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

var _ mlib.SummaryStore = (*metadataStore)(nil)

// readIdentity returns the UUID recorded in the identity marker.
func readIdentity(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("identity marker %s: %w", path, mlib.ErrNotExists)
		}
		return "", fmt.Errorf("reading identity marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeIdentity(path, uuid string) error {
	return writeFileAtomic(path, []byte(uuid))
}
