// Package catalog lays out a media catalog on disk and manages its
// lifecycle. A catalog is a directory named <name>.mlib:
//
//	<name>.mlib/
//	  .fingerprint    identity marker holding the catalog UUID
//	  .LOCK           present while the catalog is open
//	  metadata.json   names, schema and the cached summary
//	  index.db        SQLite metadata index
//	  medias/         content store
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mlib/internal/index"
	"mlib/internal/lock"
	"mlib/internal/mlib"
	"mlib/internal/probe"
	"mlib/internal/store"
)

const (
	Ext           = ".mlib"
	MetadataFile  = "metadata.json"
	IndexFile     = "index.db"
	IdentityFile  = ".fingerprint"
	MediaDir      = "medias"
	DefaultSchema = "Default"
)

// requiredEntries must all be present for a directory to open as a catalog.
var requiredEntries = []string{IdentityFile, IndexFile, MetadataFile, MediaDir}

// Options configure Create and Open. Zero values select the defaults.
type Options struct {
	MasterName string // shared by catalogs that may later be linked
	LocalName  string
	LockType   string // lock.TypeMarker (default) or lock.TypeFlock; Create records it, Open follows the record
	Logger     mlib.Logger
	Clock      mlib.Clock
	IDGen      mlib.IDGenerator
	Prober     mlib.Prober
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = mlib.NewNopLogger()
	}
	if o.Clock == nil {
		o.Clock = mlib.RealClock{}
	}
	if o.IDGen == nil {
		o.IDGen = mlib.UUIDGenerator{}
	}
	if o.Prober == nil {
		o.Prober = probe.New()
	}
	return o
}

// Info describes a catalog.
type Info struct {
	UUID        string
	Path        string
	MasterName  string
	LocalName   string
	LibraryName string
	Schema      string
	Summary     mlib.Summary
}

// Create makes a new, empty catalog at <parent>/<name>.mlib and leaves it
// closed. Returns ErrAlreadyExists if the directory exists.
func Create(parent, name string, opts Options) (*Info, error) {
	opts = opts.withDefaults()

	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return nil, fmt.Errorf("invalid catalog name %q", name)
	}

	path, err := filepath.Abs(filepath.Join(parent, name+Ext))
	if err != nil {
		return nil, fmt.Errorf("resolving catalog path: %w", err)
	}

	if err := os.Mkdir(path, 0755); err != nil {
		switch {
		case errors.Is(err, os.ErrExist):
			return nil, fmt.Errorf("catalog %s: %w", path, mlib.ErrAlreadyExists)
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("parent directory %s: %w", parent, mlib.ErrNotExists)
		}
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	locker, err := lock.New(opts.LockType, path)
	if err != nil {
		return nil, err
	}
	if err := locker.Acquire(); err != nil {
		return nil, fmt.Errorf("locking new catalog: %w", err)
	}
	defer locker.Release()

	lockType := opts.LockType
	if lockType == "" {
		lockType = lock.TypeMarker
	}
	meta := &Metadata{
		UUID:        opts.IDGen.New(),
		MasterName:  opts.MasterName,
		LocalName:   opts.LocalName,
		LibraryName: name,
		Schema:      DefaultSchema,
		LockType:    lockType,
	}
	if err := meta.Write(filepath.Join(path, MetadataFile)); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	idx, err := index.NewSQLiteIndex(filepath.Join(path, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("initializing index: %w", err)
	}
	if err := idx.RegisterCatalog(meta.UUID, path); err != nil {
		idx.Close()
		return nil, err
	}
	if err := idx.Close(); err != nil {
		return nil, fmt.Errorf("closing index: %w", err)
	}

	if err := writeIdentity(filepath.Join(path, IdentityFile), meta.UUID); err != nil {
		return nil, fmt.Errorf("writing identity marker: %w", err)
	}

	if err := store.NewFileSystemStore(filepath.Join(path, MediaDir)).Init(); err != nil {
		return nil, err
	}

	opts.Logger.Info("catalog created", "uuid", meta.UUID, "path", path)
	return infoFrom(path, meta), nil
}

// Catalog is an open catalog. It holds the lock and the index connection
// until Close. The embedded Service carries the media and series
// operations.
type Catalog struct {
	*mlib.Service

	path   string
	meta   *metadataStore
	index  *index.SQLiteIndex
	locker mlib.Locker
	logger mlib.Logger
	closed bool
}

// Open opens the catalog directory at path for exclusive use.
//
// Returns ErrNotExists if path is not a complete catalog, ErrLockHeld if
// another handle has it open, and ErrIdentityMismatch if the identity
// marker disagrees with the metadata. The lock is released on every
// failure.
//
// The lock type is the one recorded at Create, so every opener of a catalog
// contends on the same lock; opts.LockType is ignored here.
func Open(path string, opts Options) (*Catalog, error) {
	opts = opts.withDefaults()

	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("catalog %s: %w", path, mlib.ErrNotExists)
	}
	for _, entry := range requiredEntries {
		if _, err := os.Stat(filepath.Join(path, entry)); err != nil {
			return nil, fmt.Errorf("catalog %s lacks %s: %w", path, entry, mlib.ErrNotExists)
		}
	}

	metaPath := filepath.Join(path, MetadataFile)
	recorded, err := ReadMetadata(metaPath)
	if err != nil {
		return nil, err
	}

	locker, err := lock.New(recorded.LockType, path)
	if err != nil {
		return nil, err
	}
	if err := locker.Acquire(); err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	success := false
	defer func() {
		if !success {
			locker.Release()
		}
	}()

	// Re-read under the lock; the previous holder may have updated it.
	meta, err := ReadMetadata(metaPath)
	if err != nil {
		return nil, err
	}

	identity, err := readIdentity(filepath.Join(path, IdentityFile))
	if err != nil {
		return nil, err
	}
	if identity != meta.UUID {
		return nil, fmt.Errorf("marker %s, metadata %s: %w", identity, meta.UUID, mlib.ErrIdentityMismatch)
	}

	content := store.NewFileSystemStore(filepath.Join(path, MediaDir))
	if err := content.ValidateSetup(); err != nil {
		return nil, err
	}

	idx, err := index.NewSQLiteIndex(filepath.Join(path, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	// The catalog may have been moved since it was last opened.
	if err := idx.RegisterCatalog(meta.UUID, path); err != nil {
		idx.Close()
		return nil, err
	}

	summary := newMetadataStore(metaPath, meta)
	c := &Catalog{
		Service: mlib.NewService(idx, content, summary, opts.Prober, opts.Logger, opts.Clock, opts.IDGen),
		path:    path,
		meta:    summary,
		index:   idx,
		locker:  locker,
		logger:  opts.Logger,
	}

	success = true
	opts.Logger.Info("catalog opened", "uuid", meta.UUID, "path", path)
	return c, nil
}

// Close closes the index and releases the lock. Only the first call has
// any effect.
func (c *Catalog) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if err := c.Service.Close(); err != nil {
		firstErr = fmt.Errorf("closing index: %w", err)
	}
	if err := c.locker.Release(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("releasing lock: %w", err)
	}

	c.logger.Info("catalog closed", "path", c.path)
	return firstErr
}

// Info returns the catalog's identity, names and cached summary.
func (c *Catalog) Info() *Info {
	meta := c.meta.metadata()
	return infoFrom(c.path, &meta)
}

// Path returns the absolute catalog directory.
func (c *Catalog) Path() string {
	return c.path
}

// BackupIndex writes a consistent copy of the index to destPath.
func (c *Catalog) BackupIndex(destPath string) error {
	return c.index.BackupTo(destPath)
}

func infoFrom(path string, meta *Metadata) *Info {
	return &Info{
		UUID:        meta.UUID,
		Path:        path,
		MasterName:  meta.MasterName,
		LocalName:   meta.LocalName,
		LibraryName: meta.LibraryName,
		Schema:      meta.Schema,
		Summary:     meta.Summary,
	}
}
