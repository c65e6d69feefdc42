package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mlib/internal/catalog"
	"mlib/internal/config"
	"mlib/internal/encryption"
	"mlib/internal/fs"
	"mlib/internal/mlib"
	"mlib/internal/snapshot"
)

// MlibApp is the application layer between the CLI and the catalog.
// It constructs dependencies from config, exposes high-level operations
// that accept raw CLI input, and releases the catalog on Close.
type MlibApp struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	scanner   *fs.Scanner
	encryptor mlib.Encryptor // nil when snapshots are not encrypted
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
}

// NewMlibApp creates an MlibApp from the given config. operation names the
// CLI command being run (e.g. "AddFiles") and tags its log lines. No
// catalog is open until OpenLibrary. The caller must call Close when done.
func NewMlibApp(cfg *config.Config, operation string) (*MlibApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Snapshot.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	op := NewOperation(operation, mlib.RealClock{}.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger.Debug("operation started", "name", op.Name)

	return &MlibApp{
		cfg:       cfg,
		scanner:   fs.NewScanner(cfg.Scan.Ignore),
		encryptor: enc,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

func (a *MlibApp) catalogOptions() catalog.Options {
	return catalog.Options{
		MasterName: a.cfg.Catalog.MasterName,
		LocalName:  a.cfg.Catalog.LocalName,
		LockType:   a.cfg.Lock.Type,
		Logger:     &slogAdapter{l: a.logger},
	}
}

// CreateCatalog creates <parent>/<name>.mlib using the configured names
// and lock type.
func (a *MlibApp) CreateCatalog(parent, name string) (*catalog.Info, error) {
	info, err := catalog.Create(parent, name, a.catalogOptions())
	a.op.Fail(err)
	return info, err
}

// OpenLibrary opens the catalog at rawPath, or the configured library when
// rawPath is empty.
func (a *MlibApp) OpenLibrary(rawPath string) error {
	if a.catalog != nil {
		return fmt.Errorf("library %s is already open", a.catalog.Path())
	}
	if rawPath == "" {
		rawPath = a.cfg.LibraryPath
	}
	if rawPath == "" {
		return fmt.Errorf("no library given: pass --library or set library_path in the config")
	}

	c, err := catalog.Open(rawPath, a.catalogOptions())
	if err != nil {
		a.op.Fail(err)
		return err
	}
	a.catalog = c
	return nil
}

// Catalog returns the open catalog, or nil before OpenLibrary.
func (a *MlibApp) Catalog() *catalog.Catalog {
	return a.catalog
}

func (a *MlibApp) requireCatalog() (*catalog.Catalog, error) {
	if a.catalog == nil {
		return nil, fmt.Errorf("no library open")
	}
	return a.catalog, nil
}

// CollectFiles expands rawPaths into the regular files a bulk add would
// ingest, applying the configured ignore patterns.
func (a *MlibApp) CollectFiles(rawPaths []string, recursive bool) ([]string, error) {
	return a.scanner.Collect(rawPaths, recursive)
}

// AddResult is the outcome of adding one file.
type AddResult struct {
	Path string
	ID   int64
	Err  error
}

// Duplicate reports whether the file was skipped because its content is
// already in the catalog.
func (r AddResult) Duplicate() bool {
	return errors.Is(r.Err, mlib.ErrAlreadyExists)
}

// AddFiles adds each file with the same type and options. A failure on one
// file does not stop the rest; it is recorded in that file's result.
// progress, if non-nil, is called after every file.
func (a *MlibApp) AddFiles(files []string, kind mlib.MediaType, opts mlib.AddOptions, progress func(AddResult)) ([]AddResult, error) {
	c, err := a.requireCatalog()
	if err != nil {
		return nil, err
	}

	results := make([]AddResult, 0, len(files))
	failed := 0
	for _, f := range files {
		id, err := c.AddMedia(f, kind, opts)
		r := AddResult{Path: f, ID: id, Err: err}
		if err != nil && !r.Duplicate() {
			failed++
			a.logger.Error("add failed", "path", f, "error", err)
		}
		results = append(results, r)
		if progress != nil {
			progress(r)
		}
	}

	if failed > 0 {
		a.op.Status = "error"
	}
	a.logger.Info("bulk add finished", "files", len(files), "failed", failed)
	return results, nil
}

// ParseAssignments turns key=value arguments into an update field map.
// An empty value clears the field. The field allow-list is applied later
// by the catalog.
func ParseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", arg)
		}
		fields[strings.TrimSpace(key)] = value
	}
	return fields, nil
}

// UpdateMedia applies key=value assignments to a media record.
func (a *MlibApp) UpdateMedia(id int64, assignments []string) error {
	c, err := a.requireCatalog()
	if err != nil {
		return err
	}
	fields, err := ParseAssignments(assignments)
	if err != nil {
		return err
	}
	err = c.UpdateMedia(id, fields)
	a.op.Fail(err)
	return err
}

// ParseOrdinal parses a series position argument. "" and "-" mean
// unordered.
func ParseOrdinal(s string) (*int64, error) {
	if s == "" || s == "-" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ordinal %q: %w", s, err)
	}
	return mlib.Ordinal(n), nil
}

// SnapshotEncrypted reports whether snapshots are sealed with a key pair.
func (a *MlibApp) SnapshotEncrypted() bool {
	return a.encryptor != nil
}

// SetupKeys generates the snapshot key pair, protecting the private key
// with passphrase.
func (a *MlibApp) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("snapshot encryption is disabled in the config")
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		a.op.Fail(err)
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("snapshot keys created")
	return nil
}

// ExportSnapshot writes a snapshot of the open catalog's index to destPath,
// which must not exist. Returns the size of the unsealed index.
func (a *MlibApp) ExportSnapshot(destPath string) (int64, error) {
	c, err := a.requireCatalog()
	if err != nil {
		return 0, err
	}
	if a.encryptor != nil && !a.encryptor.IsConfigured() {
		return 0, fmt.Errorf("snapshot keys not found: run 'mlib keys init' first")
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("snapshot %s: %w", destPath, mlib.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("creating snapshot file: %w", err)
	}

	size, err := snapshot.Export(c, f, a.encryptor)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing snapshot file: %w", cerr)
	}
	if err != nil {
		os.Remove(destPath)
		a.op.Fail(err)
		return 0, err
	}

	a.logger.Info("snapshot exported", "path", destPath, "bytes", size, "sealed", a.encryptor != nil)
	return size, nil
}

// RestoreSnapshot restores the index snapshot at srcPath to destPath. The
// passphrase unlocks the private key and is ignored when snapshots are not
// encrypted.
func (a *MlibApp) RestoreSnapshot(srcPath, destPath, passphrase string) error {
	var dec mlib.DecryptionContext
	if a.encryptor != nil {
		d, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			a.op.Fail(err)
			return fmt.Errorf("unlocking private key: %w", err)
		}
		dec = d
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	destPath, err = filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolving restore target: %w", err)
	}
	if err := snapshot.Restore(f, destPath, dec); err != nil {
		a.op.Fail(err)
		return err
	}

	a.logger.Info("snapshot restored", "from", srcPath, "to", destPath)
	return nil
}

// Fail marks the running operation as failed.
func (a *MlibApp) Fail(err error) {
	a.op.Fail(err)
}

// Close closes the catalog, logs the operation outcome and closes the log.
func (a *MlibApp) Close() error {
	var firstErr error

	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			firstErr = fmt.Errorf("closing library: %w", err)
			a.op.Status = "error"
		}
	}

	a.logger.Info("operation finished",
		"name", a.op.Name,
		"status", a.op.Status,
		"elapsed", a.op.Elapsed(mlib.RealClock{}.Now()),
	)

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
