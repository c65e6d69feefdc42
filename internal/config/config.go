package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mlib.
type Config struct {
	BaseDir     string         `toml:"base_dir"`
	LibraryPath string         `toml:"library_path"` // catalog used when --library is not given
	LogDir      string         `toml:"log_dir"`
	LogLevel    string         `toml:"log_level"` // debug, info (default), warn, error
	Catalog     CatalogConfig  `toml:"catalog"`
	Lock        LockConfig     `toml:"lock"`
	Scan        ScanConfig     `toml:"scan"`
	Snapshot    SnapshotConfig `toml:"snapshot"`
}

// CatalogConfig holds the names given to newly created catalogs.
type CatalogConfig struct {
	MasterName string `toml:"master_name"`
	LocalName  string `toml:"local_name"`
}

// LockConfig selects the lock implementation for newly created catalogs.
// An existing catalog keeps the type it was created with.
type LockConfig struct {
	Type string `toml:"type"` // "marker" (default) or "flock"
}

// ScanConfig controls which files a directory add picks up.
type ScanConfig struct {
	Ignore []string `toml:"ignore"` // glob patterns, same syntax as .mlibignore
}

// SnapshotConfig controls index snapshot export.
type SnapshotConfig struct {
	Encryption EncryptionConfig `toml:"encryption"`
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

var (
	logLevels       = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	lockTypes       = map[string]bool{"": true, "marker": true, "flock": true}
	encryptionTypes = map[string]bool{"": true, "age": true, "test": true, "none": true}
)

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Lock:     LockConfig{Type: "marker"},
		Snapshot: SnapshotConfig{
			Encryption: EncryptionConfig{
				Type:           "age",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "mlib.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "mlib.key"),
			},
		},
	}
}

// Validate checks enumerated settings and the fields they require.
func (c *Config) Validate() error {
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if !lockTypes[c.Lock.Type] {
		return fmt.Errorf("invalid lock type %q", c.Lock.Type)
	}
	enc := c.Snapshot.Encryption
	if !encryptionTypes[enc.Type] {
		return fmt.Errorf("invalid snapshot encryption type %q", enc.Type)
	}
	if enc.Type == "age" || enc.Type == "" {
		if enc.PublicKeyPath == "" || enc.PrivateKeyPath == "" {
			return fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
