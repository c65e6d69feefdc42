package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - MLIB_CONFIG_PATH: config file location (default: ~/.config/mlib.toml)
//   - MLIB_HOME: base directory for mlib data (default: ~/.local/share/mlib)
//   - MLIB_LIBRARY: catalog to operate on when --library is not given
func GetDefaults() (map[string]string, error) {
	v := viper.New()
	v.SetEnvPrefix("MLIB")
	for _, key := range []string{"config_path", "home", "library"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	// Set but empty variables fall back to the defaults as well.
	configPath := v.GetString("config_path")
	if configPath == "" {
		configPath = filepath.Join(homeDir, ".config", "mlib.toml")
	}
	baseDir := v.GetString("home")
	if baseDir == "" {
		baseDir = filepath.Join(homeDir, ".local", "share", "mlib")
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"library":     v.GetString("library"),
	}, nil
}
