package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"mlib/internal/app"
	"mlib/internal/config"
	"mlib/internal/mlib"

	"github.com/spf13/cobra"
)

// Exit codes. An inconsistent catalog is reported apart from ordinary
// failures since it needs manual repair.
const (
	exitError        = 1
	exitInconsistent = 3
)

var libraryFlag string

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, mlib.ErrInconsistent) {
			os.Exit(exitInconsistent)
		}
		os.Exit(exitError)
	}
}

// loadConfig reads the config file, falling back to defaults rooted at the
// base directory when no file has been written yet.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if errors.Is(err, os.ErrNotExist) {
		return config.NewConfig(defaults["base_dir"]), defaults, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates an MlibApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "AddFiles", "TrimSeries").
func newApp(operation string) (*app.MlibApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewMlibApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withLibrary runs fn against the selected library: --library, then
// MLIB_LIBRARY, then library_path from the config.
func withLibrary(operation string, fn func(a *app.MlibApp) error) (err error) {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer func() {
		a.Fail(err)
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()

	path := libraryFlag
	if path == "" {
		defaults, derr := app.GetDefaults()
		if derr != nil {
			return derr
		}
		path = defaults["library"]
	}
	if err := a.OpenLibrary(path); err != nil {
		return err
	}
	return fn(a)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid media id %q", s)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:          "mlib",
	Short:        "Content-addressed media catalog",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.LibraryPath = defaults["library"]

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Println(renderTable(
			[]string{"Setting", "Value"},
			[][]string{
				{"base_dir", cfg.BaseDir},
				{"library_path", cfg.LibraryPath},
				{"log_dir", cfg.LogDir},
				{"log_level", cfg.LogLevel},
				{"catalog.master_name", cfg.Catalog.MasterName},
				{"catalog.local_name", cfg.Catalog.LocalName},
				{"lock.type", cfg.Lock.Type},
				{"scan.ignore", fmt.Sprint(cfg.Scan.Ignore)},
				{"snapshot.encryption.type", cfg.Snapshot.Encryption.Type},
			},
			nil,
		))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&libraryFlag, "library", "l", "", "Catalog directory (<name>.mlib)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
