package main

import (
	"fmt"
	"os"

	"mlib/internal/app"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassphrase prompts on stderr and reads without echo. When stdin is
// not a terminal the passphrase comes from MLIB_PASSPHRASE.
func readPassphrase(prompt string) (string, error) {
	if !isTerminal(os.Stdin) {
		if p := os.Getenv("MLIB_PASSPHRASE"); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("no terminal for passphrase prompt: set MLIB_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export and restore index snapshots",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write a snapshot of the catalog index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("SnapshotExport", func(a *app.MlibApp) error {
			size, err := a.ExportSnapshot(args[0])
			if err != nil {
				return err
			}
			sealed := ""
			if a.SnapshotEncrypted() {
				sealed = " (encrypted)"
			}
			fmt.Printf("Exported %s index to %s%s\n", humanize.IBytes(uint64(size)), args[0], sealed)
			return nil
		})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore FILE DEST",
	Short: "Restore a snapshot to a new index file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("SnapshotRestore")
		if err != nil {
			return err
		}
		defer func() {
			a.Fail(err)
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()

		var passphrase string
		if a.SnapshotEncrypted() {
			if passphrase, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		if err := a.RestoreSnapshot(args[0], args[1], passphrase); err != nil {
			return err
		}
		fmt.Printf("Restored index to %s\n", args[1])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("KeysInit")
		if err != nil {
			return err
		}
		defer func() {
			a.Fail(err)
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if isTerminal(os.Stdin) {
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return fmt.Errorf("passphrases do not match")
			}
		}

		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Snapshot keys created.")
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	rootCmd.AddCommand(snapshotCmd)

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)
}
