package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"mlib/internal/app"
	"mlib/internal/mlib"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// create command
var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp("CreateCatalog")
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); err == nil {
				err = cerr
			}
		}()

		info, err := a.CreateCatalog(parent, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Created catalog %s\n", info.Path)
		fmt.Printf("UUID: %s\n", info.UUID)
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show catalog identity and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("Info", func(a *app.MlibApp) error {
			info := a.Catalog().Info()
			fmt.Println(renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"Path", info.Path},
					{"UUID", info.UUID},
					{"Library", info.LibraryName},
					{"Master", info.MasterName},
					{"Local", info.LocalName},
					{"Schema", info.Schema},
					{"Media", strconv.FormatInt(info.Summary.MediaCount, 10)},
					{"Series", strconv.FormatInt(info.Summary.GroupCount, 10)},
					{"Size", humanize.IBytes(uint64(info.Summary.MediaSize))},
				},
				nil,
			))
			return nil
		})
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Add files to the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		typeName, _ := cmd.Flags().GetString("type")
		var opts mlib.AddOptions
		opts.SubType, _ = cmd.Flags().GetString("subtype")
		opts.TypeAddition, _ = cmd.Flags().GetString("type-addition")
		opts.Caption, _ = cmd.Flags().GetString("caption")
		opts.Comment, _ = cmd.Flags().GetString("comment")

		kind, err := mlib.ParseMediaType(typeName)
		if err != nil {
			return err
		}

		return withLibrary("AddFiles", func(a *app.MlibApp) error {
			files, err := a.CollectFiles(args, recursive)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No files found.")
				return nil
			}

			var bar *progressbar.ProgressBar
			if len(files) > 1 && isTerminal(os.Stdout) {
				bar = progressbar.NewOptions(len(files),
					progressbar.OptionSetDescription("Adding"),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionSetItsString("files"),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionClearOnFinish(),
				)
			}

			results, err := a.AddFiles(files, kind, opts, func(app.AddResult) {
				if bar != nil {
					bar.Add(1)
				}
			})
			if err != nil {
				return err
			}
			if bar != nil {
				bar.Finish()
			}

			var added, dups, failed int
			for _, r := range results {
				switch {
				case r.Err == nil:
					added++
					if bar == nil {
						fmt.Printf("%d\t%s\n", r.ID, r.Path)
					}
				case r.Duplicate():
					dups++
					fmt.Fprintf(os.Stderr, "duplicate: %s\n", r.Path)
				default:
					failed++
					fmt.Fprintf(os.Stderr, "error: %s: %v\n", r.Path, r.Err)
				}
			}

			fmt.Printf("Added %d file(s), %d duplicate(s), %d failed\n", added, dups, failed)
			if failed > 0 {
				return fmt.Errorf("%d file(s) could not be added", failed)
			}
			return nil
		})
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List media",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("ListMedia", func(a *app.MlibApp) error {
			all, err := a.Catalog().ListMedia()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No media.")
				return nil
			}

			rows := make([][]string, 0, len(all))
			for _, m := range all {
				rows = append(rows, []string{
					strconv.FormatInt(m.ID, 10),
					m.Filename,
					m.Type.String(),
					humanize.IBytes(uint64(m.Size)),
					seriesLabel(m),
					m.Caption,
				})
			}
			fmt.Println(renderTable(
				[]string{"ID", "Filename", "Type", "Size", "Series", "Caption"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		})
	},
}

func seriesLabel(m *mlib.Media) string {
	if !m.InSeries() {
		return ""
	}
	if m.SeriesNo == nil {
		return m.SeriesUUID[:8] + " #-"
	}
	return fmt.Sprintf("%s #%d", m.SeriesUUID[:8], *m.SeriesNo)
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one media record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		probe, _ := cmd.Flags().GetBool("probe")
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		return withLibrary("ShowMedia", func(a *app.MlibApp) error {
			m, err := a.Catalog().GetMedia(id)
			if err != nil {
				return err
			}
			path, err := a.Catalog().MediaPath(id)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"ID", strconv.FormatInt(m.ID, 10)},
				{"Hash", m.Hash},
				{"Filename", m.Filename},
				{"Stored at", path},
				{"Size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(m.Size)), m.Size)},
				{"Added", fmt.Sprintf("%s (%s)", m.AddedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(m.AddedAt))},
				{"Type", m.Type.String()},
				{"Sub-type", m.SubType},
				{"Type addition", m.TypeAddition},
				{"Caption", m.Caption},
				{"Series", seriesLabel(m)},
				{"Comment", m.Comment},
			}

			if probe {
				d, err := a.Catalog().ProbeMedia(id)
				if err != nil {
					return err
				}
				rows = append(rows, []string{"Format", d.Format})
				if d.Width > 0 {
					rows = append(rows, []string{"Dimensions", fmt.Sprintf("%dx%d", d.Width, d.Height)})
				}
				keys := make([]string, 0, len(d.Tags))
				for k := range d.Tags {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					rows = append(rows, []string{"tag:" + k, d.Tags[k]})
				}
			}

			fmt.Println(renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		})
	},
}

// path command
var pathCmd = &cobra.Command{
	Use:   "path ID",
	Short: "Print where a media file is stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withLibrary("MediaPath", func(a *app.MlibApp) error {
			path, err := a.Catalog().MediaPath(id)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		})
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm ID...",
	Short: "Remove media and their stored files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		return withLibrary("RemoveMedia", func(a *app.MlibApp) error {
			for _, id := range ids {
				if err := a.Catalog().RemoveMedia(id); err != nil {
					return err
				}
				fmt.Printf("Removed %d\n", id)
			}
			return nil
		})
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update ID FIELD=VALUE...",
	Short: "Update media fields (filename, caption, type, sub_type, type_addition, comment)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withLibrary("UpdateMedia", func(a *app.MlibApp) error {
			return a.UpdateMedia(id, args[1:])
		})
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every media has its stored file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("Verify", func(a *app.MlibApp) error {
			missing, err := a.Catalog().Verify()
			if err != nil {
				return err
			}
			if len(missing) == 0 {
				fmt.Println("Catalog is consistent.")
				return nil
			}
			for _, m := range missing {
				fmt.Printf("missing: %d\t%s\t%s\n", m.ID, m.Hash, m.Filename)
			}
			return fmt.Errorf("%d stored file(s) missing: %w", len(missing), mlib.ErrInconsistent)
		})
	},
}

func init() {
	createCmd.Flags().StringP("parent", "p", ".", "Directory to create the catalog in")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(infoCmd)

	addCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	addCmd.Flags().StringP("type", "t", "image", "Media type: image, text, audio, video or other")
	addCmd.Flags().String("subtype", "", "Media sub-type")
	addCmd.Flags().String("type-addition", "", "Additional type information")
	addCmd.Flags().StringP("caption", "c", "", "Caption for every added file")
	addCmd.Flags().String("comment", "", "Comment for every added file")
	rootCmd.AddCommand(addCmd)

	rootCmd.AddCommand(lsCmd)
	showCmd.Flags().Bool("probe", false, "Read format details from the stored file")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(verifyCmd)
}
