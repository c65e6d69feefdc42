package main

import (
	"fmt"
	"strconv"

	"mlib/internal/app"

	"github.com/spf13/cobra"
)

// series command
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Manage ordered series of media",
}

var seriesCreateCmd = &cobra.Command{
	Use:   "create CAPTION",
	Short: "Create an empty series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comment, _ := cmd.Flags().GetString("comment")
		return withLibrary("CreateSeries", func(a *app.MlibApp) error {
			uuid, err := a.Catalog().CreateSeries(args[0], comment)
			if err != nil {
				return err
			}
			fmt.Println(uuid)
			return nil
		})
	},
}

var seriesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List series",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("ListSeries", func(a *app.MlibApp) error {
			all, err := a.Catalog().ListSeries()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No series.")
				return nil
			}
			rows := make([][]string, 0, len(all))
			for _, s := range all {
				rows = append(rows, []string{s.UUID, s.Caption, strconv.FormatInt(s.MediaCount, 10), s.Comment})
			}
			fmt.Println(renderTable(
				[]string{"UUID", "Caption", "Media", "Comment"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		})
	},
}

var seriesShowCmd = &cobra.Command{
	Use:   "show UUID",
	Short: "List the members of a series in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("SeriesMembers", func(a *app.MlibApp) error {
			s, err := a.Catalog().GetSeries(args[0])
			if err != nil {
				return err
			}
			members, err := a.Catalog().SeriesMembers(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d media)\n", s.Caption, s.MediaCount)
			rows := make([][]string, 0, len(members))
			for _, m := range members {
				no := "-"
				if m.SeriesNo != nil {
					no = strconv.FormatInt(*m.SeriesNo, 10)
				}
				rows = append(rows, []string{no, strconv.FormatInt(m.ID, 10), m.Filename, m.Caption})
			}
			fmt.Println(renderTable(
				[]string{"#", "ID", "Filename", "Caption"},
				rows,
				[]columnAlignment{alignRight, alignRight},
			))
			return nil
		})
	},
}

var seriesRmCmd = &cobra.Command{
	Use:   "rm UUID",
	Short: "Delete an empty series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("DeleteSeries", func(a *app.MlibApp) error {
			return a.Catalog().DeleteSeries(args[0])
		})
	},
}

var seriesAttachCmd = &cobra.Command{
	Use:   "attach UUID ID [ORDINAL]",
	Short: "Attach media to a series, optionally at an ordinal",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		var raw string
		if len(args) == 3 {
			raw = args[2]
		}
		ordinal, err := app.ParseOrdinal(raw)
		if err != nil {
			return err
		}
		return withLibrary("AttachToSeries", func(a *app.MlibApp) error {
			return a.Catalog().AttachToSeries(id, args[0], ordinal)
		})
	},
}

var seriesDetachCmd = &cobra.Command{
	Use:   "detach ID",
	Short: "Detach media from its series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withLibrary("DetachFromSeries", func(a *app.MlibApp) error {
			return a.Catalog().DetachFromSeries(id)
		})
	},
}

var seriesRenumberCmd = &cobra.Command{
	Use:   "renumber ID ORDINAL",
	Short: "Move media to another ordinal within its series",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		insert, _ := cmd.Flags().GetBool("insert")
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ordinal, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ordinal %q", args[1])
		}
		return withLibrary("RenumberInSeries", func(a *app.MlibApp) error {
			return a.Catalog().RenumberInSeries(id, ordinal, insert)
		})
	},
}

var seriesTrimCmd = &cobra.Command{
	Use:   "trim UUID",
	Short: "Renumber a series to 1..N keeping its order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary("TrimSeries", func(a *app.MlibApp) error {
			return a.Catalog().TrimSeries(args[0])
		})
	},
}

func init() {
	seriesCreateCmd.Flags().String("comment", "", "Series comment")
	seriesRenumberCmd.Flags().BoolP("insert", "i", false, "Shift later members up when the ordinal is taken")

	seriesCmd.AddCommand(seriesCreateCmd)
	seriesCmd.AddCommand(seriesLsCmd)
	seriesCmd.AddCommand(seriesShowCmd)
	seriesCmd.AddCommand(seriesRmCmd)
	seriesCmd.AddCommand(seriesAttachCmd)
	seriesCmd.AddCommand(seriesDetachCmd)
	seriesCmd.AddCommand(seriesRenumberCmd)
	seriesCmd.AddCommand(seriesTrimCmd)
	rootCmd.AddCommand(seriesCmd)
}
