package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <source>",
	Short: "Show which tracks a sync would fetch, without downloading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()

		svc := newServices(log)
		defer svc.Close()

		report, err := svc.syncer.Plan(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, report)
		}

		res := report.Result
		fmt.Fprintf(out, "%s -> %s\n", report.Playlist, report.Folder)
		fmt.Fprintf(out, "%d to fetch, %d already present", len(res.Pending), len(res.Skipped))
		if n := len(report.Excluded); n > 0 {
			fmt.Fprintf(out, ", %d instrumental excluded", n)
		}
		fmt.Fprintln(out)

		if len(res.Pending) > 0 {
			fmt.Fprintln(out, "\nTo fetch:")
			t := NewTable(out, "#", "ARTIST", "TITLE")
			for _, tr := range res.Pending {
				t.Row(fmt.Sprintf("%03d", tr.Number()), tr.PrimaryArtist, tr.Title)
			}
			t.Flush()
		}

		if verbose && len(res.Skipped) > 0 {
			fmt.Fprintln(out, "\nPresent:")
			t := NewTable(out, "#", "RULE", "FILE")
			for _, s := range res.Skipped {
				t.Row(fmt.Sprintf("%03d", s.Track.Number()), s.RuleName, s.Filename)
			}
			t.Flush()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
