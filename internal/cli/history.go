package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/tracksync/internal/domain"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent runs, or show one run in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer db.Close()

		out := cmd.OutOrStdout()

		if len(args) == 0 {
			runs, err := db.ListRuns(historyLimit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs yet.")
				return nil
			}
			printRuns(out, runs, time.Now())
			return nil
		}

		id := args[0]
		run, err := db.GetRun(id)
		if errors.Is(err, domain.ErrRunNotFound) && len(id) < 36 {
			run, err = findByPrefix(db, id)
		}
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(out, run)
		}
		fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.StartedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "  source     %s\n", run.Source)
		printSummary(out, run)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

type runLookup interface {
	GetRun(id string) (*domain.RunSummary, error)
	ListRuns(limit int) ([]*domain.RunSummary, error)
}

// findByPrefix resolves an abbreviated run id among recent runs. The match
// must be unique.
func findByPrefix(h runLookup, prefix string) (*domain.RunSummary, error) {
	runs, err := h.ListRuns(200)
	if err != nil {
		return nil, err
	}
	var match *domain.RunSummary
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", prefix)
			}
			match = r
		}
	}
	if match == nil {
		return nil, domain.ErrRunNotFound
	}
	return h.GetRun(match.ID)
}
