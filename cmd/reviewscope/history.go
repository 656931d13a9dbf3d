package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacesedan/reviewscope/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analyses from the SQLite recorder",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of analyses to list")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	if cfg.Recording.SQLitePath == "" {
		return errors.New("history needs the SQLite recorder; set RECORD_SQLITE_PATH")
	}

	store, err := db.NewSQLiteRecorder(cfg.Recording.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no analyses recorded yet")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tID\tSOURCE\tREVIEWS\tFAKE\tFAKE %\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.AnalysisID, r.Source,
			r.TotalReviews, r.FakeReviews, r.FakePercentage,
			statusColor(r.ProductStatus).Sprint(r.ProductStatus))
	}
	return tw.Flush()
}
