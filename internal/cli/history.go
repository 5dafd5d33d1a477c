package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/store"
)

var (
	historyLimit  int
	historyFormat string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved runs",
	Long: `Every completed check is saved to the history database
(store.path, default ~/.claimcheck/history.db) unless --no-store is given.

Runs are addressed by id or by any unique id prefix.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		runs, err := db.ListRuns(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}
		return printRuns(cmd.OutOrStdout(), runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		result, err := db.GetRun(context.Background(), args[0])
		if err != nil {
			return historyError(err)
		}
		return writeReport(cmd.OutOrStdout(), outputPath, historyFormat, pipeline.NewRenderer(), result)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		ctx := context.Background()
		result, err := db.GetRun(ctx, args[0])
		if err != nil {
			return historyError(err)
		}
		if err := db.DeleteRun(ctx, result.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", result.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyShowCmd.Flags().StringVar(&historyFormat, "format", "text", "output format (text, json, md, html)")
	historyShowCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to a file instead of stdout")
}

func openHistory() (*store.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Store.Enabled {
		return nil, errors.New("history is disabled (store.enabled: false)")
	}
	return store.Open(cfg.Store.Path)
}

func historyError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w (see 'claimcheck history list')", err)
	case errors.Is(err, store.ErrAmbiguous):
		return fmt.Errorf("%w, use a longer prefix", err)
	default:
		return err
	}
}

func printRuns(w io.Writer, runs []store.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCLAIMS\tVERIFIED\tSUPPORTED\tREFUTED\tFACTUALITY\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%s\n",
			shortRunID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.NumClaims,
			r.NumVerified,
			r.NumSupported,
			r.NumRefuted,
			r.Factuality,
			truncate(r.Source, 60),
		)
	}
	return tw.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
