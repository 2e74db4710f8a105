package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/csheth/paperproducer/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously generated reports",
	Long: `History lists the reports generated from the interactive mode, newest first.
Use --export to write the runs, including their query specs and papers, to a
YAML file.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	exportPath, _ := cmd.Flags().GetString("export")

	store, err := history.Open(settings.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}

	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		if err := history.ExportYAML(f, runs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing export file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", len(runs), exportPath)
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reports generated yet.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPAPERS\tFILE\tQUERY")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04"), len(run.Papers), run.Filename, run.Query)
	}
	return tw.Flush()
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	historyCmd.Flags().String("export", "", "write the runs to this YAML file")
	rootCmd.AddCommand(historyCmd)
}
