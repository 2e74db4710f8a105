package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csheth/paperproducer/internal/artifact"
)

var downloadCmd = &cobra.Command{
	Use:   "download <filename>",
	Short: "Save a generated report into the download directory",
	Long: `Download fetches a report produced by the service and writes it to
download_dir (override with --dir). The saved file is checked to be a readable
PDF and its page count is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = settings.DownloadDir
	}

	store := artifact.NewStore(dir, newClient())
	saved, err := store.Save(context.Background(), args[0])
	if err != nil {
		return err
	}

	inspector, err := artifact.NewInspector(1)
	if err != nil {
		return err
	}
	inspection, err := inspector.Inspect(saved.Path)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes, not a readable PDF: %v)\n", saved.Path, saved.Size, err)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes, %d pages)\n", saved.Path, saved.Size, inspection.Pages)
	if inspection.Excerpt != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", inspection.Excerpt)
	}
	return nil
}

func init() {
	downloadCmd.Flags().String("dir", "", "directory to save into (default: download_dir)")
	rootCmd.AddCommand(downloadCmd)
}
