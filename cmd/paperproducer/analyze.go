package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query…>",
	Short: "Analyze a research question and print the structured query as YAML",
	Long: `Analyze sends the research question to the service's analysis endpoint and
prints the resulting query spec (search query, themes, structure and special
requirements) as YAML.

With --generate the spec is immediately used to generate a report, and the
report summary is printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

type generatedOutput struct {
	Query  string           `yaml:"query"`
	Spec   report.QuerySpec `yaml:"query_spec"`
	Result report.Result    `yaml:"result"`
	URL    string           `yaml:"download_url"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("query must not be empty")
	}
	generate, _ := cmd.Flags().GetBool("generate")

	client := newClient()
	ctx := context.Background()
	spec, err := client.Analyze(ctx, query)
	if err != nil {
		return err
	}
	if !generate {
		return writeYAML(cmd.OutOrStdout(), spec)
	}

	result, err := client.Generate(ctx, api.GenerateRequest{UserQuery: query, Spec: &spec, Options: settings.Generation})
	if err != nil {
		return err
	}
	return writeYAML(cmd.OutOrStdout(), generatedOutput{
		Query:  query,
		Spec:   spec,
		Result: result,
		URL:    client.DownloadURL(result.Filename),
	})
}

func writeYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

func init() {
	analyzeCmd.Flags().Bool("generate", false, "generate a report from the analyzed query")
	rootCmd.AddCommand(analyzeCmd)
}
