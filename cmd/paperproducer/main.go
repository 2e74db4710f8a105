// Package main is the entry point for the paperproducer CLI.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/artifact"
	"github.com/csheth/paperproducer/internal/config"
	"github.com/csheth/paperproducer/internal/history"
	"github.com/csheth/paperproducer/internal/tui"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// settings is resolved once per invocation, before any command runs.
	settings  config.Settings
	configErr error
)

// rootCmd launches the interactive report builder.
var rootCmd = &cobra.Command{
	Use:   "paperproducer",
	Short: "Turn a research question into a literature report",
	Long: `paperproducer talks to a report generation service. The interactive mode analyzes a
free-text research question into a structured query, searches and processes papers, and
presents the generated report as it becomes available.

Subcommands expose the same service calls for scripting: analyze, download, config and
history.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		s, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		settings = s
		return nil
	},
	RunE: runInteractive,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperproducer.yaml or ~/.config/paperproducer/paperproducer.yaml)")
	rootCmd.PersistentFlags().String("server", "", "report service base URL")
	rootCmd.PersistentFlags().String("flow", "", "workflow: two-stage or topic")
	rootCmd.Flags().Bool("no-alt-screen", false, "disable the alternate screen buffer")

	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("flow", rootCmd.PersistentFlags().Lookup("flow"))
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if _, err := config.Init(viper.GetViper(), cfgFile); err != nil {
		configErr = err
	}
}

func newClient() *api.Client {
	return api.New(api.Config{BaseURL: settings.Server, Timeout: settings.Timeout})
}

func runInteractive(cmd *cobra.Command, args []string) error {
	noAltScreen, _ := cmd.Flags().GetBool("no-alt-screen")

	// bubbletea owns the terminal; diagnostics go to log_file or nowhere.
	if settings.LogFile != "" {
		f, err := tea.LogToFile(settings.LogFile, "paperproducer")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	tuiConfig := tui.Config{
		Service:        newClient(),
		ServerURL:      settings.Server,
		Flow:           settings.WorkflowFlow(),
		Generation:     settings.Generation,
		RevealInterval: settings.Reveal.Interval,
		RevealEpilogue: settings.Reveal.Epilogue,
		DownloadDir:    settings.DownloadDir,
	}

	if settings.HistoryDB != "" {
		store, err := history.Open(settings.HistoryDB)
		if err != nil {
			log.Printf("history disabled: %v", err)
		} else {
			defer store.Close()
			tuiConfig.History = store
		}
	}

	inspector, err := artifact.NewInspector(0)
	if err != nil {
		return err
	}
	tuiConfig.Inspector = inspector

	if settings.Logbook != "" {
		logbook, err := os.OpenFile(settings.Logbook, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening logbook: %w", err)
		}
		defer logbook.Close()
		tuiConfig.Logbook = logbook
	}

	opts := []tea.ProgramOption{}
	if !noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(tuiConfig), opts...)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
