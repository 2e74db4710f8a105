package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change local settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved settings as YAML",
	Long: `Show prints the settings after applying defaults, the config file, .env files
and PAPERPRODUCER_* environment variables. With --remote it prints the report
service's own configuration and model catalog instead.`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting and write it to the config file",
	Long: fmt.Sprintf(`Set validates the new value and writes the configuration to the file in use,
or to ./%s when no config file exists yet.

Known keys: %s`, config.DefaultPath(), strings.Join(config.Keys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

type remoteOutput struct {
	Server  string           `yaml:"server"`
	Config  api.RemoteConfig `yaml:"config"`
	Catalog api.Catalog      `yaml:"catalog"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetBool("remote")
	if !remote {
		return writeYAML(cmd.OutOrStdout(), settings)
	}

	client := newClient()
	ctx := context.Background()
	cfg, err := client.LoadConfig(ctx)
	if err != nil {
		return err
	}
	catalog, err := client.Models(ctx)
	if err != nil {
		return err
	}
	return writeYAML(cmd.OutOrStdout(), remoteOutput{Server: client.BaseURL(), Config: cfg, Catalog: catalog})
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.Set(viper.GetViper(), args[0], args[1], path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], args[1], path)
	return nil
}

func init() {
	configShowCmd.Flags().Bool("remote", false, "show the report service configuration")
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
