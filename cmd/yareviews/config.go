package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"yareviews/pkg/config"
	"yareviews/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage yareviews configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (YAREVIEWS_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write every option with its default value to a YAML file.

The file is created as '.yareviews.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".yareviews.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if cfg.Browser.ExecPath != "" {
		if _, err := os.Stat(cfg.Browser.ExecPath); err != nil {
			ui.PrintWarning("Browser binary not found", cfg.Browser.ExecPath)
		}
	}
	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Mode", cfg.Scrape.Mode)
	ui.PrintInfo("Workers", fmt.Sprint(cfg.Scrape.Workers))
	ui.PrintInfo("Navigations per minute", fmt.Sprint(cfg.Scrape.RequestsPerMinute))
	ui.PrintInfo("Extractions per session", fmt.Sprint(cfg.Session.MaxExtractions))
	ui.PrintInfo("Log level", cfg.Logging.Level)
	return nil
}
