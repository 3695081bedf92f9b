package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/castwatch/castwatch/internal/config"
	"github.com/castwatch/castwatch/internal/ui"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	Example: `  # Create the default config file
  castwatch config init

  # Replace an existing file without asking
  castwatch config init --force`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.ResolvePath(configPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file without asking")

	configCmd.AddCommand(configInitCmd, configPathCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := config.ResolvePath(configPath)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("cannot access %s: %w", path, statErr)
	}
	if exists && !forceInit {
		question := fmt.Sprintf("%s already exists. Overwrite?", path)
		if !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
			return nil
		}
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if err := config.Default().Save(path); err != nil {
		p.PrintError("Config not written", err, []string{
			"Check that the directory is writable",
			"Pass --config to choose another location",
		})
		return err
	}

	p.PrintSuccess("Config written", ui.Param{Key: "Path", Value: path})
	return nil
}
