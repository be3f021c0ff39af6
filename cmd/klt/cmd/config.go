package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/goklt/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Inspect the effective configuration or write a configuration file
holding every default.

Configuration is read from klt.yaml in ., $HOME, $HOME/.config/klt and
/etc/klt, from KLT_* environment variables (KLT_MANAGER_MAX_FEATURES sets
manager.max_features) and from command line flags, in increasing priority.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg == nil {
				return errors.New("configuration not loaded")
			}
			bts, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(bts)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [FILE]",
		Short: "Write a configuration file with every default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				filename = args[0]
			}
			if _, err := os.Stat(filename); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", filename)
			}
			if err := config.GenerateDefaultConfigFile(filename); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filename)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "List the directories searched for klt.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range config.GetConfigSearchPaths() {
				if _, err := fmt.Fprintln(out, p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd, initCmd, pathsCmd)
	return configCmd
}
