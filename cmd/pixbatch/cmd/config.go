package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/pixbatch/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(c *cli) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and generate configuration",
	}
	configCmd.AddCommand(
		newConfigShowCommand(c),
		newConfigInitCommand(c),
		newConfigPathsCommand(c),
	)
	return configCmd
}

func newConfigShowCommand(c *cli) *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			format, _ := cmd.Flags().GetString("format")
			var (
				data []byte
				err  error
			)
			switch format {
			case "yaml":
				data, err = yaml.Marshal(c.cfg)
			case "json":
				data, err = json.MarshalIndent(c.cfg, "", "  ")
				data = append(data, '\n')
			default:
				return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
			}
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	showCmd.Flags().String("format", "yaml", "output format: yaml, json")
	return showCmd
}

func newConfigInitCommand(c *cli) *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file holding every default",
		Long: `Write a configuration file holding every default. With --resolved the file
holds the effective configuration instead: defaults merged with the config
file in use and PIXBATCH_* environment variables.`,
		Args: cobra.MaximumNArgs(1),
		// A broken existing configuration must not block writing a new one.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := config.ConfigFileName + ".yaml"
			if len(args) > 0 {
				filename = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(filename); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", filename)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			resolved, _ := cmd.Flags().GetBool("resolved")
			if resolved {
				// Only a valid configuration is worth persisting.
				if _, err := c.loader.LoadWithFile(c.cfgFile); err != nil {
					return err
				}
				if err := c.loader.WriteConfigToFile(filename); err != nil {
					return fmt.Errorf("failed to write configuration: %w", err)
				}
			} else if err := config.GenerateDefaultConfigFile(filename); err != nil {
				return fmt.Errorf("failed to write configuration: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filename)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	initCmd.Flags().Bool("resolved", false, "write the effective configuration instead of the defaults")
	return initCmd
}

func newConfigPathsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the configuration file in use and the search paths",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			c.loader.PrintConfigInfo(cmd.OutOrStdout())
		},
	}
}
