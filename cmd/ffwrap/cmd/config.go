package cmd

import (
	"github.com/spf13/cobra"
)

func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the effective configuration",
		Long: `Dump the effective configuration in YAML format: built-in defaults
overlaid with the config file, environment variables and flags.

Redirect the output to create a configuration template:

  ffwrap config dump > ~/.ffwrap.yaml

Environment variables use the FFWRAP_ prefix and underscores for nesting.
Example: process.timeout -> FFWRAP_PROCESS_TIMEOUT`,
		Args: noArgs,
		RunE: func(*cobra.Command, []string) error {
			return render(a.stdout, formatYAML, a.cfg)
		},
	}

	configCmd.AddCommand(dumpCmd)
	return configCmd
}
