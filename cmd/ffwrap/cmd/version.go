package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ffwrap/internal/version"
)

func (a *app) newVersionCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, commit, and build date of ffwrap.",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			if format == formatTable {
				fmt.Fprintln(a.stdout, version.String())
				return nil
			}
			if err := validateFormat(format); err != nil {
				return err
			}
			return render(a.stdout, format, version.GetInfo())
		},
	}
	addFormatFlag(cmd.Flags(), &format)
	return cmd
}
