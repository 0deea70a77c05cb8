package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/batchload/pkg/version"
)

// newVersionCmd creates the version command.
func newVersionCmd(ver string) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the batchload version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if long {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "include commit, build date and platform")
	return cmd
}
