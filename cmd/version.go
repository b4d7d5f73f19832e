package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodeworks/lode/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		detailed, _ := cmd.Flags().GetBool("detailed")
		if detailed {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "lode %s\n", version.GetShortVersion())
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("detailed", false, "include commit, build time, and platform")
	rootCmd.AddCommand(versionCmd)
}
