package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const lircctlVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show lircctl and lircd versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "lircctl version %s\n", lircctlVersion)

		c, ctx, cancel, err := oneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		defer cancel()

		version, err := c.VersionWait(ctx)
		if err != nil {
			return fmt.Errorf("failed to get lircd version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "lircd: %s\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
