package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var remotesCmd = &cobra.Command{
	Use:   "remotes [remote]",
	Short: "List remotes and their commands",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := oneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		defer cancel()

		remotes, err := c.LoadRemotes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list remotes: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			cmds, err := c.Commands(args[0])
			if err != nil {
				return err
			}
			for _, name := range cmds {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		names := make([]string, 0, len(remotes))
		for name := range remotes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%s (%d commands)\n", name, len(remotes[name]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remotesCmd)
}
