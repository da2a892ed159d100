package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/lirc-bridge/internal/client"
	"github.com/omochice/lirc-bridge/pkg/lirc"
)

var sendMode string

var sendCmd = &cobra.Command{
	Use:   "send <remote> <command>",
	Short: "Transmit an IR command",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var line string
		switch sendMode {
		case "once":
			line = lirc.SendOnceCommand(args[0], args[1])
		case "start":
			line = lirc.SendStartCommand(args[0], args[1])
		case "stop":
			line = lirc.SendStopCommand(args[0], args[1])
		default:
			return fmt.Errorf("unknown send mode %q, want once, start or stop", sendMode)
		}

		c, ctx, cancel, err := oneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		defer cancel()

		reply, err := c.Request(ctx, line)
		if err != nil {
			return fmt.Errorf("failed to send %s %s: %w", args[0], args[1], err)
		}
		if !reply.Succeeded {
			return fmt.Errorf("%w: %s", client.ErrCommandFailed, strings.Join(reply.Data, " "))
		}
		logger.Info("sent", zap.String("remote", args[0]), zap.String("command", args[1]))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendMode, "mode", "once", "once, start or stop")
	rootCmd.AddCommand(sendCmd)
}
