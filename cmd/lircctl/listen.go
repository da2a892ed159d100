package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/lirc-bridge/internal/bridge"
	"github.com/omochice/lirc-bridge/pkg/lirc"
)

var (
	wsAddr string
	wsPath string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print key presses and command replies until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("ws-addr") {
			cfg.Bridge.Listen = wsAddr
		}
		if cmd.Flags().Changed("ws-path") {
			cfg.Bridge.Path = wsPath
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		c := newClient()
		defer c.Close()

		c.OnConnected(func() {
			logger.Info("connected to lircd", zap.Stringer("addr", c.Address()))
			c.ListRemotes()
		})
		c.OnDisconnected(func(err error) {
			logger.Warn("lost connection to lircd", zap.Error(err))
		})
		c.OnKeyPressed(func(ev lirc.KeyPressEvent) {
			fmt.Fprintf(out, "%s %s %d\n", ev.Remote, ev.Key, ev.Index)
		})
		c.OnCommandCompleted(func(reply *lirc.Command) {
			logger.Info("command completed",
				zap.String("command", reply.Line),
				zap.Bool("succeeded", reply.Succeeded),
				zap.Strings("data", reply.Data))
		})

		g, ctx := errgroup.WithContext(ctx)
		if cfg.Bridge.Listen != "" {
			hub := bridge.NewHub(logger.Named("hub"))
			bridge.Forward(c, hub)
			srv := bridge.NewServer(bridge.Config{
				Address: cfg.Bridge.Listen,
				Path:    cfg.Bridge.Path,
			}, hub, c, logger.Named("bridge"))
			g.Go(func() error {
				return srv.Run(ctx)
			})
		}

		if err := connect(c); err != nil {
			return err
		}

		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		})
		if err := g.Wait(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	listenCmd.Flags().StringVar(&wsAddr, "ws-addr", "", "serve key presses over WebSocket on this address, e.g. :8080")
	listenCmd.Flags().StringVar(&wsPath, "ws-path", "/ws", "WebSocket endpoint path")
	rootCmd.AddCommand(listenCmd)
}
