// Command fakelirc stands in for lircd. It answers VERSION, LIST and
// SEND_* from a table given on the command line and copies every stdin
// line to the connected clients, so key presses and raw reply blocks can
// be typed by hand.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/lirc-bridge/internal/lirctest"
	"github.com/omochice/lirc-bridge/internal/transport"
)

var (
	listenAddr string
	version    string
	remoteDefs []string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "fakelirc",
	Short:         "A scriptable stand-in for the lircd control socket",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8888", "listen address: host:port, unix:/path or /path")
	rootCmd.Flags().StringVar(&version, "lirc-version", "0.10.1", "version reported for VERSION")
	rootCmd.Flags().StringArrayVarP(&remoteDefs, "remote", "r", nil, "remote definition name=KEY_A,KEY_B (repeatable)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func parseRemotes(defs []string) (map[string][]string, []string, error) {
	table := make(map[string][]string, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		name, keys, ok := strings.Cut(def, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("invalid remote definition %q, want name=KEY_A,KEY_B", def)
		}
		if _, dup := table[name]; !dup {
			order = append(order, name)
		}
		table[name] = strings.Split(keys, ",")
	}
	return table, order, nil
}

func run(cmd *cobra.Command, args []string) error {
	zc := zap.NewDevelopmentConfig()
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	addr, err := transport.ParseAddress(listenAddr)
	if err != nil {
		return err
	}
	table, order, err := parseRemotes(remoteDefs)
	if err != nil {
		return err
	}

	srv, err := lirctest.Listen(addr.Network, addr.Addr, lirctest.Remotes(version, table, order), logger)
	if err != nil {
		return err
	}
	defer srv.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Not part of the group: a blocked stdin read cannot be interrupted.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := srv.Write(scanner.Text() + "\n"); err != nil {
				logger.Warn("failed to forward line", zap.Error(err))
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case line := <-srv.Lines():
				logger.Info("client sent", zap.String("line", line))
			case <-ctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}
