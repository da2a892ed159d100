package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omochice/lirc-bridge/internal/client"
	"github.com/omochice/lirc-bridge/internal/config"
)

var (
	// Global flags
	cfgFile     string
	address     string
	logLevel    string
	development bool
	timeout     time.Duration

	// Shared state set during PersistentPreRun
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lircctl",
	Short:         "Client for the lircd control socket",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		flags := cmd.Flags()
		if flags.Changed("address") {
			cfg.LIRC.Address = address
		}
		if flags.Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if flags.Changed("development") {
			cfg.Log.Development = development
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = buildLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/lirc-bridge/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "lircd address: host:port, unix:/path or /path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&development, "development", false, "human friendly log output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "how long one-shot commands wait for lircd")
}

func buildLogger(l config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newClient returns a client with logging subscribers attached. The
// caller adds its own subscribers and then calls connect.
func newClient() *client.Client {
	c := client.New(cfg.Transport(), logger.Named("client"))
	c.OnMessage(func(msg string) {
		logger.Debug(msg)
	})
	c.OnError(func(msg string, err error) {
		logger.Warn(msg, zap.Error(err))
	})
	return c
}

func connect(c *client.Client) error {
	addr, err := cfg.Address()
	if err != nil {
		return err
	}
	return c.Connect(addr)
}

// oneShot creates a connected client and a context bounded by --timeout.
func oneShot(parent context.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	c := newClient()
	if err := connect(c); err != nil {
		c.Close()
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	return c, ctx, cancel, nil
}
