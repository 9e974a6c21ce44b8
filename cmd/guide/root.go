package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/config"
	"github.com/philipp01105/hierlog/dispatch"
)

const defaultConfig = "configs/minimal_stdout.yaml"

type rootOptions struct {
	watch    bool
	interval time.Duration
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "guide [config]",
		Short: "Log sample events through a configuration file",
		Long: "guide loads a YAML, TOML or JSON logging configuration and logs one event\n" +
			"per level from each of its sample targets. Without an argument it uses\n" +
			defaultConfig + ".",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfig
			if len(args) == 1 {
				path = args[0]
			}
			return runGuide(cmd, path, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep logging and reload the configuration when it changes")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "delay between rounds with --watch")
	cmd.Flags().DurationVar(&opts.timeout, "shutdown-timeout", 5*time.Second, "time allowed for appenders to drain on exit")

	cmd.AddCommand(newValidateCmd())
	return cmd
}

func runGuide(cmd *cobra.Command, path string, opts *rootOptions) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Errorf("configuration file %s does not exist", path)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "using configuration file %s:\n", path)

	buildOpts := []config.Option{
		config.WithStdout(cmd.OutOrStdout()),
		config.WithStderr(cmd.ErrOrStderr()),
	}
	d, err := config.InitFile(path, buildOpts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.watch {
		err = watchAndLog(ctx, d, path, opts.interval, buildOpts)
	} else {
		logSamples(d)
	}

	sctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	return multierr.Append(err, d.Shutdown(sctx))
}

// watchAndLog logs a round of samples every interval until ctx is done.
// The configuration reloads on its own refresh_rate, or every interval when
// it sets none.
func watchAndLog(ctx context.Context, d *dispatch.Dispatcher, path string, interval time.Duration, opts []config.Option) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if cfg.RefreshRate == "" {
		opts = append(opts, config.WithRefreshRate(interval))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watched := make(chan error, 1)
	go func() { watched <- config.Watch(ctx, path, d, opts...) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		logSamples(d)
		select {
		case <-ctx.Done():
			cancel()
			return <-watched
		case <-ticker.C:
		}
	}
}
