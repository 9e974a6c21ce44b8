package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "validate config...",
		Short:        "Check configuration files without opening any appender",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs error
			for _, path := range args {
				if err := validateFile(path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					errs = multierr.Append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}
			if n := len(multierr.Errors(errs)); n > 0 {
				return fmt.Errorf("%d of %d configuration files are invalid", n, len(args))
			}
			return nil
		},
	}
}

func validateFile(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}
