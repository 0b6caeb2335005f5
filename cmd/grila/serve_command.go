package main

import (
	"github.com/spf13/cobra"

	"grila/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grading HTTP service in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := ""
			if cmd.Flags().Changed("log-level") {
				level = *ctx.logLevelFlag
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   level,
				Diagnostic: diagnostic,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write a debug-level JSON log under log_dir/debug")
	return cmd
}
