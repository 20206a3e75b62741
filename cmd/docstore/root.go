package main

import (
	"github.com/gogotex/docstore/pkg/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docstore",
		Short: "Document store with optimistic concurrency over MongoDB",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// serve re-applies the level once LOG_LEVEL is known from the config
			logger.Init(opts.LogLevel)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error); overrides LOG_LEVEL")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newACLCommand())

	return cmd
}
