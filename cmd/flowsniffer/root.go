package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "flowsniffer",
		Short:         "Watch a Chrome tab for HLS manifests and keys and print the download command",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path (.yaml or .toml)")
	pf.StringVar(&flags.devtools, "devtools", "", "DevTools HTTP endpoint, e.g. http://127.0.0.1:9222")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.format, "format", "", "Output format (auto, text, json)")

	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newTargetsCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
