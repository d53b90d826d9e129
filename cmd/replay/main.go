// Command replay runs clinical events through the reconciliation engine
// outside the HTTP service: single bundles from disk, journaled failures, and
// service tokens for the ingress endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every command.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:           "replay",
		Short:         "Reconcile clinical events against the ERP from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: ./config.toml or /app/config.toml)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newBundleCommand(opts))
	root.AddCommand(newRecordCommand(opts))
	root.AddCommand(newTokenCommand(opts))
	return root
}
