// Package cli implements the pumpq command line.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is the config file used when --config is not given.
const DefaultConfigPath = "pumpq.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath   string
	BaseURL      string
	CacheTimeout time.Duration
	Verbose      bool
}

// NewRootCommand creates the root command for the pumpq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "pumpq",
		Short:         "pumpq - query and cache an API from a config file",
		Long:          "Runs the queries and mutations declared in a config file against an HTTP server or a sqlite database, with tag-based cache invalidation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "config file (.yaml, .json or .jsonc)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "override the config base_url")
	cmd.PersistentFlags().DurationVar(&opts.CacheTimeout, "cache-timeout", 0, "override the config cache_timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewMutateCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))

	return cmd
}
