package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/pumped-fn/pumped-query/internal/config"
)

var errConfigExists = errors.New("config file already exists")

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample config file",
		Long: `Write a sample config file declaring a few endpoints.

Example:
  pumpq init api.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return writeSample(cmd, path, opts.Force)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing file")

	return cmd
}

func writeSample(cmd *cobra.Command, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", errConfigExists, path)
		}
	}

	if err := atomic.WriteFile(path, strings.NewReader(config.Sample)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <endpoint> [json-arg]",
		Short: "Run a query and print its snapshot",
		Long: `Run a query endpoint and print the resulting snapshot as JSON.

Example:
  pumpq query getUser '{"id":1}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg, err := parseArg(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			s, err := OpenSession(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.Query(cmd.Context(), args[0], arg)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), snapshotView(args[0], snap)); err != nil {
				return err
			}
			if snap.IsError {
				return failure(args[0], snap.Error)
			}
			return nil
		},
	}
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mutate <endpoint> [json-arg]",
		Short: "Run a mutation and print its result",
		Long: `Run a mutation endpoint and print its result as JSON.

Example:
  pumpq mutate updateUser '{"id":1,"name":"Ada"}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg, err := parseArg(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			s, err := OpenSession(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Mutate(cmd.Context(), args[0], arg)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), resultView(args[0], res)); err != nil {
				return err
			}
			if res.Error != nil {
				return failure(args[0], res.Error)
			}
			return nil
		},
	}
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session sharing one cache",
		Long: `Start an interactive session. Every command runs against the same API,
so cached entries, tags and invalidation can be explored across calls.

Type 'help' in the session for the available commands.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := OpenSession(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			return NewREPL(s).Run(cmd.Context(), cmd.OutOrStdout())
		},
	}
}
