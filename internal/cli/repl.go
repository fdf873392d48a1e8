package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	query "github.com/pumped-fn/pumped-query"
	"github.com/pumped-fn/pumped-query/extensions"
	"github.com/pumped-fn/pumped-query/internal/config"
)

var errUsage = errors.New("usage")

var replCommands = []string{
	"query", "mutate", "invalidate", "refetch", "reset",
	"keys", "tree", "endpoints", "help", "exit", "quit", "q",
}

// REPL is the interactive command loop.
type REPL struct {
	session *Session
	liner   *liner.State
}

// NewREPL creates a REPL over s.
func NewREPL(s *Session) *REPL {
	return &REPL{session: s}
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".pumpq_history")
}

// Run starts the REPL loop.
func (r *REPL) Run(ctx context.Context, out io.Writer) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}
	defer r.saveHistory()

	fmt.Fprintf(out, "pumpq - %s (%d endpoints)\n", r.session.Config.BaseURL, len(r.session.Config.Endpoints))
	fmt.Fprintln(out, "Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("pumpq> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		quit, err := r.Exec(ctx, line, out)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(out, "Bye!")
			return nil
		}
	}
}

// Exec runs one command line and reports whether the session should end.
func (r *REPL) Exec(ctx context.Context, line string, out io.Writer) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "exit", "quit", "q":
		return true, nil

	case "help", "?":
		r.printHelp(out)
		return false, nil

	case "query":
		return false, r.cmdQuery(ctx, args, out)

	case "mutate":
		return false, r.cmdMutate(ctx, args, out)

	case "refetch":
		return false, r.cmdRefetch(ctx, args, out)

	case "invalidate":
		return false, r.cmdInvalidate(ctx, args, out)

	case "reset":
		if err := r.session.API.ResetAPIState(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "refetched every query")
		return false, nil

	case "keys":
		r.cmdKeys(out)
		return false, nil

	case "tree":
		fmt.Fprintln(out, extensions.CacheTree(r.session.API))
		return false, nil

	case "endpoints":
		for _, name := range r.session.API.Accessors() {
			fmt.Fprintln(out, name)
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

// endpointArg splits "<endpoint> [json-arg]". The argument may contain
// spaces.
func endpointArg(cmd string, args []string) (string, any, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: %s <endpoint> [json-arg]", errUsage, cmd)
	}
	arg, err := parseArg(strings.Join(args[1:], " "))
	if err != nil {
		return "", nil, err
	}
	return args[0], arg, nil
}

func (r *REPL) cmdQuery(ctx context.Context, args []string, out io.Writer) error {
	endpoint, arg, err := endpointArg("query", args)
	if err != nil {
		return err
	}
	snap, err := r.session.Query(ctx, endpoint, arg)
	if err != nil {
		return err
	}
	return writeJSON(out, snapshotView(endpoint, snap))
}

func (r *REPL) cmdMutate(ctx context.Context, args []string, out io.Writer) error {
	endpoint, arg, err := endpointArg("mutate", args)
	if err != nil {
		return err
	}
	res, err := r.session.Mutate(ctx, endpoint, arg)
	if err != nil {
		return err
	}
	return writeJSON(out, resultView(endpoint, res))
}

func (r *REPL) cmdRefetch(ctx context.Context, args []string, out io.Writer) error {
	endpoint, arg, err := endpointArg("refetch", args)
	if err != nil {
		return err
	}
	res, err := r.session.API.RefetchQuery(ctx, endpoint, arg)
	if err != nil {
		return err
	}
	return writeJSON(out, resultView(endpoint, res))
}

func (r *REPL) cmdInvalidate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: invalidate <tag>...", errUsage)
	}

	tags := make([]query.Tag, len(args))
	for i, a := range args {
		tags[i] = config.ParseTag(a).Tag(nil)
	}

	if err := r.session.API.InvalidateTags(ctx, tags...); err != nil {
		return err
	}
	fmt.Fprintf(out, "invalidated %s\n", strings.Join(args, " "))
	return nil
}

func (r *REPL) cmdKeys(out io.Writer) {
	entries := r.session.API.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "(no entries)")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%-10s %s\n", extensions.Phase(e.State), e.Key)
	}
}

func (r *REPL) printHelp(out io.Writer) {
	fmt.Fprint(out, `Commands:
  query <endpoint> [json-arg]     Run a query (served from cache while fresh)
  mutate <endpoint> [json-arg]    Run a mutation
  refetch <endpoint> [json-arg]   Refetch an existing query entry
  invalidate <tag>...             Refetch entries providing the tags (users, users:1, users:*)
  reset                           Refetch every query entry
  keys                            List cache entries
  tree                            Show the cache as a tree
  endpoints                       List accessors
  help                            Show this help
  exit / quit / q                 Exit
`)
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands and endpoint names.
func (r *REPL) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	if cmd, rest, ok := strings.Cut(lower, " "); ok {
		switch cmd {
		case "query", "mutate", "refetch":
			for _, ep := range r.session.Config.Endpoints {
				if strings.HasPrefix(strings.ToLower(ep.Name), rest) {
					completions = append(completions, cmd+" "+ep.Name)
				}
			}
		}
		return completions
	}

	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}
	return completions
}
