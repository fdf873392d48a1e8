// pumpq runs the queries and mutations of a config-declared API.
//
// Usage:
//
//	pumpq init [path]                   Write a sample config
//	pumpq query <endpoint> [json-arg]   Run a query and print its snapshot
//	pumpq mutate <endpoint> [json-arg]  Run a mutation and print its result
//	pumpq repl                          Interactive session over one cache
package main

import (
	"fmt"
	"os"

	"github.com/pumped-fn/pumped-query/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
