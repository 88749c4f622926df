// Command fiberctl drives a small in-process actor/fiber system: it
// spawns VMs and exercises the seed scenarios from the concurrency
// core's testable-properties section through its `scenario`
// subcommands, and prints build information through `version`. It has
// no subcommand that issues exit/signal system calls.
package main

import (
	"fmt"
	"os"

	"github.com/strandrt/fibercore/cmd/fiberctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
