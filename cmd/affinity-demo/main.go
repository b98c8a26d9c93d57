// Command affinity-demo drives a SingleThreadContext from the command line:
// it queues work, sends one blocking call from another goroutine, shuts the
// context down and runs the dispatch loop on the main goroutine.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:     "affinity-demo",
		Usage:    "Run work on a single-thread affinity context",
		Writer:   out,
		Commands: []*cli.Command{runCommand()},
	}
}
