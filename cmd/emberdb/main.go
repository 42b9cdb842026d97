// Command emberdb inspects, queries and loads EmberDB files, validates
// schemas and runs scenario files.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/emberdb/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		// Commands print their own errors; cobra errors (bad flags, bad
		// arguments) still need reporting.
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
