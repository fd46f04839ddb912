// Command imodel declares views, loads instances into a local store and
// runs typed queries against them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lucasrosaalves/industrial-model/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own ExitErrors; flag and usage errors are
		// printed here.
		var exit *cli.ExitError
		if !errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
