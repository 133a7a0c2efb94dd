// bugx is the command-line client of the BugX debugging toolkit.
package main

import (
	"os"

	"bugx/internal/cli"
)

func main() {
	if err := cli.NewCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
