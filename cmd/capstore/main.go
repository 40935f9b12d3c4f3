// Command capstore inspects and maintains a capture-record store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/capstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
