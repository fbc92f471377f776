// Command podctl runs and inspects the pod state machine.
package main

import (
	"os"

	"github.com/roach88/podctl/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
