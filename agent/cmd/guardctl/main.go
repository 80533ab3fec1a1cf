package main

import (
	"fmt"
	"os"

	"tracker-guard/agent/cmd/guardctl/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
