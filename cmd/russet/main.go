// Command russet runs the feed aggregator server, or one of its
// maintenance subcommands, following the pack's cobra+viper CLI layout.
package main

import (
	"fmt"
	"os"

	"russet/cmd/russet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
