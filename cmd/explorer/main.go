// Command explorer is the library-explorer CLI: solve, replay and serve
// subcommands wrapping the scheduler, engine and replay components.
package main

import (
	"github.com/higashi-matsudo/library-explorer/cmd/explorer/cmd"
)

func main() {
	cmd.Execute()
}
