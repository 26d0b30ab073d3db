// Command tasklens is the engine's CLI front end: apply mutations,
// read the prioritized Do list and balance standing, trace one task's
// score, import a wire-format document, and run the replica-sync
// worker. Grounded on the teacher's cmd/linear-fuse entry point shape
// (thin main.go delegating to a commands package).
package main

import (
	"fmt"
	"os"

	"github.com/tasklens/tasklens/cmd/tasklens/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tasklens:", err)
		os.Exit(1)
	}
}
