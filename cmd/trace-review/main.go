// Command trace-review loads sensor trace batches, walks an operator through
// labelling each sample and keeps the annotations in a durable slot.
package main

import (
	"os"

	"github.com/banshee-data/trace.review/cmd/trace-review/commands"
)

func main() {
	// Errors are printed by the printer package; cobra stays silent.
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
