// The main package for the relay executable.
package main

import (
	"github.com/JakeFAU/salesnav-relay/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
