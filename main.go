// The main package for the brrts-pipeline executable.
package main

import (
	"github.com/jdcarver/brrts-pipeline/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
