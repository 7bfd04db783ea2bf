// Idiomatic entrypoint for the Cobra CLI; all logic lives in package cmd.
package main

import (
	"github.com/mushkilali/certifiable-bench/cmd"
)

func main() {
	cmd.Execute()
}
